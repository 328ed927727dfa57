package db

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// windowMatch selects a user's entries created at or after since.
func windowMatch(userID primitive.ObjectID, since time.Time) bson.M {
	return bson.M{
		"user_id":    userID,
		"created_at": bson.M{"$gte": since},
	}
}

// moodDistributionPipeline groups in-window entries by emoji, most frequent first.
// Equal counts are ordered by emoji so the result does not depend on storage order.
func moodDistributionPipeline(userID primitive.ObjectID, since time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: windowMatch(userID, since)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$emoji"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "count", Value: -1},
			{Key: "_id", Value: 1},
		}}},
	}
}

// topSongsPipeline counts in-window entries per referenced song. Entries whose
// song no longer exists are dropped by the unwind.
func topSongsPipeline(userID primitive.ObjectID, since time.Time, limit int64) mongo.Pipeline {
	match := windowMatch(userID, since)
	match["song_id"] = bson.M{"$ne": nil}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: SongsCollection},
			{Key: "localField", Value: "song_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "song_info"},
		}}},
		{{Key: "$unwind", Value: "$song_info"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$song_id"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "song_title", Value: bson.D{{Key: "$first", Value: "$song_info.title"}}},
			{Key: "song_artist", Value: bson.D{{Key: "$first", Value: "$song_info.artist"}}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "count", Value: -1},
			{Key: "song_title", Value: 1},
			{Key: "_id", Value: 1},
		}}},
		{{Key: "$limit", Value: limit}},
	}
}

// entriesWithSongsPipeline returns a user's newest entries joined with song and owner.
func entriesWithSongsPipeline(userID primitive.ObjectID, limit int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: SongsCollection},
			{Key: "localField", Value: "song_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "song_info"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: UsersCollection},
			{Key: "localField", Value: "user_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user_info"},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "user_info.password_hash", Value: 0}}}},
	}
}

// songVisibilityFilter matches global songs plus those owned by owner. A nil owner matches everything.
func songVisibilityFilter(owner *primitive.ObjectID) bson.M {
	if owner == nil {
		return bson.M{}
	}
	return bson.M{"$or": bson.A{
		bson.M{"user_id": nil},
		bson.M{"user_id": *owner},
	}}
}

// songSearchFilter matches query as a literal, case-insensitive substring of title or artist.
func songSearchFilter(query string) bson.M {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"artist": pattern},
	}}
}

// missingGenresFilter matches songs with no genres recorded.
func missingGenresFilter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"genres": bson.M{"$exists": false}},
		bson.M{"genres": nil},
		bson.M{"genres": bson.M{"$size": 0}},
	}}
}
