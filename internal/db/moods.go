package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/registramood/moodtracker/internal/metrics"
)

// MoodEntryRepository handles mood entry documents and the aggregations over them.
type MoodEntryRepository struct {
	coll *mongo.Collection
}

// Create inserts a new mood entry, assigning an id when none is set.
func (r *MoodEntryRepository) Create(ctx context.Context, entry *MoodEntry) error {
	defer metrics.TrackStore("insert", MoodEntriesCollection)()

	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return storeError("inserting mood entry", err)
	}
	return nil
}

// Get retrieves a mood entry by id.
func (r *MoodEntryRepository) Get(ctx context.Context, id primitive.ObjectID) (*MoodEntry, error) {
	defer metrics.TrackStore("find_one", MoodEntriesCollection)()

	var entry MoodEntry
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mood entry %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, storeError("querying mood entry", err)
	}
	return &entry, nil
}

// ListForUser returns a user's newest entries first.
func (r *MoodEntryRepository) ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]MoodEntry, error) {
	defer metrics.TrackStore("find", MoodEntriesCollection)()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, storeError("listing mood entries", err)
	}

	entries := []MoodEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, storeError("decoding mood entries", err)
	}
	return entries, nil
}

type moodEntryJoin struct {
	MoodEntry `bson:",inline"`
	SongInfo  []Song `bson:"song_info"`
	UserInfo  []User `bson:"user_info"`
}

// ListWithSongs returns a user's newest entries joined with song and username.
func (r *MoodEntryRepository) ListWithSongs(ctx context.Context, userID primitive.ObjectID, limit int64) ([]MoodEntryDetail, error) {
	defer metrics.TrackStore("aggregate", MoodEntriesCollection)()

	cursor, err := r.coll.Aggregate(ctx, entriesWithSongsPipeline(userID, limit))
	if err != nil {
		return nil, storeError("aggregating mood entries with songs", err)
	}

	var rows []moodEntryJoin
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, storeError("decoding mood entries with songs", err)
	}

	details := make([]MoodEntryDetail, 0, len(rows))
	for _, row := range rows {
		d := MoodEntryDetail{MoodEntry: row.MoodEntry}
		if len(row.SongInfo) > 0 {
			song := row.SongInfo[0]
			d.Song = &song
		}
		if len(row.UserInfo) > 0 {
			d.Username = row.UserInfo[0].Username
		}
		details = append(details, d)
	}
	return details, nil
}

// Update applies the non-nil fields of upd.
func (r *MoodEntryRepository) Update(ctx context.Context, id primitive.ObjectID, upd MoodEntryUpdate) error {
	defer metrics.TrackStore("update", MoodEntriesCollection)()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": upd.setDoc()})
	if err != nil {
		return storeError("updating mood entry", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mood entry %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// Delete removes a mood entry.
func (r *MoodEntryRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.TrackStore("delete", MoodEntriesCollection)()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("deleting mood entry", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("mood entry %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// CountForUser counts every entry of a user regardless of date.
func (r *MoodEntryRepository) CountForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	defer metrics.TrackStore("count", MoodEntriesCollection)()

	n, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, storeError("counting mood entries", err)
	}
	return n, nil
}

// CountForSong counts the entries that reference a song.
func (r *MoodEntryRepository) CountForSong(ctx context.Context, songID primitive.ObjectID) (int64, error) {
	defer metrics.TrackStore("count", MoodEntriesCollection)()

	n, err := r.coll.CountDocuments(ctx, bson.M{"song_id": songID})
	if err != nil {
		return 0, storeError("counting song entries", err)
	}
	return n, nil
}

// MoodDistribution groups a user's entries since the given instant by emoji.
func (r *MoodEntryRepository) MoodDistribution(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]MoodCount, error) {
	defer metrics.TrackStore("aggregate", MoodEntriesCollection)()

	cursor, err := r.coll.Aggregate(ctx, moodDistributionPipeline(userID, since))
	if err != nil {
		return nil, storeError("aggregating mood distribution", err)
	}

	counts := []MoodCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, storeError("decoding mood distribution", err)
	}
	return counts, nil
}

// DistinctDays returns the distinct calendar dates of a user's entries since the given instant.
func (r *MoodEntryRepository) DistinctDays(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]string, error) {
	defer metrics.TrackStore("distinct", MoodEntriesCollection)()

	values, err := r.coll.Distinct(ctx, "date", windowMatch(userID, since))
	if err != nil {
		return nil, storeError("querying distinct days", err)
	}

	days := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			days = append(days, s)
		}
	}
	return days, nil
}

// TopSongs counts a user's entries since the given instant per song, most referenced first.
func (r *MoodEntryRepository) TopSongs(ctx context.Context, userID primitive.ObjectID, since time.Time, limit int64) ([]SongCount, error) {
	defer metrics.TrackStore("aggregate", MoodEntriesCollection)()

	cursor, err := r.coll.Aggregate(ctx, topSongsPipeline(userID, since, limit))
	if err != nil {
		return nil, storeError("aggregating top songs", err)
	}

	counts := []SongCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, storeError("decoding top songs", err)
	}
	return counts, nil
}
