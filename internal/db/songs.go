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

// SongRepository handles song documents.
type SongRepository struct {
	coll *mongo.Collection
}

// Create inserts a new song, assigning an id when none is set.
func (r *SongRepository) Create(ctx context.Context, song *Song) error {
	defer metrics.TrackStore("insert", SongsCollection)()

	if song.ID.IsZero() {
		song.ID = primitive.NewObjectID()
	}
	if song.Genres == nil {
		song.Genres = []string{}
	}
	_, err := r.coll.InsertOne(ctx, song)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("song %q by %q: %w", song.Title, song.Artist, ErrConflict)
	}
	if err != nil {
		return storeError("inserting song", err)
	}
	return nil
}

// Get retrieves a song by id.
func (r *SongRepository) Get(ctx context.Context, id primitive.ObjectID) (*Song, error) {
	defer metrics.TrackStore("find_one", SongsCollection)()
	return r.findOne(ctx, bson.M{"_id": id}, "song "+id.Hex())
}

// FindByTitleArtist retrieves the song with exactly this title and artist.
func (r *SongRepository) FindByTitleArtist(ctx context.Context, title, artist string) (*Song, error) {
	defer metrics.TrackStore("find_one", SongsCollection)()
	return r.findOne(ctx, bson.M{"title": title, "artist": artist}, fmt.Sprintf("song %q by %q", title, artist))
}

func (r *SongRepository) findOne(ctx context.Context, filter bson.M, what string) (*Song, error) {
	var song Song
	err := r.coll.FindOne(ctx, filter).Decode(&song)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, storeError("querying song", err)
	}
	return &song, nil
}

// List returns up to limit songs in insertion order, restricted to global
// songs plus those owned by owner when owner is set.
func (r *SongRepository) List(ctx context.Context, owner *primitive.ObjectID, limit int64) ([]Song, error) {
	defer metrics.TrackStore("find", SongsCollection)()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(limit)
	return r.find(ctx, songVisibilityFilter(owner), opts)
}

// Search returns up to limit songs whose title or artist matches query,
// case-insensitively.
func (r *SongRepository) Search(ctx context.Context, query string, limit int64) ([]Song, error) {
	defer metrics.TrackStore("find", SongsCollection)()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(limit)
	return r.find(ctx, songSearchFilter(query), opts)
}

// ListWithoutGenres returns up to limit songs that have no genres recorded.
func (r *SongRepository) ListWithoutGenres(ctx context.Context, limit int64) ([]Song, error) {
	defer metrics.TrackStore("find", SongsCollection)()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(limit)
	return r.find(ctx, missingGenresFilter(), opts)
}

func (r *SongRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Song, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError("listing songs", err)
	}

	songs := []Song{}
	if err := cursor.All(ctx, &songs); err != nil {
		return nil, storeError("decoding songs", err)
	}
	return songs, nil
}

// Update applies the non-nil fields of upd.
func (r *SongRepository) Update(ctx context.Context, id primitive.ObjectID, upd SongUpdate) error {
	defer metrics.TrackStore("update", SongsCollection)()
	return r.set(ctx, id, upd.setDoc())
}

// SetGenres replaces the genres of a song.
func (r *SongRepository) SetGenres(ctx context.Context, id primitive.ObjectID, genres []string, at time.Time) error {
	defer metrics.TrackStore("update", SongsCollection)()
	return r.set(ctx, id, bson.M{"genres": genres, "updated_at": at})
}

// SetPlayCount replaces the play count of a song with to, provided it still
// equals from. A count that moved in between yields ErrConflict.
func (r *SongRepository) SetPlayCount(ctx context.Context, id primitive.ObjectID, from, to int64) error {
	defer metrics.TrackStore("update", SongsCollection)()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "play_count": from},
		bson.M{"$set": bson.M{"play_count": to}})
	if err != nil {
		return storeError("updating play count", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("checking song", err)
	}
	if n == 0 {
		return fmt.Errorf("song %s: %w", id.Hex(), ErrNotFound)
	}
	return fmt.Errorf("play count of song %s changed concurrently: %w", id.Hex(), ErrConflict)
}

func (r *SongRepository) set(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("title and artist: %w", ErrConflict)
	}
	if err != nil {
		return storeError("updating song", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("song %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// IncrementPlayCount atomically adds one to the play count of a song.
func (r *SongRepository) IncrementPlayCount(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.TrackStore("increment", SongsCollection)()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"play_count": 1}})
	if err != nil {
		return storeError("incrementing play count", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("song %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// Delete removes a song.
func (r *SongRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.TrackStore("delete", SongsCollection)()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("deleting song", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("song %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}
