// Package db provides MongoDB access for the mood tracker services.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	UsersCollection       = "users"
	SongsCollection       = "songs"
	MoodEntriesCollection = "mood_entries"
)

// DB wraps a MongoDB client bound to one database.
type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, uri, database string) (*DB, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &DB{client: client, database: client.Database(database)}, nil
}

// Close disconnects the client.
func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.client.Ping(ctx, readpref.Primary()); err != nil {
		return storeError("pinging mongodb", err)
	}
	return nil
}

// Users returns a UserRepository.
func (db *DB) Users() *UserRepository {
	return &UserRepository{coll: db.database.Collection(UsersCollection)}
}

// Songs returns a SongRepository.
func (db *DB) Songs() *SongRepository {
	return &SongRepository{coll: db.database.Collection(SongsCollection)}
}

// MoodEntries returns a MoodEntryRepository.
func (db *DB) MoodEntries() *MoodEntryRepository {
	return &MoodEntryRepository{coll: db.database.Collection(MoodEntriesCollection)}
}

// EnsureIndexes creates the indexes both services rely on. Existing indexes are left alone.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	for collection, models := range indexModels() {
		if _, err := db.database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return storeError("creating indexes on "+collection, err)
		}
	}
	return nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
		},
		SongsCollection: {
			{
				Keys:    bson.D{{Key: "title", Value: 1}, {Key: "artist", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("title_artist_unique"),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetName("owner"),
			},
		},
		MoodEntriesCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("user_created_at"),
			},
			{
				Keys:    bson.D{{Key: "song_id", Value: 1}},
				Options: options.Index().SetName("song"),
			},
		},
	}
}
