package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/registramood/moodtracker/internal/metrics"
)

// UserRepository handles user documents.
type UserRepository struct {
	coll *mongo.Collection
}

// Create inserts a new user, assigning an id when none is set.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	defer metrics.TrackStore("insert", UsersCollection)()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("email %q: %w", user.Email, ErrConflict)
	}
	if err != nil {
		return storeError("inserting user", err)
	}
	return nil
}

// Get retrieves a user by id, including the password hash.
func (r *UserRepository) Get(ctx context.Context, id primitive.ObjectID) (*User, error) {
	defer metrics.TrackStore("find_one", UsersCollection)()

	var user User
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, storeError("querying user", err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	defer metrics.TrackStore("find_one", UsersCollection)()

	var user User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user with email %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, storeError("querying user by email", err)
	}
	return &user, nil
}

// List returns every user in insertion order.
func (r *UserRepository) List(ctx context.Context) ([]User, error) {
	defer metrics.TrackStore("find", UsersCollection)()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeError("listing users", err)
	}

	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, storeError("decoding users", err)
	}
	return users, nil
}

// Update applies the non-nil fields of upd.
func (r *UserRepository) Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) error {
	defer metrics.TrackStore("update", UsersCollection)()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": upd.setDoc()})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("email: %w", ErrConflict)
	}
	if err != nil {
		return storeError("updating user", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.TrackStore("delete", UsersCollection)()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("deleting user", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}
