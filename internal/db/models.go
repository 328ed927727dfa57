package db

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a registered account.
type User struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Active       bool               `bson:"active" json:"active"`
	UserType     string             `bson:"user_type" json:"user_type"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Song is a catalog entry. A nil UserID means the song is visible to everyone.
type Song struct {
	ID         primitive.ObjectID  `bson:"_id" json:"id"`
	Title      string              `bson:"title" json:"title"`
	Artist     string              `bson:"artist" json:"artist"`
	SpotifyURL string              `bson:"spotify_url" json:"spotify_url"`
	Genres     []string            `bson:"genres" json:"genres"`
	UserID     *primitive.ObjectID `bson:"user_id" json:"user_id"`
	PlayCount  int64               `bson:"play_count" json:"play_count"`
	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `bson:"updated_at" json:"updated_at"`
}

// MoodEntry is one logged mood. Date is the UTC calendar day of CreatedAt.
type MoodEntry struct {
	ID        primitive.ObjectID  `bson:"_id" json:"id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"user_id"`
	SongID    *primitive.ObjectID `bson:"song_id" json:"song_id"`
	Emoji     string              `bson:"emoji" json:"emoji"`
	Comment   string              `bson:"comment" json:"comment"`
	Date      string              `bson:"date" json:"date"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

// MoodEntryDetail is a mood entry joined with its song and owner.
type MoodEntryDetail struct {
	MoodEntry
	Song     *Song  `json:"song"`
	Username string `json:"username"`
}

// MoodCount is one emoji group of a mood distribution.
type MoodCount struct {
	Emoji string `bson:"_id" json:"emoji"`
	Count int    `bson:"count" json:"count"`
}

// SongCount is one row of a top-songs aggregation.
type SongCount struct {
	SongID primitive.ObjectID `bson:"_id" json:"song_id"`
	Count  int                `bson:"count" json:"count"`
	Title  string             `bson:"song_title" json:"song_title"`
	Artist string             `bson:"song_artist" json:"song_artist"`
}

// UserUpdate lists the mutable user fields. Nil fields are left unchanged.
type UserUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Active       *bool
	UserType     *string
	UpdatedAt    time.Time
}

func (u UserUpdate) setDoc() bson.M {
	set := bson.M{"updated_at": u.UpdatedAt}
	if u.Username != nil {
		set["username"] = *u.Username
	}
	if u.Email != nil {
		set["email"] = *u.Email
	}
	if u.PasswordHash != nil {
		set["password_hash"] = *u.PasswordHash
	}
	if u.Active != nil {
		set["active"] = *u.Active
	}
	if u.UserType != nil {
		set["user_type"] = *u.UserType
	}
	return set
}

// SongUpdate lists the mutable song fields. Nil fields are left unchanged.
type SongUpdate struct {
	Title      *string
	Artist     *string
	SpotifyURL *string
	Genres     *[]string
	UpdatedAt  time.Time
}

func (u SongUpdate) setDoc() bson.M {
	set := bson.M{"updated_at": u.UpdatedAt}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Artist != nil {
		set["artist"] = *u.Artist
	}
	if u.SpotifyURL != nil {
		set["spotify_url"] = *u.SpotifyURL
	}
	if u.Genres != nil {
		set["genres"] = *u.Genres
	}
	return set
}

// MoodEntryUpdate lists the mutable mood entry fields. Nil fields are left unchanged.
type MoodEntryUpdate struct {
	Emoji     *string
	Comment   *string
	UpdatedAt time.Time
}

func (u MoodEntryUpdate) setDoc() bson.M {
	set := bson.M{"updated_at": u.UpdatedAt}
	if u.Emoji != nil {
		set["emoji"] = *u.Emoji
	}
	if u.Comment != nil {
		set["comment"] = *u.Comment
	}
	return set
}
