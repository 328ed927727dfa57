package db

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateLayout is the calendar-date format stored on mood entries.
const DateLayout = "2006-01-02"

// ParseID converts an opaque string id into an ObjectID.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// ParseOptionalID is ParseID for optional references. An empty string yields nil.
func ParseOptionalID(s string) (*primitive.ObjectID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	id, err := ParseID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// EntryDate derives the day bucket of a mood entry created at t.
func EntryDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
