package db

import (
	"testing"
	"time"
)

func TestUpdateSetDocs(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	name := "ana"
	active := false
	emoji := "😢"
	genres := []string{"rock"}

	tests := []struct {
		name     string
		doc      map[string]any
		wantKeys []string
	}{
		{"empty user update stamps only", UserUpdate{UpdatedAt: now}.setDoc(), []string{"updated_at"}},
		{"user update", UserUpdate{Username: &name, Active: &active, UpdatedAt: now}.setDoc(), []string{"updated_at", "username", "active"}},
		{"song update", SongUpdate{Genres: &genres, UpdatedAt: now}.setDoc(), []string{"updated_at", "genres"}},
		{"mood update", MoodEntryUpdate{Emoji: &emoji, UpdatedAt: now}.setDoc(), []string{"updated_at", "emoji"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.doc) != len(tt.wantKeys) {
				t.Errorf("doc = %v, want keys %v", tt.doc, tt.wantKeys)
			}
			for _, k := range tt.wantKeys {
				if _, ok := tt.doc[k]; !ok {
					t.Errorf("doc missing %q: %v", k, tt.doc)
				}
			}
			if tt.doc["updated_at"] != now {
				t.Errorf("updated_at = %v, want %v", tt.doc["updated_at"], now)
			}
		})
	}
}
