package db

import (
	"time"

	"github.com/google/uuid"
)

// User maps a Spotify account to a stable local identity. History rows key
// off the internal UUID, not the provider's account ID.
type User struct {
	ID          uuid.UUID
	SpotifyID   string
	Email       string
	DisplayName string
	AvatarURL   *string // nullable
	CreatedAt   time.Time
}

// DailyPick is one revealed song for a user and calendar day. The store
// enforces at most one row per (user_id, pick_day) via a unique constraint;
// pick_day is the UTC calendar date of RevealedAt.
type DailyPick struct {
	UserID        uuid.UUID
	PickDay       time.Time // UTC midnight
	TrackID       string
	TrackName     string
	ArtistNames   string // flattened, comma-separated
	AlbumName     string
	AlbumImageURL *string // nullable
	Popularity    *int    // nullable
	ExternalURL   *string // nullable
	RevealedAt    time.Time
}

// MonthCount is one entry of the per-user month aggregate.
type MonthCount struct {
	Year      int `json:"year"`
	Month     int `json:"month"`
	SongCount int `json:"songCount"`
}

// Session represents an authenticated web session.
type Session struct {
	ID           string
	UserID       uuid.UUID
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
