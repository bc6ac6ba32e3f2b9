// Package playlists turns a month of daily picks into a Spotify playlist.
package playlists

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/songday-dev/song-of-the-day/internal/spotify"
)

// ErrEmptyMonth is returned when the requested month has no picks.
var ErrEmptyMonth = errors.New("playlists: no picks for requested month")

// Catalog is the slice of the streaming API the playlist builder consumes.
type Catalog interface {
	CurrentUser(ctx context.Context) (spotify.UserProfile, error)
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (spotify.Playlist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackURIs []string) error
}

// History provides the month's picks as day-keyed tracks.
type History interface {
	History(ctx context.Context, userID uuid.UUID, year int, month time.Month) (map[string]spotify.Track, error)
}

// Service creates monthly playlists.
type Service struct {
	catalog Catalog
	history History
}

// New creates a playlists service.
func New(catalog Catalog, history History) *Service {
	return &Service{catalog: catalog, history: history}
}

// Result describes a created playlist.
type Result struct {
	Playlist   spotify.Playlist `json:"playlist"`
	TrackCount int              `json:"track_count"`
}

// CreateForMonth builds a playlist from a month's picks, in day order.
// Returns ErrEmptyMonth when the month has no history.
func (s *Service) CreateForMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month, public bool) (*Result, error) {
	picks, err := s.history.History(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}
	if len(picks) == 0 {
		return nil, ErrEmptyMonth
	}

	// Day keys are ISO dates, so a lexical sort is chronological.
	days := make([]string, 0, len(picks))
	for day := range picks {
		days = append(days, day)
	}
	sort.Strings(days)

	uris := make([]string, 0, len(days))
	for _, day := range days {
		uris = append(uris, spotify.TrackURI(picks[day].ID))
	}

	profile, err := s.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving playlist owner: %w", err)
	}

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	name := fmt.Sprintf("Song of the Day - %s", monthStart.Format("January 2006"))
	description := fmt.Sprintf("Daily picks revealed during %s.", monthStart.Format("January 2006"))

	playlist, err := s.catalog.CreatePlaylist(ctx, profile.ID, name, description, public)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.AddTracksToPlaylist(ctx, playlist.ID, uris); err != nil {
		return nil, err
	}

	return &Result{Playlist: playlist, TrackCount: len(uris)}, nil
}
