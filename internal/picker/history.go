package picker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/songday-dev/song-of-the-day/internal/db"
	"github.com/songday-dev/song-of-the-day/internal/spotify"
)

// History returns a user's picks for a calendar month keyed by ISO day
// (YYYY-MM-DD), shaped as canonical tracks for the UI boundary.
func (s *Service) History(ctx context.Context, userID uuid.UUID, year int, month time.Month) (map[string]spotify.Track, error) {
	picks, err := s.history.GetMonth(ctx, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("loading month history: %w", err)
	}

	tracks := make(map[string]spotify.Track, len(picks))
	for day, pick := range picks {
		tracks[day] = trackFromPick(&pick)
	}
	return tracks, nil
}

// Months returns the months holding picks for a user, newest first.
func (s *Service) Months(ctx context.Context, userID uuid.UUID) ([]db.MonthCount, error) {
	months, err := s.history.AvailableMonths(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading available months: %w", err)
	}
	return months, nil
}
