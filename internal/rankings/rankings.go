// Package rankings shapes the user's top songs, artists, and genres for the
// ranking views.
package rankings

import (
	"context"
	"fmt"
	"sort"

	"github.com/songday-dev/song-of-the-day/internal/spotify"
)

// topGenresSource is how many long-term top artists feed the genre aggregate.
const topGenresSource = 50

// Catalog is the slice of the streaming API the rankings consume.
type Catalog interface {
	TopTracks(ctx context.Context, timeRange spotify.TimeRange, limit int) ([]spotify.Track, error)
	TopArtists(ctx context.Context, timeRange spotify.TimeRange, limit int) ([]spotify.Artist, error)
}

// GenreCount is one entry of the genre ranking.
type GenreCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Service computes ranking views.
type Service struct {
	catalog Catalog
}

// New creates a rankings service.
func New(catalog Catalog) *Service {
	return &Service{catalog: catalog}
}

// TopSongs returns the user's top tracks for a time range.
func (s *Service) TopSongs(ctx context.Context, timeRange spotify.TimeRange) ([]spotify.Track, error) {
	tracks, err := s.catalog.TopTracks(ctx, timeRange, 50)
	if err != nil {
		return nil, fmt.Errorf("loading top songs: %w", err)
	}
	return tracks, nil
}

// TopArtists returns the user's top artists for a time range.
func (s *Service) TopArtists(ctx context.Context, timeRange spotify.TimeRange) ([]spotify.Artist, error) {
	artists, err := s.catalog.TopArtists(ctx, timeRange, 50)
	if err != nil {
		return nil, fmt.Errorf("loading top artists: %w", err)
	}
	return artists, nil
}

// TopGenres counts genre occurrences across the user's long-term top artists,
// sorted by count descending with name as a stable tie-break.
func (s *Service) TopGenres(ctx context.Context) ([]GenreCount, error) {
	artists, err := s.catalog.TopArtists(ctx, spotify.LongTerm, topGenresSource)
	if err != nil {
		return nil, fmt.Errorf("loading artists for genre ranking: %w", err)
	}

	counts := make(map[string]int)
	for _, artist := range artists {
		for _, genre := range artist.Genres {
			counts[genre]++
		}
	}

	genres := make([]GenreCount, 0, len(counts))
	for name, count := range counts {
		genres = append(genres, GenreCount{Name: name, Count: count})
	}
	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Count != genres[j].Count {
			return genres[i].Count > genres[j].Count
		}
		return genres[i].Name < genres[j].Name
	})
	return genres, nil
}
