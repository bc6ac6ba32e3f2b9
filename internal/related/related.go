// Package related discovers artists and tracks similar to a seed track via
// best-effort, multi-probe search and merge.
package related

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/songday-dev/song-of-the-day/internal/spotify"
)

// Output caps and probe sizes.
const (
	maxRelatedArtists = 6
	maxRelatedTracks  = 6

	artistSearchLimit  = 15
	trackSearchLimit   = 10
	artistAlbumsLimit  = 10
	albumExpandCount   = 5
	collaboratorBudget = 12
)

// Catalog is the slice of the streaming API the aggregator consumes.
type Catalog interface {
	Artist(ctx context.Context, id string) (spotify.Artist, error)
	ArtistAlbums(ctx context.Context, id string, limit int) ([]spotify.Album, error)
	Album(ctx context.Context, id string) (spotify.AlbumDetail, error)
	Search(ctx context.Context, q string, searchType spotify.SearchType, limit int) (spotify.SearchResult, error)
}

// Content is the merged, deduplicated discovery result.
type Content struct {
	Artists []spotify.Artist `json:"artists"`
	Tracks  []spotify.Track  `json:"tracks"`
}

// Service aggregates related content.
type Service struct {
	catalog Catalog
	log     zerolog.Logger
}

// New creates a related-content service.
func New(catalog Catalog, log zerolog.Logger) *Service {
	return &Service{catalog: catalog, log: log}
}

// merge state: result lists plus seen-sets, threaded through each probe as
// values rather than shared mutable closures.
type merged struct {
	artists     []spotify.Artist
	tracks      []spotify.Track
	seenArtists map[string]bool
	seenTracks  map[string]bool
}

func newMerged(seedTrackID, seedArtistID string) merged {
	return merged{
		seenArtists: map[string]bool{seedArtistID: true},
		seenTracks:  map[string]bool{seedTrackID: true},
	}
}

// addArtist keeps an artist if unseen and it has artwork.
func (m merged) addArtist(artist spotify.Artist) merged {
	if m.seenArtists[artist.ID] || len(artist.Images) == 0 {
		return m
	}
	m.seenArtists[artist.ID] = true
	m.artists = append(m.artists, artist)
	return m
}

// addTrack keeps a track if unseen and its album has artwork.
func (m merged) addTrack(track spotify.Track) merged {
	if m.seenTracks[track.ID] || len(track.Album.Images) == 0 {
		return m
	}
	m.seenTracks[track.ID] = true
	m.tracks = append(m.tracks, track)
	return m
}

// Related returns up to 6 similar artists and 6 similar tracks for the seed
// track/artist pair. Each probe is isolated: one failing leaves the others'
// results intact, so partial content is the worst case short of an expired
// session.
func (s *Service) Related(ctx context.Context, trackID, artistID string) (*Content, error) {
	seed, err := s.catalog.Artist(ctx, artistID)
	if err != nil {
		if errors.Is(err, spotify.ErrReauthRequired) {
			return nil, err
		}
		s.log.Warn().Err(err).Str("artist_id", artistID).Msg("seed artist unavailable")
		return &Content{}, nil
	}

	m := newMerged(trackID, artistID)

	if res, err := s.searchArtists(ctx, seed); err == nil {
		for _, artist := range res {
			m = m.addArtist(artist)
		}
	} else if errors.Is(err, spotify.ErrReauthRequired) {
		return nil, err
	} else {
		s.log.Debug().Err(err).Msg("artist search probe failed")
	}

	if res, err := s.searchTracks(ctx, seed); err == nil {
		for _, track := range res {
			m = m.addTrack(track)
		}
	} else if errors.Is(err, spotify.ErrReauthRequired) {
		return nil, err
	} else {
		s.log.Debug().Err(err).Msg("track search probe failed")
	}

	m, err = s.albumProbe(ctx, seed, m)
	if errors.Is(err, spotify.ErrReauthRequired) {
		return nil, err
	} else if err != nil {
		s.log.Debug().Err(err).Msg("album probe failed")
	}

	content := &Content{Artists: m.artists, Tracks: m.tracks}
	if len(content.Artists) > maxRelatedArtists {
		content.Artists = content.Artists[:maxRelatedArtists]
	}
	if len(content.Tracks) > maxRelatedTracks {
		content.Tracks = content.Tracks[:maxRelatedTracks]
	}
	return content, nil
}

// searchArtists finds artists sharing the seed's primary genre, falling back
// to a free-text similarity query when the seed has no genres.
func (s *Service) searchArtists(ctx context.Context, seed spotify.Artist) ([]spotify.Artist, error) {
	query := fmt.Sprintf("similar to %s", seed.Name)
	if len(seed.Genres) > 0 {
		query = fmt.Sprintf("genre:%q", seed.Genres[0])
	}

	result, err := s.catalog.Search(ctx, query, spotify.SearchArtists, artistSearchLimit)
	if err != nil {
		return nil, err
	}
	return result.Artists, nil
}

// searchTracks finds tracks in the seed's primary genre by other artists.
func (s *Service) searchTracks(ctx context.Context, seed spotify.Artist) ([]spotify.Track, error) {
	query := fmt.Sprintf("similar to %s", seed.Name)
	if len(seed.Genres) > 0 {
		query = fmt.Sprintf("genre:%q NOT artist:%q", seed.Genres[0], seed.Name)
	}

	result, err := s.catalog.Search(ctx, query, spotify.SearchTracks, trackSearchLimit)
	if err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

// albumProbe expands the seed artist's recent albums into their track rosters,
// harvesting both the tracks and collaborating artists. Album fetches are
// independent per-album GETs and run concurrently, joined before merging.
func (s *Service) albumProbe(ctx context.Context, seed spotify.Artist, m merged) (merged, error) {
	albums, err := s.catalog.ArtistAlbums(ctx, seed.ID, artistAlbumsLimit)
	if err != nil {
		return m, err
	}
	if len(albums) > albumExpandCount {
		albums = albums[:albumExpandCount]
	}

	details := s.fetchAlbums(ctx, albums)

	// Tracks first, then collaborator detail lookups for artwork.
	var collaborators []string
	for _, album := range details {
		for _, track := range album.Tracks {
			m = m.addTrack(track)
			for _, ref := range track.Artists {
				if !m.seenArtists[ref.ID] && len(collaborators) < collaboratorBudget {
					m.seenArtists[ref.ID] = true
					collaborators = append(collaborators, ref.ID)
				}
			}
		}
	}

	for _, artist := range s.fetchArtists(ctx, collaborators) {
		// Already marked seen above; append directly if it has artwork.
		if len(artist.Images) > 0 {
			m.artists = append(m.artists, artist)
		}
	}
	return m, nil
}

// fetchAlbums retrieves album details concurrently, dropping failures.
// Results keep the input album order so merging stays deterministic.
func (s *Service) fetchAlbums(ctx context.Context, albums []spotify.Album) []spotify.AlbumDetail {
	var wg sync.WaitGroup
	results := make([]*spotify.AlbumDetail, len(albums))
	for i, album := range albums {
		i, album := i, album
		wg.Add(1)
		go func() {
			defer wg.Done()
			detail, err := s.catalog.Album(ctx, album.ID)
			if err != nil {
				s.log.Debug().Err(err).Str("album_id", album.ID).Msg("album fetch failed")
				return
			}
			results[i] = &detail
		}()
	}
	wg.Wait()

	var details []spotify.AlbumDetail
	for _, detail := range results {
		if detail != nil {
			details = append(details, *detail)
		}
	}
	return details
}

// fetchArtists retrieves full artist details concurrently, dropping failures.
// Results keep the input ID order so merging stays deterministic.
func (s *Service) fetchArtists(ctx context.Context, ids []string) []spotify.Artist {
	var wg sync.WaitGroup
	results := make([]*spotify.Artist, len(ids))
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			artist, err := s.catalog.Artist(ctx, id)
			if err != nil {
				s.log.Debug().Err(err).Str("artist_id", id).Msg("artist fetch failed")
				return
			}
			results[i] = &artist
		}()
	}
	wg.Wait()

	var artists []spotify.Artist
	for _, artist := range results {
		if artist != nil {
			artists = append(artists, *artist)
		}
	}
	return artists
}
