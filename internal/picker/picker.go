// Package picker implements the song-of-the-day selection algorithm: a
// deterministic, multi-strategy ranking chain over the user's listening
// signals with a persistence-backed repeat-avoidance constraint.
package picker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/songday-dev/song-of-the-day/internal/db"
	"github.com/songday-dev/song-of-the-day/internal/spotify"
)

// Tunable selection thresholds. The values match the product's original
// behavior; there is no measured rationale behind either number.
const (
	// discoveryWindow bounds how recently a track must have been first
	// listened to for the discovery strategy to apply.
	discoveryWindow = 72 * time.Hour

	// repeatListenThreshold is the play count a track must exceed to count
	// as a repeat listen.
	repeatListenThreshold = 1
)

// Signal fetch sizes.
const (
	recentlyPlayedLimit = 50
	topTracksLimit      = 20
)

// ErrNoSignal is returned when every listening signal is empty and no
// recommendation fallback is possible. The UI shows "no recommendation
// available"; this is a terminal state, not a transient failure.
var ErrNoSignal = errors.New("picker: no listening signal available")

// Strategy names the rule that produced a pick.
type Strategy string

// Selection strategies in chain order.
const (
	StrategyAlreadyPicked  Strategy = "already_picked"
	StrategyDiscovery      Strategy = "discovery_repeats"
	StrategyRepeatListens  Strategy = "repeat_listens"
	StrategyMostPlayed     Strategy = "most_played"
	StrategyTopTrack       Strategy = "top_track"
	StrategyRepeatFallback Strategy = "repeat_fallback"
	StrategyRecommendation Strategy = "recommendation"
)

// Catalog is the slice of the streaming API the selector consumes.
type Catalog interface {
	RecentlyPlayed(ctx context.Context, limit int) ([]spotify.ListeningEvent, error)
	TopTracks(ctx context.Context, timeRange spotify.TimeRange, limit int) ([]spotify.Track, error)
	Recommendations(ctx context.Context, seedTrackIDs []string, limit int) ([]spotify.Track, error)
}

// History is the slice of the history store the selector consumes.
type History interface {
	GetForDay(ctx context.Context, userID uuid.UUID, day time.Time) (*db.DailyPick, error)
	Upsert(ctx context.Context, pick *db.DailyPick) error
	GetMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month) (map[string]db.DailyPick, error)
	AvailableMonths(ctx context.Context, userID uuid.UUID) ([]db.MonthCount, error)
}

// Service selects and persists daily picks.
type Service struct {
	catalog Catalog
	history History
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a picker service.
func New(catalog Catalog, history History, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		catalog: catalog,
		history: history,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of a selection.
type Result struct {
	Track    spotify.Track `json:"track"`
	Strategy Strategy      `json:"strategy"`
}

// candidate aggregates the recently-played feed per track. Candidates are
// kept in first-encounter order; the feed is most recent first, so ties on
// play count resolve to the most recent occurrence.
type candidate struct {
	track       spotify.Track
	count       int
	firstPlayed time.Time
}

// Pick returns today's song for the user, selecting and persisting one if
// today has no pick yet. The chain is fully deterministic given identical
// inputs.
func (s *Service) Pick(ctx context.Context, userID uuid.UUID) (*Result, error) {
	today := db.DayOf(s.now())

	// Idempotence: an existing pick for today is returned unchanged with no
	// catalog calls.
	if stored, err := s.history.GetForDay(ctx, userID, today); err == nil {
		return &Result{Track: trackFromPick(stored), Strategy: StrategyAlreadyPicked}, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		// A failed read falls through to reselection: availability wins over
		// a strict once-per-day guarantee.
		s.log.Warn().Err(err).Stringer("user_id", userID).Msg("today-pick lookup failed, reselecting")
	}

	recent, top, err := s.fetchSignals(ctx)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 && len(top) == 0 {
		return nil, ErrNoSignal
	}

	candidates := aggregate(recent)
	used := s.usedThisMonth(ctx, userID)

	result, err := s.runChain(ctx, recent, top, candidates, used)
	if err != nil {
		return nil, err
	}

	// Persistence must not block the pick: the reveal still happens even if
	// history writing fails.
	pick := pickFromTrack(userID, result.Track, s.now())
	if err := s.history.Upsert(ctx, pick); err != nil {
		s.log.Warn().Err(err).Stringer("user_id", userID).Str("track_id", result.Track.ID).
			Msg("failed to persist daily pick")
	}

	s.log.Info().Stringer("user_id", userID).Str("track_id", result.Track.ID).
		Str("strategy", string(result.Strategy)).Msg("selected song of the day")
	return result, nil
}

// fetchSignals retrieves the two listening signals concurrently; neither call
// depends on the other. Individual failures degrade to empty signals, except
// reauthentication failures, which always propagate.
func (s *Service) fetchSignals(ctx context.Context) ([]spotify.ListeningEvent, []spotify.Track, error) {
	var (
		wg        sync.WaitGroup
		recent    []spotify.ListeningEvent
		top       []spotify.Track
		recentErr error
		topErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		recent, recentErr = s.catalog.RecentlyPlayed(ctx, recentlyPlayedLimit)
	}()
	go func() {
		defer wg.Done()
		top, topErr = s.catalog.TopTracks(ctx, spotify.ShortTerm, topTracksLimit)
	}()
	wg.Wait()

	for _, err := range []error{recentErr, topErr} {
		if errors.Is(err, spotify.ErrReauthRequired) {
			return nil, nil, err
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("listening signal unavailable")
		}
	}
	if recentErr != nil {
		recent = nil
	}
	if topErr != nil {
		top = nil
	}
	return recent, top, nil
}

// usedThisMonth collects track IDs already revealed during the current
// calendar month. A failed read degrades to an empty set: a possible repeat
// is preferable to no pick.
func (s *Service) usedThisMonth(ctx context.Context, userID uuid.UUID) map[string]bool {
	now := s.now().UTC()
	picks, err := s.history.GetMonth(ctx, userID, now.Year(), now.Month())
	if err != nil {
		s.log.Warn().Err(err).Stringer("user_id", userID).Msg("month history unavailable")
		return map[string]bool{}
	}

	used := make(map[string]bool, len(picks))
	for _, pick := range picks {
		used[pick.TrackID] = true
	}
	return used
}

// runChain evaluates the selection strategies in strict order; the first one
// that yields a track wins.
func (s *Service) runChain(ctx context.Context, recent []spotify.ListeningEvent, top []spotify.Track, candidates []candidate, used map[string]bool) (*Result, error) {
	discoveredSince := s.now().Add(-discoveryWindow)

	// Recently discovered track with repeat listens, not yet used this month.
	if c, ok := best(candidates, func(c candidate) bool {
		return c.count > repeatListenThreshold && !used[c.track.ID] && c.firstPlayed.After(discoveredSince)
	}); ok {
		return &Result{Track: c.track, Strategy: StrategyDiscovery}, nil
	}

	// Any repeat-listened track, not yet used this month.
	if c, ok := best(candidates, func(c candidate) bool {
		return c.count > repeatListenThreshold && !used[c.track.ID]
	}); ok {
		return &Result{Track: c.track, Strategy: StrategyRepeatListens}, nil
	}

	// Most played of anything unused.
	if c, ok := best(candidates, func(c candidate) bool {
		return !used[c.track.ID]
	}); ok {
		return &Result{Track: c.track, Strategy: StrategyMostPlayed}, nil
	}

	// First top track not yet used this month.
	for _, track := range top {
		if !used[track.ID] {
			return &Result{Track: track, Strategy: StrategyTopTrack}, nil
		}
	}

	// Everything is used: a repeat beats no pick. Prefer the most played
	// recent track, else the favorite top track.
	if c, ok := best(candidates, func(candidate) bool { return true }); ok {
		return &Result{Track: c.track, Strategy: StrategyRepeatFallback}, nil
	}
	if len(top) > 0 {
		return &Result{Track: top[0], Strategy: StrategyRepeatFallback}, nil
	}

	// Last resort: recommendations seeded by the recent feed. Never called
	// with an empty seed list.
	seeds := seedIDs(recent)
	if len(seeds) == 0 {
		return nil, ErrNoSignal
	}
	recommended, err := s.catalog.Recommendations(ctx, seeds, 10)
	if err != nil {
		if errors.Is(err, spotify.ErrReauthRequired) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: recommendations failed: %v", ErrNoSignal, err)
	}
	if len(recommended) == 0 {
		return nil, ErrNoSignal
	}
	for _, track := range recommended {
		if !used[track.ID] {
			return &Result{Track: track, Strategy: StrategyRecommendation}, nil
		}
	}
	return &Result{Track: recommended[0], Strategy: StrategyRecommendation}, nil
}

// aggregate folds the feed into per-track candidates, preserving feed order
// for tie-breaking and tracking the earliest play for discovery reasoning.
func aggregate(events []spotify.ListeningEvent) []candidate {
	index := make(map[string]int)
	var candidates []candidate
	for _, event := range events {
		if i, ok := index[event.Track.ID]; ok {
			candidates[i].count++
			if event.PlayedAt.Before(candidates[i].firstPlayed) {
				candidates[i].firstPlayed = event.PlayedAt
			}
			continue
		}
		index[event.Track.ID] = len(candidates)
		candidates = append(candidates, candidate{
			track:       event.Track,
			count:       1,
			firstPlayed: event.PlayedAt,
		})
	}
	return candidates
}

// best returns the matching candidate with the highest play count. A strict
// greater-than comparison over the first-encounter ordering means ties go to
// the track seen earliest in the feed, i.e. the most recent occurrence.
func best(candidates []candidate, match func(candidate) bool) (candidate, bool) {
	var (
		winner candidate
		found  bool
	)
	for _, c := range candidates {
		if !match(c) {
			continue
		}
		if !found || c.count > winner.count {
			winner = c
			found = true
		}
	}
	return winner, found
}

func seedIDs(events []spotify.ListeningEvent) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, event := range events {
		if seen[event.Track.ID] {
			continue
		}
		seen[event.Track.ID] = true
		ids = append(ids, event.Track.ID)
	}
	return ids
}

// pickFromTrack flattens a track into its history row.
func pickFromTrack(userID uuid.UUID, track spotify.Track, revealedAt time.Time) *db.DailyPick {
	names := make([]string, len(track.Artists))
	for i, a := range track.Artists {
		names[i] = a.Name
	}

	pick := &db.DailyPick{
		UserID:      userID,
		PickDay:     db.DayOf(revealedAt),
		TrackID:     track.ID,
		TrackName:   track.Name,
		ArtistNames: strings.Join(names, ", "),
		AlbumName:   track.Album.Name,
		RevealedAt:  revealedAt.UTC(),
	}
	if len(track.Album.Images) > 0 {
		url := track.Album.Images[0].URL
		pick.AlbumImageURL = &url
	}
	popularity := track.Popularity
	pick.Popularity = &popularity
	if track.ExternalURL != "" {
		url := track.ExternalURL
		pick.ExternalURL = &url
	}
	return pick
}

// trackFromPick rebuilds the canonical track shape from a flattened history
// row. Duration and per-artist IDs are not stored and come back zero-valued.
func trackFromPick(pick *db.DailyPick) spotify.Track {
	var artists []spotify.ArtistRef
	for _, name := range strings.Split(pick.ArtistNames, ", ") {
		if name != "" {
			artists = append(artists, spotify.ArtistRef{Name: name})
		}
	}

	track := spotify.Track{
		ID:      pick.TrackID,
		Name:    pick.TrackName,
		Artists: artists,
		Album:   spotify.Album{Name: pick.AlbumName},
	}
	if pick.AlbumImageURL != nil {
		track.Album.Images = []spotify.Image{{URL: *pick.AlbumImageURL}}
	}
	if pick.Popularity != nil {
		track.Popularity = *pick.Popularity
	}
	if pick.ExternalURL != nil {
		track.ExternalURL = *pick.ExternalURL
	}
	return track
}
