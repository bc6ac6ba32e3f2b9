package picker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/songday-dev/song-of-the-day/internal/db"
	"github.com/songday-dev/song-of-the-day/internal/spotify"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	recent      []spotify.ListeningEvent
	top         []spotify.Track
	recommended []spotify.Track

	recentErr error
	topErr    error

	recentCalls int
	topCalls    int
	recCalls    int
	recSeeds    []string
}

func (f *fakeCatalog) RecentlyPlayed(_ context.Context, _ int) ([]spotify.ListeningEvent, error) {
	f.recentCalls++
	return f.recent, f.recentErr
}

func (f *fakeCatalog) TopTracks(_ context.Context, _ spotify.TimeRange, _ int) ([]spotify.Track, error) {
	f.topCalls++
	return f.top, f.topErr
}

func (f *fakeCatalog) Recommendations(_ context.Context, seedTrackIDs []string, _ int) ([]spotify.Track, error) {
	f.recCalls++
	f.recSeeds = seedTrackIDs
	return f.recommended, nil
}

type fakeHistory struct {
	today      *db.DailyPick
	monthPicks map[string]db.DailyPick

	getForDayErr error
	upsertErr    error
	getMonthErr  error

	upserted []*db.DailyPick
}

func (f *fakeHistory) GetForDay(_ context.Context, _ uuid.UUID, _ time.Time) (*db.DailyPick, error) {
	if f.getForDayErr != nil {
		return nil, f.getForDayErr
	}
	if f.today == nil {
		return nil, db.ErrNotFound
	}
	return f.today, nil
}

func (f *fakeHistory) Upsert(_ context.Context, pick *db.DailyPick) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, pick)
	return nil
}

func (f *fakeHistory) GetMonth(_ context.Context, _ uuid.UUID, _ int, _ time.Month) (map[string]db.DailyPick, error) {
	if f.getMonthErr != nil {
		return nil, f.getMonthErr
	}
	return f.monthPicks, nil
}

func (f *fakeHistory) AvailableMonths(_ context.Context, _ uuid.UUID) ([]db.MonthCount, error) {
	return nil, nil
}

func track(id string) spotify.Track {
	return spotify.Track{
		ID:      id,
		Name:    "Track " + id,
		Artists: []spotify.ArtistRef{{ID: "artist-" + id, Name: "Artist " + id}},
		Album:   spotify.Album{ID: "album-" + id, Name: "Album " + id},
	}
}

type playSpec struct {
	id    string
	count int
}

func play(id string, count int) playSpec { return playSpec{id, count} }

// plays expands play counts into a feed, most recent first, one hour apart.
// The first listed track is the most recently played.
func plays(specs ...playSpec) []spotify.ListeningEvent {
	var events []spotify.ListeningEvent
	at := testNow
	for _, spec := range specs {
		for i := 0; i < spec.count; i++ {
			events = append(events, spotify.ListeningEvent{Track: track(spec.id), PlayedAt: at})
			at = at.Add(-time.Hour)
		}
	}
	return events
}

func used(ids ...string) map[string]db.DailyPick {
	picks := make(map[string]db.DailyPick, len(ids))
	for i, id := range ids {
		picks[time.Date(2026, time.March, i+1, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)] = db.DailyPick{TrackID: id}
	}
	return picks
}

func newTestService(catalog *fakeCatalog, history *fakeHistory) *Service {
	return New(catalog, history, zerolog.Nop(), WithClock(func() time.Time { return testNow }))
}

func TestPickReturnsStoredPickUnchanged(t *testing.T) {
	image := "http://img/cover"
	external := "http://open/t1"
	popularity := 55
	catalog := &fakeCatalog{}
	history := &fakeHistory{today: &db.DailyPick{
		TrackID:       "t1",
		TrackName:     "Stored Song",
		ArtistNames:   "First Artist, Second Artist",
		AlbumName:     "Stored Album",
		AlbumImageURL: &image,
		Popularity:    &popularity,
		ExternalURL:   &external,
	}}

	result, err := newTestService(catalog, history).Pick(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if result.Strategy != StrategyAlreadyPicked {
		t.Errorf("strategy = %q, want %q", result.Strategy, StrategyAlreadyPicked)
	}
	if result.Track.ID != "t1" || result.Track.Name != "Stored Song" {
		t.Errorf("track = %+v", result.Track)
	}
	if len(result.Track.Artists) != 2 || result.Track.Artists[1].Name != "Second Artist" {
		t.Errorf("artists = %+v", result.Track.Artists)
	}
	if catalog.recentCalls != 0 || catalog.topCalls != 0 || catalog.recCalls != 0 {
		t.Errorf("catalog touched for an already-picked day: %+v", catalog)
	}
	if len(history.upserted) != 0 {
		t.Errorf("history written for an already-picked day")
	}
}

func TestPickStrategies(t *testing.T) {
	tests := []struct {
		name         string
		recent       []spotify.ListeningEvent
		top          []spotify.Track
		monthPicks   map[string]db.DailyPick
		wantTrack    string
		wantStrategy Strategy
	}{
		{
			name:         "repeat listens win over single plays",
			recent:       plays(play("x", 3), play("y", 1)),
			top:          []spotify.Track{track("y"), track("z")},
			wantTrack:    "x",
			wantStrategy: StrategyDiscovery,
		},
		{
			name:         "used repeat falls through to next unused",
			recent:       plays(play("x", 3), play("y", 1)),
			top:          []spotify.Track{track("y"), track("z")},
			monthPicks:   used("x"),
			wantTrack:    "y",
			wantStrategy: StrategyMostPlayed,
		},
		{
			name:         "top track when feed is empty",
			top:          []spotify.Track{track("y"), track("z")},
			monthPicks:   used("y"),
			wantTrack:    "z",
			wantStrategy: StrategyTopTrack,
		},
		{
			name:         "highest play count wins",
			recent:       plays(play("a", 2), play("b", 4), play("c", 1)),
			wantTrack:    "b",
			wantStrategy: StrategyDiscovery,
		},
		{
			name:         "tie goes to the most recent occurrence",
			recent:       plays(play("a", 2), play("b", 2)),
			wantTrack:    "a",
			wantStrategy: StrategyDiscovery,
		},
		{
			name:         "all used falls back to a repeat",
			recent:       plays(play("x", 3), play("y", 1)),
			top:          []spotify.Track{track("y")},
			monthPicks:   used("x", "y"),
			wantTrack:    "x",
			wantStrategy: StrategyRepeatFallback,
		},
		{
			name:         "empty feed with exhausted top tracks repeats the favorite",
			top:          []spotify.Track{track("y"), track("z")},
			monthPicks:   used("y", "z"),
			wantTrack:    "y",
			wantStrategy: StrategyRepeatFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &fakeCatalog{recent: tt.recent, top: tt.top}
			history := &fakeHistory{monthPicks: tt.monthPicks}

			result, err := newTestService(catalog, history).Pick(context.Background(), uuid.New())
			if err != nil {
				t.Fatalf("Pick() error = %v", err)
			}
			if result.Track.ID != tt.wantTrack {
				t.Errorf("track = %q, want %q", result.Track.ID, tt.wantTrack)
			}
			if result.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", result.Strategy, tt.wantStrategy)
			}
			if len(history.upserted) != 1 {
				t.Fatalf("upserts = %d, want 1", len(history.upserted))
			}
			if got := history.upserted[0].TrackID; got != tt.wantTrack {
				t.Errorf("persisted track = %q, want %q", got, tt.wantTrack)
			}
			if got := history.upserted[0].PickDay; !got.Equal(db.DayOf(testNow)) {
				t.Errorf("persisted day = %v, want %v", got, db.DayOf(testNow))
			}
		})
	}
}

func TestPickDiscoveryWindow(t *testing.T) {
	// Both tracks have repeat listens, but "old" was first heard outside the
	// discovery window, so the fresher discovery wins despite a lower count.
	old := track("old")
	fresh := track("fresh")
	recent := []spotify.ListeningEvent{
		{Track: old, PlayedAt: testNow},
		{Track: fresh, PlayedAt: testNow.Add(-time.Hour)},
		{Track: old, PlayedAt: testNow.Add(-2 * time.Hour)},
		{Track: old, PlayedAt: testNow.Add(-100 * time.Hour)},
		{Track: fresh, PlayedAt: testNow.Add(-48 * time.Hour)},
	}
	catalog := &fakeCatalog{recent: recent}
	history := &fakeHistory{}

	result, err := newTestService(catalog, history).Pick(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if result.Track.ID != "fresh" {
		t.Errorf("track = %q, want fresh", result.Track.ID)
	}
	if result.Strategy != StrategyDiscovery {
		t.Errorf("strategy = %q, want %q", result.Strategy, StrategyDiscovery)
	}
}

func TestPickNoSignal(t *testing.T) {
	catalog := &fakeCatalog{}
	history := &fakeHistory{}

	_, err := newTestService(catalog, history).Pick(context.Background(), uuid.New())
	if !errors.Is(err, ErrNoSignal) {
		t.Fatalf("Pick() error = %v, want ErrNoSignal", err)
	}
	if catalog.recCalls != 0 {
		t.Errorf("recommendations called with no seeds")
	}
	if len(history.upserted) != 0 {
		t.Errorf("pick persisted despite no signal")
	}
}

func TestPickSignalFailureDegrades(t *testing.T) {
	catalog := &fakeCatalog{
		recentErr: errors.New("boom"),
		top:       []spotify.Track{track("y")},
	}
	history := &fakeHistory{}

	result, err := newTestService(catalog, history).Pick(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if result.Track.ID != "y" || result.Strategy != StrategyTopTrack {
		t.Errorf("result = %+v, want top track y", result)
	}
}

func TestPickReauthPropagates(t *testing.T) {
	catalog := &fakeCatalog{recentErr: spotify.ErrReauthRequired}
	history := &fakeHistory{}

	_, err := newTestService(catalog, history).Pick(context.Background(), uuid.New())
	if !errors.Is(err, spotify.ErrReauthRequired) {
		t.Fatalf("Pick() error = %v, want ErrReauthRequired", err)
	}
}

func TestPickSurvivesHistoryFailures(t *testing.T) {
	catalog := &fakeCatalog{recent: plays(play("x", 3))}
	history := &fakeHistory{
		getForDayErr: errors.New("connection refused"),
		getMonthErr:  errors.New("connection refused"),
		upsertErr:    errors.New("connection refused"),
	}

	result, err := newTestService(catalog, history).Pick(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Pick() error = %v, want pick despite store failures", err)
	}
	if result.Track.ID != "x" {
		t.Errorf("track = %q, want x", result.Track.ID)
	}
}

func TestPickPersistsFlattenedRow(t *testing.T) {
	chosen := track("x")
	chosen.Artists = []spotify.ArtistRef{{Name: "First"}, {Name: "Second"}}
	chosen.Album.Images = []spotify.Image{{URL: "http://img/cover"}}
	chosen.Popularity = 80
	chosen.ExternalURL = "http://open/x"

	catalog := &fakeCatalog{recent: []spotify.ListeningEvent{
		{Track: chosen, PlayedAt: testNow},
		{Track: chosen, PlayedAt: testNow.Add(-time.Hour)},
	}}
	history := &fakeHistory{}

	if _, err := newTestService(catalog, history).Pick(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if len(history.upserted) != 1 {
		t.Fatalf("upserts = %d, want 1", len(history.upserted))
	}

	row := history.upserted[0]
	if row.ArtistNames != "First, Second" {
		t.Errorf("ArtistNames = %q", row.ArtistNames)
	}
	if row.AlbumImageURL == nil || *row.AlbumImageURL != "http://img/cover" {
		t.Errorf("AlbumImageURL = %v", row.AlbumImageURL)
	}
	if row.Popularity == nil || *row.Popularity != 80 {
		t.Errorf("Popularity = %v", row.Popularity)
	}
	if !row.RevealedAt.Equal(testNow) {
		t.Errorf("RevealedAt = %v, want %v", row.RevealedAt, testNow)
	}
}

func TestAggregateCountsAndOrder(t *testing.T) {
	events := plays(play("a", 1), play("b", 3), play("a", 1))
	candidates := aggregate(events)

	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}
	if candidates[0].track.ID != "a" || candidates[0].count != 2 {
		t.Errorf("candidate 0 = %q count %d, want a count 2", candidates[0].track.ID, candidates[0].count)
	}
	if candidates[1].track.ID != "b" || candidates[1].count != 3 {
		t.Errorf("candidate 1 = %q count %d, want b count 3", candidates[1].track.ID, candidates[1].count)
	}
	if !candidates[0].firstPlayed.Before(candidates[1].firstPlayed) {
		t.Errorf("firstPlayed for a = %v, want earliest occurrence", candidates[0].firstPlayed)
	}
}
