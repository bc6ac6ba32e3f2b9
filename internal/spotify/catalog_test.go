package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func writeRawJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func newCatalogClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(validToken("access"), &fakeRefresher{}, WithBaseURL(server.URL))
}

func TestRecentlyPlayedPreservesFeedOrder(t *testing.T) {
	client := newCatalogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/player/recently-played" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		writeRawJSON(w, `{
			"items": [
				{"track": {"id": "t2", "name": "Second Song", "artists": [{"id": "a1", "name": "Artist"}],
					"album": {"id": "al1", "name": "Album", "images": [{"url": "http://img/1", "width": 300, "height": 300}]},
					"duration_ms": 180000, "popularity": 61,
					"external_urls": {"spotify": "http://open/t2"}},
				 "played_at": "2026-03-02T10:00:00Z"},
				{"track": {"id": "t1", "name": "First Song", "artists": [{"id": "a1", "name": "Artist"}],
					"album": {"id": "al1", "name": "Album"}, "duration_ms": 150000, "popularity": 40,
					"external_urls": {"spotify": "http://open/t1"}},
				 "played_at": "2026-03-01T10:00:00Z"}
			]
		}`)
	}))

	events, err := client.RecentlyPlayed(context.Background(), 50)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Track.ID != "t2" || events[1].Track.ID != "t1" {
		t.Errorf("event order = %q, %q, want t2, t1", events[0].Track.ID, events[1].Track.ID)
	}
	first := events[0].Track
	if first.Name != "Second Song" || first.Album.Name != "Album" || first.ExternalURL != "http://open/t2" {
		t.Errorf("track fields not mapped: %+v", first)
	}
	if len(first.Album.Images) != 1 || first.Album.Images[0].URL != "http://img/1" {
		t.Errorf("album images not mapped: %+v", first.Album.Images)
	}
	if !events[0].PlayedAt.After(events[1].PlayedAt) {
		t.Errorf("played_at not parsed: %v, %v", events[0].PlayedAt, events[1].PlayedAt)
	}
}

func TestRecommendationsTruncatesSeeds(t *testing.T) {
	var seeds string
	client := newCatalogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seeds = r.URL.Query().Get("seed_tracks")
		writeRawJSON(w, `{"tracks": [{"id": "r1", "name": "Rec"}]}`)
	}))

	tracks, err := client.Recommendations(context.Background(), []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"}, 10)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	if seeds != "s1,s2,s3,s4,s5" {
		t.Errorf("seed_tracks = %q, want first five seeds", seeds)
	}
	if len(tracks) != 1 || tracks[0].ID != "r1" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestAlbumStampsParentOntoRoster(t *testing.T) {
	client := newCatalogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/albums/al1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeRawJSON(w, `{
			"id": "al1", "name": "The Album",
			"images": [{"url": "http://img/cover", "width": 640, "height": 640}],
			"tracks": {"items": [
				{"id": "t1", "name": "Opener", "artists": [{"id": "a1", "name": "Artist"}]},
				{"id": "t2", "name": "Closer", "artists": [{"id": "a1", "name": "Artist"}]}
			]}
		}`)
	}))

	detail, err := client.Album(context.Background(), "al1")
	if err != nil {
		t.Fatalf("Album() error = %v", err)
	}
	if detail.Name != "The Album" || len(detail.Tracks) != 2 {
		t.Fatalf("detail = %+v", detail)
	}
	for _, track := range detail.Tracks {
		if track.Album.ID != "al1" || track.Album.Name != "The Album" {
			t.Errorf("roster track %q missing parent album: %+v", track.ID, track.Album)
		}
		if len(track.Album.Images) == 0 {
			t.Errorf("roster track %q missing album artwork", track.ID)
		}
	}
}

func TestSearchPopulatesOnlyRequestedType(t *testing.T) {
	client := newCatalogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != "artist" {
			t.Errorf("type = %q, want artist", got)
		}
		if got := r.URL.Query().Get("q"); got != `genre:"indie rock"` {
			t.Errorf("q = %q", got)
		}
		writeRawJSON(w, `{"artists": {"items": [
			{"id": "a1", "name": "Band", "genres": ["indie rock"],
			 "images": [{"url": "http://img/a1"}], "popularity": 70,
			 "external_urls": {"spotify": "http://open/a1"}}
		]}}`)
	}))

	result, err := client.Search(context.Background(), `genre:"indie rock"`, SearchArtists, 15)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Artists) != 1 || result.Artists[0].ID != "a1" {
		t.Fatalf("artists = %+v", result.Artists)
	}
	if result.Artists[0].ExternalURL != "http://open/a1" {
		t.Errorf("ExternalURL = %q", result.Artists[0].ExternalURL)
	}
	if result.Tracks != nil {
		t.Errorf("tracks = %+v, want none", result.Tracks)
	}
}

func TestAddTracksToPlaylistBatches(t *testing.T) {
	var batches []int
	client := newCatalogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/playlists/pl1/tracks" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body struct {
			URIs []string `json:"uris"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		batches = append(batches, len(body.URIs))
		w.WriteHeader(http.StatusCreated)
	}))

	uris := make([]string, 231)
	for i := range uris {
		uris[i] = TrackURI(fmt.Sprintf("t%03d", i))
	}
	if err := client.AddTracksToPlaylist(context.Background(), "pl1", uris); err != nil {
		t.Fatalf("AddTracksToPlaylist() error = %v", err)
	}

	want := []int{100, 100, 31}
	if len(batches) != len(want) {
		t.Fatalf("batches = %v, want %v", batches, want)
	}
	for i := range want {
		if batches[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, batches[i], want[i])
		}
	}
}

func TestAPIErrorParsing(t *testing.T) {
	client := newCatalogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"status": 429, "message": "rate limit exceeded"}}`))
	}))

	_, err := client.CurrentUser(context.Background())
	if err == nil {
		t.Fatal("CurrentUser() error = nil, want APIError")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", apiErr.Status)
	}
	if !strings.Contains(apiErr.Message, "rate limit") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}
