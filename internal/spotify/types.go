package spotify

import "time"

// TimeRange selects the window for top-item queries.
type TimeRange string

// Supported time ranges for top tracks and artists.
const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// Image is a sized artwork URL.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ArtistRef is the lightweight artist reference embedded in tracks.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Artist is a full artist object with genres and artwork.
type Artist struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Genres      []string `json:"genres"`
	Images      []Image  `json:"images"`
	Popularity  int      `json:"popularity"`
	ExternalURL string   `json:"external_url"`
}

// Album is the album snapshot embedded in tracks.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track is the canonical track representation used across the application.
// Provider payloads and history rows are both translated into this shape at
// the edges, so nothing downstream depends on either raw schema.
type Track struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Artists     []ArtistRef `json:"artists"`
	Album       Album       `json:"album"`
	DurationMs  int         `json:"duration_ms"`
	Popularity  int         `json:"popularity"`
	ExternalURL string      `json:"external_url"`
	PreviewURL  string      `json:"preview_url,omitempty"`
}

// ListeningEvent is one entry from the recently-played feed.
// Feed ordering (most recent first) is preserved by the client.
type ListeningEvent struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}

// AlbumDetail is a full album with its track roster.
type AlbumDetail struct {
	Album
	Tracks []Track `json:"tracks"`
}

// SearchResult holds typed search hits. Only the requested types are populated.
type SearchResult struct {
	Artists []Artist `json:"artists,omitempty"`
	Tracks  []Track  `json:"tracks,omitempty"`
}

// UserProfile is the authenticated user's Spotify profile.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Playlist is a created playlist reference.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ExternalURL string `json:"external_url"`
}

// ----------------------------------------------------------------------------
// Wire types: raw Web API shapes, converted to the canonical types above.
// ----------------------------------------------------------------------------

type imageObject struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type artistObject struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Genres       []string          `json:"genres"`
	Images       []imageObject     `json:"images"`
	Popularity   int               `json:"popularity"`
	ExternalURLs map[string]string `json:"external_urls"`
}

type albumObject struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Images []imageObject `json:"images"`
}

type trackObject struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Artists      []artistObject    `json:"artists"`
	Album        albumObject       `json:"album"`
	DurationMs   int               `json:"duration_ms"`
	Popularity   int               `json:"popularity"`
	ExternalURLs map[string]string `json:"external_urls"`
	PreviewURL   string            `json:"preview_url"`
}

type playHistoryObject struct {
	Track    trackObject `json:"track"`
	PlayedAt time.Time   `json:"played_at"`
}

type recentlyPlayedPage struct {
	Items []playHistoryObject `json:"items"`
}

type topTracksPage struct {
	Items []trackObject `json:"items"`
}

type topArtistsPage struct {
	Items []artistObject `json:"items"`
}

type recommendationsResponse struct {
	Tracks []trackObject `json:"tracks"`
}

type albumDetailObject struct {
	albumObject
	Tracks struct {
		Items []trackObject `json:"items"`
	} `json:"tracks"`
}

type artistAlbumsPage struct {
	Items []albumObject `json:"items"`
}

type searchResponse struct {
	Artists *struct {
		Items []artistObject `json:"items"`
	} `json:"artists"`
	Tracks *struct {
		Items []trackObject `json:"items"`
	} `json:"tracks"`
}

type userProfileObject struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"display_name"`
	Email       string        `json:"email"`
	Images      []imageObject `json:"images"`
}

type playlistObject struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ExternalURLs map[string]string `json:"external_urls"`
}

func toImages(in []imageObject) []Image {
	if len(in) == 0 {
		return nil
	}
	out := make([]Image, len(in))
	for i, img := range in {
		out[i] = Image{URL: img.URL, Width: img.Width, Height: img.Height}
	}
	return out
}

func toArtist(in artistObject) Artist {
	return Artist{
		ID:          in.ID,
		Name:        in.Name,
		Genres:      in.Genres,
		Images:      toImages(in.Images),
		Popularity:  in.Popularity,
		ExternalURL: in.ExternalURLs["spotify"],
	}
}

func toAlbum(in albumObject) Album {
	return Album{ID: in.ID, Name: in.Name, Images: toImages(in.Images)}
}

func toTrack(in trackObject) Track {
	refs := make([]ArtistRef, len(in.Artists))
	for i, a := range in.Artists {
		refs[i] = ArtistRef{ID: a.ID, Name: a.Name}
	}
	return Track{
		ID:          in.ID,
		Name:        in.Name,
		Artists:     refs,
		Album:       toAlbum(in.Album),
		DurationMs:  in.DurationMs,
		Popularity:  in.Popularity,
		ExternalURL: in.ExternalURLs["spotify"],
		PreviewURL:  in.PreviewURL,
	}
}

func toTracks(in []trackObject) []Track {
	tracks := make([]Track, len(in))
	for i, t := range in {
		tracks[i] = toTrack(t)
	}
	return tracks
}
