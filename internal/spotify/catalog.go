package spotify

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

const (
	// maxPageLimit is the provider's cap on list endpoints.
	maxPageLimit = 50

	// maxSeedTracks is the provider's cap on recommendation seeds.
	maxSeedTracks = 5
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// RecentlyPlayed returns the user's listening events, most recent first.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]ListeningEvent, error) {
	query := url.Values{"limit": {strconv.Itoa(clampLimit(limit))}}

	var page recentlyPlayedPage
	if err := c.get(ctx, "/me/player/recently-played", query, &page); err != nil {
		return nil, err
	}

	events := make([]ListeningEvent, len(page.Items))
	for i, item := range page.Items {
		events[i] = ListeningEvent{Track: toTrack(item.Track), PlayedAt: item.PlayedAt}
	}
	return events, nil
}

// TopTracks returns the user's top tracks for the given time range.
func (c *Client) TopTracks(ctx context.Context, timeRange TimeRange, limit int) ([]Track, error) {
	query := url.Values{
		"time_range": {string(timeRange)},
		"limit":      {strconv.Itoa(clampLimit(limit))},
	}

	var page topTracksPage
	if err := c.get(ctx, "/me/top/tracks", query, &page); err != nil {
		return nil, err
	}
	return toTracks(page.Items), nil
}

// TopArtists returns the user's top artists for the given time range.
func (c *Client) TopArtists(ctx context.Context, timeRange TimeRange, limit int) ([]Artist, error) {
	query := url.Values{
		"time_range": {string(timeRange)},
		"limit":      {strconv.Itoa(clampLimit(limit))},
	}

	var page topArtistsPage
	if err := c.get(ctx, "/me/top/artists", query, &page); err != nil {
		return nil, err
	}

	artists := make([]Artist, len(page.Items))
	for i, a := range page.Items {
		artists[i] = toArtist(a)
	}
	return artists, nil
}

// Recommendations returns tracks seeded by the given track IDs. The seed list
// is truncated to the provider's cap of 5 before the call.
func (c *Client) Recommendations(ctx context.Context, seedTrackIDs []string, limit int) ([]Track, error) {
	if len(seedTrackIDs) > maxSeedTracks {
		seedTrackIDs = seedTrackIDs[:maxSeedTracks]
	}
	query := url.Values{
		"seed_tracks": {strings.Join(seedTrackIDs, ",")},
		"limit":       {strconv.Itoa(clampLimit(limit))},
	}

	var resp recommendationsResponse
	if err := c.get(ctx, "/recommendations", query, &resp); err != nil {
		return nil, err
	}
	return toTracks(resp.Tracks), nil
}

// Artist returns full artist detail including genres and artwork.
func (c *Client) Artist(ctx context.Context, id string) (Artist, error) {
	var obj artistObject
	if err := c.get(ctx, "/artists/"+id, nil, &obj); err != nil {
		return Artist{}, err
	}
	return toArtist(obj), nil
}

// ArtistAlbums returns an artist's albums and singles.
func (c *Client) ArtistAlbums(ctx context.Context, id string, limit int) ([]Album, error) {
	query := url.Values{
		"include_groups": {"album,single"},
		"limit":          {strconv.Itoa(clampLimit(limit))},
	}

	var page artistAlbumsPage
	if err := c.get(ctx, "/artists/"+id+"/albums", query, &page); err != nil {
		return nil, err
	}

	albums := make([]Album, len(page.Items))
	for i, a := range page.Items {
		albums[i] = toAlbum(a)
	}
	return albums, nil
}

// Album returns full album detail with its track roster. Album-roster tracks
// carry the parent album, which the provider omits from the nested objects.
func (c *Client) Album(ctx context.Context, id string) (AlbumDetail, error) {
	var obj albumDetailObject
	if err := c.get(ctx, "/albums/"+id, nil, &obj); err != nil {
		return AlbumDetail{}, err
	}

	detail := AlbumDetail{Album: toAlbum(obj.albumObject)}
	for _, t := range obj.Tracks.Items {
		track := toTrack(t)
		track.Album = detail.Album
		detail.Tracks = append(detail.Tracks, track)
	}
	return detail, nil
}

// FullTrack returns full track detail.
func (c *Client) FullTrack(ctx context.Context, id string) (Track, error) {
	var obj trackObject
	if err := c.get(ctx, "/tracks/"+id, nil, &obj); err != nil {
		return Track{}, err
	}
	return toTrack(obj), nil
}

// SearchType selects what a search query matches.
type SearchType string

// Search types accepted by Search.
const (
	SearchArtists SearchType = "artist"
	SearchTracks  SearchType = "track"
)

// Search runs a catalog search for the given type.
func (c *Client) Search(ctx context.Context, q string, searchType SearchType, limit int) (SearchResult, error) {
	query := url.Values{
		"q":     {q},
		"type":  {string(searchType)},
		"limit": {strconv.Itoa(clampLimit(limit))},
	}

	var resp searchResponse
	if err := c.get(ctx, "/search", query, &resp); err != nil {
		return SearchResult{}, err
	}

	var result SearchResult
	if resp.Artists != nil {
		for _, a := range resp.Artists.Items {
			result.Artists = append(result.Artists, toArtist(a))
		}
	}
	if resp.Tracks != nil {
		result.Tracks = toTracks(resp.Tracks.Items)
	}
	return result, nil
}

// CurrentUser returns the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context) (UserProfile, error) {
	var obj userProfileObject
	if err := c.get(ctx, "/me", nil, &obj); err != nil {
		return UserProfile{}, err
	}

	profile := UserProfile{
		ID:          obj.ID,
		DisplayName: obj.DisplayName,
		Email:       obj.Email,
	}
	if len(obj.Images) > 0 {
		profile.AvatarURL = obj.Images[0].URL
	}
	return profile, nil
}
