package spotify

import (
	"context"
	"fmt"
)

// maxTracksPerRequest is the provider's cap on playlist track additions.
const maxTracksPerRequest = 100

// CreatePlaylist creates a new playlist for the given Spotify user.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (Playlist, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var obj playlistObject
	if err := c.post(ctx, "/users/"+userID+"/playlists", body, &obj); err != nil {
		return Playlist{}, fmt.Errorf("creating playlist: %w", err)
	}

	return Playlist{
		ID:          obj.ID,
		Name:        obj.Name,
		ExternalURL: obj.ExternalURLs["spotify"],
	}, nil
}

// AddTracksToPlaylist adds track URIs to a playlist, batching large sets.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackURIs []string) error {
	for i := 0; i < len(trackURIs); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(trackURIs))
		batch := trackURIs[i:end]

		body := map[string]any{"uris": batch}
		if err := c.post(ctx, "/playlists/"+playlistID+"/tracks", body, nil); err != nil {
			return fmt.Errorf("adding tracks (batch %d-%d): %w", i+1, end, err)
		}
	}
	return nil
}

// TrackURI converts a track ID to the URI form playlist endpoints expect.
func TrackURI(trackID string) string {
	return "spotify:track:" + trackID
}
