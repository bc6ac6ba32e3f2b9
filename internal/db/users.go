package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles user database operations.
type UserRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves a user by internal ID.
func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, spotify_id, email, display_name, avatar_url, created_at
		FROM users
		WHERE id = $1
	`
	var user User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.SpotifyID,
		&user.Email,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}

// GetBySpotifyID retrieves a user by their Spotify account ID.
func (r *UserRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*User, error) {
	query := `
		SELECT id, spotify_id, email, display_name, avatar_url, created_at
		FROM users
		WHERE spotify_id = $1
	`
	var user User
	err := r.pool.QueryRow(ctx, query, spotifyID).Scan(
		&user.ID,
		&user.SpotifyID,
		&user.Email,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by spotify id: %w", err)
	}
	return &user, nil
}

// GetOrCreate looks up a user by Spotify account ID, creating the local
// identity on first sign-in. Profile fields are refreshed on every sign-in.
// The spotify_id unique constraint makes concurrent first sign-ins converge
// on a single row.
func (r *UserRepository) GetOrCreate(ctx context.Context, spotifyID, email, displayName string, avatarURL *string) (*User, error) {
	query := `
		INSERT INTO users (id, spotify_id, email, display_name, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (spotify_id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url
		RETURNING id, spotify_id, email, display_name, avatar_url, created_at
	`
	var user User
	err := r.pool.QueryRow(ctx, query,
		uuid.New(),
		spotifyID,
		email,
		displayName,
		avatarURL,
	).Scan(
		&user.ID,
		&user.SpotifyID,
		&user.Email,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return &user, nil
}
