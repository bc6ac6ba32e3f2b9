package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PickRepository handles daily pick database operations.
type PickRepository struct {
	pool *pgxpool.Pool
}

const pickColumns = `user_id, pick_day, track_id, track_name, artist_names, album_name, album_image_url, popularity, external_url, revealed_at`

// DayOf truncates a timestamp to its UTC calendar day. All day arithmetic in
// the application goes through this single definition.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetForDay retrieves the pick revealed during the half-open UTC day range
// [day, day+24h). Returns ErrNotFound when no pick exists.
func (r *PickRepository) GetForDay(ctx context.Context, userID uuid.UUID, day time.Time) (*DailyPick, error) {
	start := DayOf(day)
	end := start.Add(24 * time.Hour)

	query := `
		SELECT ` + pickColumns + `
		FROM daily_picks
		WHERE user_id = $1 AND revealed_at >= $2 AND revealed_at < $3
	`
	pick, err := scanPick(r.pool.QueryRow(ctx, query, userID, start, end))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying daily pick: %w", err)
	}
	return pick, nil
}

// Upsert inserts the pick, updating the existing row's track fields when one
// already exists for the same user and day. Last writer wins on conflict, so
// same-day re-invocation and insert races both converge on one row.
func (r *PickRepository) Upsert(ctx context.Context, pick *DailyPick) error {
	query := `
		INSERT INTO daily_picks (` + pickColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, pick_day) DO UPDATE SET
			track_id = EXCLUDED.track_id,
			track_name = EXCLUDED.track_name,
			artist_names = EXCLUDED.artist_names,
			album_name = EXCLUDED.album_name,
			album_image_url = EXCLUDED.album_image_url,
			popularity = EXCLUDED.popularity,
			external_url = EXCLUDED.external_url
	`
	_, err := r.pool.Exec(ctx, query,
		pick.UserID,
		DayOf(pick.RevealedAt),
		pick.TrackID,
		pick.TrackName,
		pick.ArtistNames,
		pick.AlbumName,
		pick.AlbumImageURL,
		pick.Popularity,
		pick.ExternalURL,
		pick.RevealedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting daily pick: %w", err)
	}
	return nil
}

// GetMonth retrieves all picks for a calendar month, keyed by ISO day
// (YYYY-MM-DD) in UTC.
func (r *PickRepository) GetMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month) (map[string]DailyPick, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT ` + pickColumns + `
		FROM daily_picks
		WHERE user_id = $1 AND pick_day >= $2 AND pick_day < $3
		ORDER BY pick_day
	`
	rows, err := r.pool.Query(ctx, query, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying month history: %w", err)
	}
	defer rows.Close()

	picks := make(map[string]DailyPick)
	for rows.Next() {
		pick, err := scanPick(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning daily pick: %w", err)
		}
		picks[pick.PickDay.Format(time.DateOnly)] = *pick
	}
	return picks, rows.Err()
}

// AvailableMonths returns the distinct months holding picks for a user with
// per-month counts, newest first.
func (r *PickRepository) AvailableMonths(ctx context.Context, userID uuid.UUID) ([]MonthCount, error) {
	query := `
		SELECT
			EXTRACT(YEAR FROM pick_day)::int AS year,
			EXTRACT(MONTH FROM pick_day)::int AS month,
			COUNT(*)::int AS song_count
		FROM daily_picks
		WHERE user_id = $1
		GROUP BY year, month
		ORDER BY year DESC, month DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying available months: %w", err)
	}
	defer rows.Close()

	var months []MonthCount
	for rows.Next() {
		var mc MonthCount
		if err := rows.Scan(&mc.Year, &mc.Month, &mc.SongCount); err != nil {
			return nil, fmt.Errorf("scanning month count: %w", err)
		}
		months = append(months, mc)
	}
	return months, rows.Err()
}

func scanPick(row pgx.Row) (*DailyPick, error) {
	var pick DailyPick
	err := row.Scan(
		&pick.UserID,
		&pick.PickDay,
		&pick.TrackID,
		&pick.TrackName,
		&pick.ArtistNames,
		&pick.AlbumName,
		&pick.AlbumImageURL,
		&pick.Popularity,
		&pick.ExternalURL,
		&pick.RevealedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pick, nil
}
