package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/songday-dev/song-of-the-day/internal/db"
	"github.com/songday-dev/song-of-the-day/internal/picker"
	"github.com/songday-dev/song-of-the-day/internal/playlists"
	"github.com/songday-dev/song-of-the-day/internal/rankings"
	"github.com/songday-dev/song-of-the-day/internal/related"
	"github.com/songday-dev/song-of-the-day/internal/spotify"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Handlers contains HTTP handlers for the application.
type Handlers struct {
	auth      *spotifyauth.Authenticator
	sessions  SessionManager
	database  *db.DB
	refresher spotify.Refresher
	log       zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(auth *spotifyauth.Authenticator, sessions SessionManager, database *db.DB, refresher spotify.Refresher, log zerolog.Logger) *Handlers {
	return &Handlers{
		auth:      auth,
		sessions:  sessions,
		database:  database,
		refresher: refresher,
		log:       log,
	}
}

// spotifyClient builds an API client bound to the session's token. Refreshed
// tokens are written back to the session store so later requests reuse them.
func (h *Handlers) spotifyClient(ctx context.Context, session *Session) *spotify.Client {
	return spotify.NewClient(session.Token, h.refresher,
		spotify.WithLogger(h.log),
		spotify.WithOnRefresh(func(token *oauth2.Token) {
			h.sessions.UpdateToken(ctx, session.ID, token)
		}),
	)
}

// ============================================================================
// Auth
// ============================================================================

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateOAuthState()
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	// State lives in a short-lived cookie for validation on callback.
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "missing_state")
		return
	}

	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		h.respondError(w, http.StatusBadRequest, "state_mismatch")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.respondError(w, http.StatusBadRequest, "provider_denied")
		return
	}

	token, err := h.auth.Token(r.Context(), state, r)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "token_exchange_failed")
		return
	}

	client := spotify.NewClient(token, h.refresher, spotify.WithLogger(h.log))
	profile, err := client.CurrentUser(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "profile_fetch_failed")
		return
	}

	var avatarURL *string
	if profile.AvatarURL != "" {
		avatarURL = &profile.AvatarURL
	}
	user, err := h.database.Users().GetOrCreate(r.Context(), profile.ID, profile.Email, profile.DisplayName, avatarURL)
	if err != nil {
		h.log.Error().Err(err).Msg("user upsert failed")
		h.respondError(w, http.StatusInternalServerError, "user_create_failed")
		return
	}

	session, err := h.sessions.Create(r.Context(), token, user)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "session_create_failed")
		return
	}

	h.sessions.SetCookie(w, session)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout clears the session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}

	h.sessions.ClearCookie(w)
	h.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me reports the current session's user (GET /api/me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		h.respondJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]string{
			"id":           session.UserID.String(),
			"display_name": session.UserName,
		},
	})
}

// RequireSession rejects unauthenticated API requests.
func (h *Handlers) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := h.sessions.GetFromRequest(r)
		if session == nil {
			h.respondError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *Session {
	session, _ := r.Context().Value(sessionContextKey).(*Session)
	return session
}

// ============================================================================
// API
// ============================================================================

// SongOfTheDay returns (selecting if needed) today's pick (GET /api/song-of-the-day).
func (h *Handlers) SongOfTheDay(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	client := h.spotifyClient(r.Context(), session)
	svc := picker.New(client, h.database.Picks(), h.log)

	result, err := svc.Pick(r.Context(), session.UserID)
	if errors.Is(err, picker.ErrNoSignal) {
		h.respondJSON(w, http.StatusOK, map[string]any{"track": nil, "status": "no_signal"})
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// History returns a month of picks keyed by ISO day (GET /api/history?year=&month=).
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	year, month, ok := yearMonthParams(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid_month")
		return
	}

	svc := picker.New(h.spotifyClient(r.Context(), session), h.database.Picks(), h.log)
	history, err := svc.History(r.Context(), session.UserID, year, month)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"days": history})
}

// Months returns the months holding picks (GET /api/months).
func (h *Handlers) Months(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	svc := picker.New(h.spotifyClient(r.Context(), session), h.database.Picks(), h.log)

	months, err := svc.Months(r.Context(), session.UserID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if months == nil {
		months = []db.MonthCount{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"months": months})
}

// RelatedContent returns similar artists/tracks (GET /api/related?track_id=&artist_id=).
func (h *Handlers) RelatedContent(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	trackID := r.URL.Query().Get("track_id")
	artistID := r.URL.Query().Get("artist_id")
	if trackID == "" || artistID == "" {
		h.respondError(w, http.StatusBadRequest, "missing_seed")
		return
	}

	svc := related.New(h.spotifyClient(r.Context(), session), h.log)
	content, err := svc.Related(r.Context(), trackID, artistID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, content)
}

// TopSongs returns the user's top tracks (GET /api/rankings/songs?time_range=).
func (h *Handlers) TopSongs(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	timeRange, ok := timeRangeParam(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid_time_range")
		return
	}

	svc := rankings.New(h.spotifyClient(r.Context(), session))
	tracks, err := svc.TopSongs(r.Context(), timeRange)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// TopArtists returns the user's top artists (GET /api/rankings/artists?time_range=).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	timeRange, ok := timeRangeParam(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid_time_range")
		return
	}

	svc := rankings.New(h.spotifyClient(r.Context(), session))
	artists, err := svc.TopArtists(r.Context(), timeRange)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"artists": artists})
}

// TopGenres returns genre counts over long-term top artists (GET /api/rankings/genres).
func (h *Handlers) TopGenres(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	svc := rankings.New(h.spotifyClient(r.Context(), session))
	genres, err := svc.TopGenres(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

// CreatePlaylist builds a playlist from a month's picks (POST /api/playlists).
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	var req struct {
		Year   int  `json:"year"`
		Month  int  `json:"month"`
		Public bool `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 2000 {
		h.respondError(w, http.StatusBadRequest, "invalid_month")
		return
	}

	client := h.spotifyClient(r.Context(), session)
	history := picker.New(client, h.database.Picks(), h.log)
	svc := playlists.New(client, history)

	result, err := svc.CreateForMonth(r.Context(), session.UserID, req.Year, time.Month(req.Month), req.Public)
	if errors.Is(err, playlists.ErrEmptyMonth) {
		h.respondError(w, http.StatusNotFound, "empty_month")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, result)
}

// ============================================================================
// Helpers
// ============================================================================

// respondServiceError maps service failures onto the API error taxonomy.
// Reauthentication failures destroy the session and demand a fresh sign-in.
func (h *Handlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, spotify.ErrReauthRequired) {
		if session := sessionFrom(r); session != nil {
			h.sessions.Delete(r.Context(), session.ID)
		}
		h.sessions.ClearCookie(w)
		h.respondError(w, http.StatusUnauthorized, "reauthentication_required")
		return
	}

	var apiErr *spotify.APIError
	if errors.As(err, &apiErr) {
		h.log.Warn().Err(err).Msg("catalog error")
		h.respondError(w, http.StatusBadGateway, "catalog_error")
		return
	}

	h.log.Error().Err(err).Msg("request failed")
	h.respondError(w, http.StatusInternalServerError, "internal_error")
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("encoding response")
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, code string) {
	h.respondJSON(w, status, map[string]string{"error": code})
}

func yearMonthParams(r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 {
		return 0, 0, false
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}

func timeRangeParam(r *http.Request) (spotify.TimeRange, bool) {
	switch v := r.URL.Query().Get("time_range"); v {
	case "", string(spotify.ShortTerm):
		return spotify.ShortTerm, true
	case string(spotify.MediumTerm):
		return spotify.MediumTerm, true
	case string(spotify.LongTerm):
		return spotify.LongTerm, true
	default:
		return "", false
	}
}

// generateOAuthState creates a random state string for OAuth.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
