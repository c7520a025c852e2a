package eventapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/illmade-knight/go-scoutsync/pkg/types"
	"github.com/rs/zerolog"
)

// Sink receives a copy of every accepted event, e.g. for archival or
// analytics. Sink failures are logged and never surfaced to the client.
type Sink interface {
	Accept(ctx context.Context, event *types.ScoutEvent) error
}

// APIConfig holds configuration for the event API handlers.
type APIConfig struct {
	// SinkTimeout bounds each background sink delivery.
	SinkTimeout time.Duration
}

// API holds the event API's handlers and collaborators.
type API struct {
	users  *UserStore
	tokens *TokenManager
	events EventStore
	sinks  []Sink
	logger zerolog.Logger

	sinkTimeout time.Duration
	now         func() time.Time
	lastID      atomic.Int64
}

// NewAPI creates the event API over its collaborators. Sinks are optional.
func NewAPI(cfg *APIConfig, users *UserStore, tokens *TokenManager, events EventStore, sinks []Sink, logger zerolog.Logger) *API {
	sinkTimeout := 10 * time.Second
	if cfg != nil && cfg.SinkTimeout > 0 {
		sinkTimeout = cfg.SinkTimeout
	}
	return &API{
		users:       users,
		tokens:      tokens,
		events:      events,
		sinks:       sinks,
		logger:      logger.With().Str("component", "API").Logger(),
		sinkTimeout: sinkTimeout,
		now:         time.Now,
	}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("POST /api/events", a.tokens.RequireAuth(a.handleSubmit))
	mux.HandleFunc("GET /api/events", a.tokens.RequireAuth(a.handleList))
	mux.HandleFunc("GET /api/debug/users/{name}", a.handleUserExists)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	user, ok := a.users.Authenticate(req.Username, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := a.tokens.Issue(user)
	if err != nil {
		a.logger.Error().Err(err).Str("user", user.Username).Msg("Failed to issue token.")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, types.LoginResponse{
		Token:    token,
		FullName: user.FullName,
		Role:     user.Role,
	})
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var sub types.EventSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if sub.Date == "" || len(sub.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "Missing date or rows")
		return
	}

	event := types.ScoutEvent{
		ID:        a.nextID(),
		User:      claims.Username,
		Name:      sub.Name,
		Date:      sub.Date,
		Location:  sub.Location,
		Scout:     sub.Scout,
		Count:     len(sub.Rows),
		Rows:      sub.Rows,
		DSP:       sub.DSP,
		Blast:     sub.Blast,
		Trackman:  sub.Trackman,
		CreatedAt: a.now().UTC(),
	}
	if event.Name == "" {
		event.Name = "Untitled"
	}
	if event.Scout == "" {
		event.Scout = claims.Username
	}
	if event.Blast == nil {
		event.Blast = []json.RawMessage{}
	}
	if event.Trackman == nil {
		event.Trackman = []json.RawMessage{}
	}

	if err := a.events.Append(r.Context(), event); err != nil {
		a.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to store event.")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	a.feedSinks(event)

	writeJSON(w, http.StatusOK, types.SubmitResponse{OK: true, ID: event.ID})
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	requested := strings.TrimSpace(r.URL.Query().Get("user"))
	if claims.Role != RoleAdmin && requested != "" && requested != claims.Username {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	target := requested
	if target == "" {
		target = claims.Username
	}

	events, err := a.events.ListByUser(r.Context(), target)
	if err != nil {
		a.logger.Error().Err(err).Str("user", target).Msg("Failed to list events.")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, types.ListResponse{User: target, Events: events})
}

func (a *API) handleUserExists(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   name,
		"exists": a.users.Exists(name),
		"count":  a.users.Count(),
	})
}

// feedSinks delivers a copy of event to every sink in the background.
func (a *API) feedSinks(event types.ScoutEvent) {
	for _, sink := range a.sinks {
		go func(s Sink) {
			ctx, cancel := context.WithTimeout(context.Background(), a.sinkTimeout)
			defer cancel()
			if err := s.Accept(ctx, &event); err != nil {
				a.logger.Warn().Err(err).Int64("event_id", event.ID).Msg("Event sink rejected event.")
			}
		}(sink)
	}
}

// nextID assigns a unique, monotonically increasing event id based on unix
// milliseconds, matching the ids existing clients already store.
func (a *API) nextID() int64 {
	for {
		id := a.now().UnixMilli()
		last := a.lastID.Load()
		if id <= last {
			id = last + 1
		}
		if a.lastID.CompareAndSwap(last, id) {
			return id
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Message: message})
}
