// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Aditya130805/Crux/internal/cache"
	custom_errors "github.com/Aditya130805/Crux/internal/errors"
	"github.com/Aditya130805/Crux/internal/model"
	"github.com/Aditya130805/Crux/internal/storage"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Store is the persistence surface the API reads and administers.
type Store interface {
	SaveConnection(ctx context.Context, conn model.Connection) error
	GetConnection(ctx context.Context, userID uuid.UUID) (model.Connection, error)
	DeleteConnection(ctx context.Context, userID uuid.UUID) error
	GetUserRepositories(ctx context.Context, userID uuid.UUID, ownerFilter string) ([]model.Repository, error)
	GetMonthlyMetrics(ctx context.Context, userID uuid.UUID, filter storage.MetricsFilter) ([]model.MonthlyRepoMetrics, error)
	GetAggregatedMonthlyMetrics(ctx context.Context, userID uuid.UUID, filter storage.MetricsFilter) ([]model.MonthlyTotals, error)
	DeleteUserData(ctx context.Context, userID uuid.UUID) error
}

// SyncRunner triggers a full GitHub import for one user.
type SyncRunner interface {
	Sync(ctx context.Context, userID uuid.UUID) (model.SyncSummary, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	store  Store
	syncer SyncRunner
	cache  *cache.Cache
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
// metricsHandler, when non-nil, is mounted at /metrics.
func NewRouter(store Store, syncRunner SyncRunner, readCache *cache.Cache, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	h := &Handler{
		store:  store,
		syncer: syncRunner,
		cache:  readCache,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Minute)) // syncs fan out into many paged calls

	r.Get("/health", h.healthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1/github", func(r chi.Router) {
		r.Use(requirePrincipal)
		r.Put("/connection", h.saveConnection)
		r.Post("/disconnect", h.disconnect)
		r.Post("/sync", h.sync)
		r.Get("/repositories", h.getRepositories)
		r.Get("/analytics/monthly", h.getMonthlyAnalytics)
		r.Delete("/data", h.deleteData)
	})

	return r
}

// requirePrincipal extracts the externally-verified principal from the
// X-User-ID header set by the fronting auth layer.
func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Missing or invalid X-User-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principal(r *http.Request) uuid.UUID {
	userID, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return userID
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// saveConnection stores an externally-obtained GitHub credential.
// PUT /v1/github/connection
func (h *Handler) saveConnection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GitHubUsername string `json:"github_username"`
		AccessToken    string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.GitHubUsername == "" || body.AccessToken == "" {
		respondWithError(w, http.StatusBadRequest, "github_username and access_token are required")
		return
	}

	conn := model.Connection{
		UserID:         principal(r),
		GitHubUsername: body.GitHubUsername,
		AccessToken:    body.AccessToken,
	}
	if err := h.store.SaveConnection(r.Context(), conn); err != nil {
		h.logger.Error("Failed to save connection", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "username": body.GitHubUsername})
}

// disconnect removes the stored credential.
// POST /v1/github/disconnect
func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	userID := principal(r)

	if _, err := h.store.GetConnection(r.Context(), userID); err != nil {
		if errors.Is(err, custom_errors.ErrNotConnected) {
			respondWithError(w, http.StatusBadRequest, "GitHub is not connected")
			return
		}
		h.logger.Error("Failed to load connection", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.store.DeleteConnection(r.Context(), userID); err != nil {
		h.logger.Error("Failed to delete connection", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "message": "GitHub disconnected successfully"})
}

// sync triggers a full GitHub import for the authenticated user.
// POST /v1/github/sync
func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	userID := principal(r)

	summary, err := h.syncer.Sync(r.Context(), userID)
	if err != nil {
		if errors.Is(err, custom_errors.ErrNotConnected) {
			respondWithError(w, http.StatusBadRequest, "GitHub not connected. Please authorize first.")
			return
		}
		var fetchErr *custom_errors.ErrRepoListFetch
		if errors.As(err, &fetchErr) {
			respondWithError(w, http.StatusBadRequest, "Failed to fetch repositories")
			return
		}
		h.logger.Error("Sync failed", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.cache.InvalidateUser(r.Context(), userID)
	respondWithJSON(w, http.StatusOK, summary)
}

// getRepositories returns stored repositories with an optional owner filter.
// GET /v1/github/repositories?owner=
func (h *Handler) getRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.store.GetUserRepositories(r.Context(), principal(r), r.URL.Query().Get("owner"))
	if err != nil {
		h.logger.Error("Failed to get repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"repositories": repos})
}

// getMonthlyAnalytics returns raw or aggregated monthly metrics.
// GET /v1/github/analytics/monthly?repo_ids=&start_year=&start_month=&aggregate=
func (h *Handler) getMonthlyAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := principal(r)
	query := r.URL.Query()

	repoIDs, err := parseRepoIDs(query.Get("repo_ids"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repo_ids format")
		return
	}
	filter := storage.MetricsFilter{
		RepoIDs:    repoIDs,
		StartYear:  parseIntParam(query.Get("start_year")),
		StartMonth: parseIntParam(query.Get("start_month")),
	}
	aggregate := query.Get("aggregate") == "true"

	cacheKey := cache.Key(userID, "monthly", r.URL.RawQuery)
	var cached map[string]any
	if h.cache.GetJSON(r.Context(), cacheKey, &cached) {
		respondWithJSON(w, http.StatusOK, cached)
		return
	}

	var response map[string]any
	if aggregate {
		totals, err := h.store.GetAggregatedMonthlyMetrics(r.Context(), userID, filter)
		if err != nil {
			h.logger.Error("Failed to get aggregated monthly metrics", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		response = map[string]any{"metrics": totals}
	} else {
		rows, err := h.store.GetMonthlyMetrics(r.Context(), userID, filter)
		if err != nil {
			h.logger.Error("Failed to get monthly metrics", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		response = map[string]any{"metrics": rows}
	}

	h.cache.SetJSON(r.Context(), cacheKey, response)
	respondWithJSON(w, http.StatusOK, response)
}

// deleteData removes all GitHub-derived rows for the user. Table cleanups
// are independent failure domains; partial failures are logged and the
// request still succeeds.
// DELETE /v1/github/data
func (h *Handler) deleteData(w http.ResponseWriter, r *http.Request) {
	userID := principal(r)

	if err := h.store.DeleteUserData(r.Context(), userID); err != nil {
		h.logger.Error("Partial failure deleting user data", "user_id", userID, "error", err)
	}
	h.cache.InvalidateUser(r.Context(), userID)

	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "message": "GitHub data removed"})
}

func parseRepoIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, &custom_errors.ErrInvalidRepoIDs{Raw: raw}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseIntParam(raw string) int {
	value, _ := strconv.Atoi(raw)
	return value
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
