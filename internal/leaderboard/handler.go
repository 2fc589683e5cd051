// Package leaderboard serves the read-only score API mounted on the
// observability server.
package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/openmuse/aesthete/internal/core/domain"
)

// Rate limiting constants.
const (
	rateLimitRequests = 60
	rateLimitBurst    = 30
	rateLimitWindow   = time.Minute
)

// HTTP header constants.
const headerContentType = "Content-Type"

const contentTypeJSON = "application/json; charset=utf-8"

// Repository is the read surface the handler needs.
type Repository interface {
	Leaderboard(ctx context.Context, limit, offset int) ([]domain.PublishedScore, error)
	PipelineHealth(ctx context.Context) (domain.PipelineHealth, error)
}

// Handler serves GET /leaderboard and GET /pipeline.
type Handler struct {
	db     Repository
	logger *zerolog.Logger

	// IP-based rate limiting
	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
}

// NewHandler creates a new score read handler.
func NewHandler(database Repository, logger *zerolog.Logger) *Handler {
	return &Handler{
		db:       database,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

type scoreRow struct {
	ItemID            string    `json:"item_id"`
	Score             float64   `json:"score"`
	Confidence        float64   `json:"confidence"`
	Provisional       bool      `json:"provisional"`
	RatingComponent   float64   `json:"rating_component"`
	SignalComponent   float64   `json:"signal_component"`
	FavoriteComponent float64   `json:"favorite_component"`
	ReliabilityFactor float64   `json:"reliability_factor"`
	RatingMean        float64   `json:"rating_mean"`
	RatingUncertainty float64   `json:"rating_uncertainty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type pipelineView struct {
	DirtyCount            int     `json:"dirty_count"`
	OldestDirtyAgeSeconds float64 `json:"oldest_dirty_age_seconds"`
	PublishedCount        int     `json:"published_count"`
	ProvisionalCount      int     `json:"provisional_count"`
}

type errorView struct {
	Error string `json:"error"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	defer func() {
		LatencyHistogram.Observe(time.Since(start).Seconds())
	}()

	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set(headerContentType, contentTypeJSON)

	endpoint := strings.TrimPrefix(r.URL.Path, "/")

	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "only GET is supported")
		HitsTotal.WithLabelValues(endpoint, StatusMethodNotAllowed).Inc()

		return
	}

	clientIP := getClientIP(r)

	if !h.allowRequest(clientIP) {
		h.writeError(w, http.StatusTooManyRequests, "too many requests")
		HitsTotal.WithLabelValues(endpoint, StatusLimited).Inc()

		return
	}

	switch r.URL.Path {
	case "/leaderboard":
		h.serveLeaderboard(w, r)
	case "/pipeline":
		h.servePipeline(w, r)
	default:
		h.writeError(w, http.StatusNotFound, "unknown endpoint")
		HitsTotal.WithLabelValues(endpoint, StatusNotFound).Inc()
	}
}

func (h *Handler) serveLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "limit must be an integer")
		HitsTotal.WithLabelValues(endpointLeaderboard, StatusDenied).Inc()

		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		HitsTotal.WithLabelValues(endpointLeaderboard, StatusDenied).Inc()

		return
	}

	scores, err := h.db.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to fetch leaderboard")
		h.writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		HitsTotal.WithLabelValues(endpointLeaderboard, StatusError).Inc()

		return
	}

	rows := make([]scoreRow, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, scoreRow{
			ItemID:            s.ItemID,
			Score:             s.Score,
			Confidence:        s.Confidence,
			Provisional:       s.Provisional,
			RatingComponent:   s.RatingComponent,
			SignalComponent:   s.SignalComponent,
			FavoriteComponent: s.FavoriteComponent,
			ReliabilityFactor: s.ReliabilityFactor,
			RatingMean:        s.RatingMean,
			RatingUncertainty: s.RatingUncertainty,
			UpdatedAt:         s.UpdatedAt,
		})
	}

	h.writeJSON(w, rows)
	HitsTotal.WithLabelValues(endpointLeaderboard, StatusOK).Inc()
}

func (h *Handler) servePipeline(w http.ResponseWriter, r *http.Request) {
	health, err := h.db.PipelineHealth(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to fetch pipeline health")
		h.writeError(w, http.StatusInternalServerError, "failed to load pipeline health")
		HitsTotal.WithLabelValues(endpointPipeline, StatusError).Inc()

		return
	}

	h.writeJSON(w, pipelineView{
		DirtyCount:            health.DirtyCount,
		OldestDirtyAgeSeconds: health.OldestDirtyAge.Seconds(),
		PublishedCount:        health.PublishedCount,
		ProvisionalCount:      health.ProvisionalCount,
	})
	HitsTotal.WithLabelValues(endpointPipeline, StatusOK).Inc()
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(errorView{Error: message}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}

	return strconv.Atoi(raw)
}

func (h *Handler) allowRequest(ip string) bool {
	h.limitersMu.Lock()

	limiter, ok := h.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(rateLimitWindow/rateLimitRequests), rateLimitBurst)
		h.limiters[ip] = limiter
	}

	h.limitersMu.Unlock()

	return limiter.Allow()
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (common with reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	return r.RemoteAddr
}
