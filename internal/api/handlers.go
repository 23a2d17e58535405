// Package api exposes HTTP handlers for the prayer service.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"example.com/prayer/internal/auth"
	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/domain"
	"example.com/prayer/internal/observability"
)

// Route prefixes shared with the auth middleware.
const (
	AdminPrefix = "/v1/admin/"
	SessionPath = "/v1/admin/session"
)

const (
	maxRecentByDevice = 50
	defaultFeedLimit  = 20
	maxFeedLimit      = 100
	maxBodyBytes      = 64 << 10
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	sessions *auth.Authenticator
	stream   http.Handler
}

// NewHandler builds a Handler. stream serves the change-notification endpoint.
func NewHandler(service *domain.Service, sessions *auth.Authenticator, stream http.Handler) *Handler {
	return &Handler{service: service, sessions: sessions, stream: stream}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /v1/activity-types", h.activityTypes)
	mux.HandleFunc("GET /v1/aggregates", h.aggregates)
	mux.HandleFunc("GET /v1/stats", h.stats)
	mux.HandleFunc("POST /v1/entries", h.createEntry)
	mux.HandleFunc("GET /v1/entries/recent", h.recentEntries)
	mux.Handle("GET /v1/stream", h.stream)
	mux.HandleFunc("POST "+SessionPath, h.createSession)
	mux.HandleFunc("POST "+AdminPrefix+"adjustments", h.adjustments)
	mux.HandleFunc("GET "+AdminPrefix+"entries", h.adminEntries)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activityTypes(w http.ResponseWriter, r *http.Request) {
	all := catalog.All()
	items := make([]ActivityTypeView, 0, len(all))
	for _, at := range all {
		items = append(items, ActivityTypeView{
			ID:           at.ID,
			Name:         at.Name,
			Unit:         string(at.Unit),
			DisplayOrder: at.DisplayOrder,
			Glyph:        at.Glyph.String(),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) aggregates(w http.ResponseWriter, r *http.Request) {
	aggs, err := h.service.Aggregates(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}
	if aggs == nil {
		aggs = []domain.Aggregate{}
	}
	writeJSON(w, http.StatusOK, AggregatesResponse{Items: aggs})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) recentEntries(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 1, maxRecentByDevice)
	items, err := h.service.RecentByDevice(r.Context(), r.URL.Query().Get("device_hash"), limit)
	if err != nil {
		if errors.Is(err, domain.ErrMissingDevice) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecentEntriesResponse{Items: items})
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req domain.NewEntry
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.service.RecordEntry(r.Context(), req)
	if err != nil {
		var cooldown *domain.CooldownError
		switch {
		case errors.As(err, &cooldown):
			observability.RecordCooldownRejection()
			w.Header().Set("Retry-After", strconv.Itoa(cooldown.Remaining))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Type:              "cooldown_active",
				Detail:            err.Error(),
				RetryAfterSeconds: cooldown.Remaining,
			})
		case isValidation(err):
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		default:
			writeServerError(w, err)
		}
		return
	}

	observability.RecordEntryAccepted("public")
	writeJSON(w, http.StatusCreated, CreateEntryResponse{
		ID:             entry.ID,
		ActivityTypeID: entry.ActivityTypeID,
		Value:          entry.Value,
		CreatedAt:      entry.CreatedAt,
	})
}

func isValidation(err error) bool {
	return errors.Is(err, domain.ErrUnknownActivityType) ||
		errors.Is(err, domain.ErrInvalidValue) ||
		errors.Is(err, domain.ErrReservedDevice) ||
		errors.Is(err, domain.ErrMissingDevice)
}

// decodeBody reads a JSON body of at most maxBodyBytes into v, writing the error response itself.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
	return false
}

func parseLimit(raw string, fallback, max int) int {
	limit := fallback
	if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
		limit = parsed
	}
	if limit > max {
		limit = max
	}
	return limit
}

func writeServerError(w http.ResponseWriter, err error) {
	log.Printf("api: %v", err)
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Type: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
