package api

import (
	"errors"
	"net/http"

	"example.com/prayer/internal/auth"
	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/domain"
	"example.com/prayer/internal/observability"
	"example.com/prayer/internal/persistence"
)

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.sessions.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "incorrect password")
			return
		}
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) adjustments(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeAdminAdjust) {
		return
	}

	var req AdjustmentsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	applied, err := h.service.RecordAdjustments(r.Context(), req.Adjustments)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownActivityType) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeServerError(w, err)
		return
	}
	for i := 0; i < applied; i++ {
		observability.RecordEntryAccepted("admin")
	}
	writeJSON(w, http.StatusOK, AdjustmentsResponse{Applied: applied})
}

func (h *Handler) adminEntries(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeAdminRead) {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), defaultFeedLimit, maxFeedLimit)
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	entries, next, err := h.service.RecentEntries(r.Context(), cursor, limit)
	if err != nil {
		writeServerError(w, err)
		return
	}

	items := make([]AdminEntryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, AdminEntryView{
			ID:             e.ID,
			ActivityTypeID: e.ActivityTypeID,
			ActivityName:   catalog.Name(e.ActivityTypeID),
			Value:          e.Value,
			DeviceHash:     e.DeviceHash,
			CreatedAt:      e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, AdminEntriesResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return false
	}
	return true
}
