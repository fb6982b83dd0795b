package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rushteam/reckit-rt/core"
)

const (
	defaultLimit = 10
	maxLimit     = 100

	emptyMessage = "No recommendations available yet"
)

type handler struct {
	reader   Reader
	ingester Ingester
	health   func(ctx context.Context) error
	logger   zerolog.Logger
}

type recommendationsResponse struct {
	UserID          string     `json:"user_id,omitempty"`
	ItemID          string     `json:"item_id,omitempty"`
	Recommendations []string   `json:"recommendations"`
	Count           int        `json:"count"`
	GeneratedAt     *time.Time `json:"generated_at,omitempty"`
	Message         string     `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseLimit 解析 limit 参数：缺省为 10，非正整数返回错误，超过上限按上限处理。
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}

// Health GET /health
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// UserRecommendations GET /recommendations/{user_id}?limit=N
func (h *handler) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	list, err := h.reader.UserRecommendations(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("read user recommendations failed")
		writeError(w, http.StatusInternalServerError, "failed to read recommendations")
		return
	}
	resp := listResponse(list)
	resp.UserID = userID
	if list.Empty() {
		h.logger.Debug().Str("user_id", userID).Msg("no recommendations for user")
	}
	writeJSON(w, http.StatusOK, resp)
}

// ItemRecommendations GET /recommendations/item/{item_id}?limit=N
func (h *handler) ItemRecommendations(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	list, err := h.reader.ItemRecommendations(r.Context(), itemID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("item_id", itemID).Msg("read item recommendations failed")
		writeError(w, http.StatusInternalServerError, "failed to read recommendations")
		return
	}
	resp := listResponse(list)
	resp.ItemID = itemID
	writeJSON(w, http.StatusOK, resp)
}

func listResponse(list *core.RecommendationList) recommendationsResponse {
	resp := recommendationsResponse{Recommendations: []string{}}
	if list.Empty() {
		resp.Message = emptyMessage
		return resp
	}
	resp.Recommendations = list.Items
	resp.Count = len(list.Items)
	if !list.GeneratedAt.IsZero() {
		ts := list.GeneratedAt
		resp.GeneratedAt = &ts
	}
	return resp
}

// History GET /history/{user_id}?limit=N
func (h *handler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	limit := 0
	if r.URL.Query().Get("limit") != "" {
		n, ok := parseLimit(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	items, err := h.reader.History(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("read history failed")
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if items == nil {
		items = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"history": items,
		"count":   len(items),
	})
}

// PostEvent POST /events
func (h *handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	ev, err := core.DecodeEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.ingester.Ingest(r.Context(), ev)
	switch {
	case err == nil && res == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event_id": ev.EventID})
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case core.IsMalformed(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case core.IsTransient(err):
		h.logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("ingest failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		h.logger.Error().Err(err).Str("user_id", ev.UserID).Msg("ingest failed")
		writeError(w, http.StatusInternalServerError, "failed to process event")
	}
}
