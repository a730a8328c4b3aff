package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prooftamil/ime-gateway/internal/reqctx"
	"github.com/prooftamil/ime-gateway/internal/storage"
	"github.com/prooftamil/ime-gateway/internal/transliterate"
)

const maxUsagePage = 500

type usageRecordResponse struct {
	RequestID   string    `json:"request_id"`
	Outcome     string    `json:"outcome"`
	Status      int       `json:"status"`
	Suggestions int       `json:"suggestions"`
	DurationMS  float64   `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type usageResponse struct {
	Success   bool                  `json:"success"`
	ClientID  string                `json:"client_id"`
	Requests  int                   `json:"requests"`
	Succeeded int                   `json:"succeeded"`
	Records   []usageRecordResponse `json:"records"`
}

// UsageHandler serves the authenticated caller's own usage records, newest
// first, with totals. Query parameters limit and offset page the records.
type UsageHandler struct {
	usage  storage.UsageStore
	logger *slog.Logger
}

// NewUsageHandler creates a handler reading from usage.
func NewUsageHandler(usage storage.UsageStore, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, logger: logger}
}

func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := reqctx.ClientID(ctx)

	limit, ok := queryInt(r, "limit", storage.DefaultListLimit)
	if !ok || limit < 1 || limit > maxUsagePage {
		writeError(w, http.StatusBadRequest, string(transliterate.KindInvalidRequest))
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		writeError(w, http.StatusBadRequest, string(transliterate.KindInvalidRequest))
		return
	}

	records, err := h.usage.List(ctx, storage.ListOptions{ClientID: clientID, Limit: limit, Offset: offset})
	if err != nil {
		h.readFailed(w, r, err)
		return
	}
	summary, err := h.usage.Summary(ctx)
	if err != nil {
		h.readFailed(w, r, err)
		return
	}

	resp := usageResponse{Success: true, ClientID: clientID, Records: make([]usageRecordResponse, 0, len(records))}
	for _, u := range summary {
		if u.ClientID == clientID {
			resp.Requests = u.Requests
			resp.Succeeded = u.Succeeded
			break
		}
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, usageRecordResponse{
			RequestID:   rec.RequestID,
			Outcome:     rec.Outcome,
			Status:      rec.Status,
			Suggestions: rec.Suggestions,
			DurationMS:  float64(rec.Duration) / float64(time.Millisecond),
			CreatedAt:   rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UsageHandler) readFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("usage read failed",
		slog.String("request_id", reqctx.RequestID(r.Context())),
		slog.String("error", err.Error()))
	AddError(r.Context(), err)
	writeError(w, http.StatusInternalServerError, OutcomeInternalError)
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
