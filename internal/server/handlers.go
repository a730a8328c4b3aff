package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prooftamil/ime-gateway/internal/reqctx"
	"github.com/prooftamil/ime-gateway/internal/storage"
	"github.com/prooftamil/ime-gateway/internal/transliterate"
)

const (
	maxBodyBytes = 64 << 10
	defaultLimit = 8
)

type transliterateRequest struct {
	Text  string `json:"text"`
	Mode  string `json:"mode"`
	Limit *int   `json:"limit"`
}

type transliterateResponse struct {
	Success     bool                       `json:"success"`
	Suggestions []transliterate.Suggestion `json:"suggestions"`
}

type healthResponse struct {
	OK               bool `json:"ok"`
	EngineConfigured bool `json:"engine_configured"`
	CacheEnabled     bool `json:"cache_enabled"`
}

// Handlers serves the gateway's HTTP endpoints.
type Handlers struct {
	service          *transliterate.Service
	engineConfigured bool
	logger           *slog.Logger
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(service *transliterate.Service, engineConfigured bool, logger *slog.Logger) *Handlers {
	return &Handlers{
		service:          service,
		engineConfigured: engineConfigured,
		logger:           logger,
	}
}

// Health reports liveness. It needs no credentials.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:               true,
		EngineConfigured: h.engineConfigured,
		CacheEnabled:     h.service.CacheEnabled(),
	})
}

// Transliterate decodes the query, runs the orchestrator and writes the
// result envelope. A missing mode means spoken; a missing limit means 8,
// capped at the configured maximum.
func (h *Handlers) Transliterate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transliterateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.Debug("invalid request body",
			slog.String("request_id", reqctx.RequestID(ctx)),
			slog.String("error", err.Error()))
		h.fail(w, r, http.StatusBadRequest, transliterate.KindInvalidRequest)
		return
	}

	q := transliterate.Query{Text: req.Text, Mode: req.Mode}
	if q.Mode == "" {
		q.Mode = transliterate.ModeSpoken
	}
	if req.Limit != nil {
		q.Limit = *req.Limit
	} else {
		q.Limit = min(defaultLimit, h.service.Limits().MaxLimit)
	}

	res := h.service.Handle(ctx, q)
	if !res.Success {
		status := http.StatusBadRequest
		if res.Error == transliterate.KindEngineFailure {
			status = http.StatusBadGateway
		}
		h.fail(w, r, status, res.Error)
		return
	}

	suggestions := res.Suggestions
	if suggestions == nil {
		suggestions = []transliterate.Suggestion{}
	}
	setOutcome(ctx, storage.OutcomeSuccess)
	setSuggestionCount(ctx, len(suggestions))
	writeJSON(w, http.StatusOK, transliterateResponse{Success: true, Suggestions: suggestions})
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, status int, kind transliterate.ErrorKind) {
	AddLogField(r.Context(), "error_kind", string(kind))
	setOutcome(r.Context(), string(kind))
	writeError(w, status, string(kind))
}
