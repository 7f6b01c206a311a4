package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/huak95/mongkol-backend-rag/internal/chat"
)

// ChatService is the slice of the chat pipeline the handlers depend on.
// *chat.Service satisfies this.
type ChatService interface {
	Respond(ctx context.Context, req chat.Request, variant chat.Variant, emit chat.EmitFunc) error
	RespondWithMemory(ctx context.Context, req chat.MemoryRequest, emit chat.EmitFunc) error
}

// ChatDefaults fills request fields the caller omitted.
type ChatDefaults struct {
	ModelID          string
	Temperature      float32
	SeerName         string
	SeerPersonality  string
	SummaryThreshold int
}

// chatPayload is the chat request body. Optional numeric fields are
// pointers so an explicit zero is distinguishable from an omitted field.
type chatPayload struct {
	Messages         string   `json:"messages"`
	ModelID          string   `json:"model_id"`
	Temperature      *float32 `json:"temperature"`
	SeerName         string   `json:"seer_name"`
	SeerPersonality  string   `json:"seer_personality"`
	SessionID        string   `json:"session_id"`
	TarotCard        []string `json:"tarot_card"`
	SummaryThreshold *int     `json:"summary_threshold"`
}

type chatHandler struct {
	service  ChatService
	defaults ChatDefaults
	logger   *slog.Logger
}

func (h *chatHandler) decode(w http.ResponseWriter, r *http.Request) (*chatPayload, bool) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if payload.SessionID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "session_id is required")
		return nil, false
	}
	return &payload, true
}

func (h *chatHandler) request(p *chatPayload) chat.Request {
	req := chat.Request{
		SessionID:       p.SessionID,
		Message:         p.Messages,
		ModelID:         p.ModelID,
		Temperature:     h.defaults.Temperature,
		SeerName:        p.SeerName,
		SeerPersonality: p.SeerPersonality,
		TarotCards:      p.TarotCard,
	}
	if req.ModelID == "" {
		req.ModelID = h.defaults.ModelID
	}
	if p.Temperature != nil {
		req.Temperature = *p.Temperature
	}
	if req.SeerName == "" {
		req.SeerName = h.defaults.SeerName
	}
	if req.SeerPersonality == "" {
		req.SeerPersonality = h.defaults.SeerPersonality
	}
	return req
}

// serveStream runs respond with an emit that relays fragments to the client
// as a chunked plain-text body, flushing after every fragment.
func (h *chatHandler) serveStream(w http.ResponseWriter, r *http.Request, respond func(chat.EmitFunc) error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	started := false
	emit := func(fragment string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(fragment)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := respond(emit)
	switch {
	case err == nil:
		if !started {
			// Empty reply still answers 200 with an empty body.
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
		}
	case errors.Is(err, chat.ErrClientGone):
		h.logger.Info("client disconnected", "request_id", RequestID(r.Context()))
	case started:
		// Headers are out; the truncated body is all we can signal.
		h.logger.Error("stream failed mid-response", "error", err, "request_id", RequestID(r.Context()))
	default:
		h.logger.Error("chat request failed", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
	}
}

// handleVariant serves POST /chat/default and POST /chat/rag.
func (h *chatHandler) handleVariant(variant chat.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := h.decode(w, r)
		if !ok {
			return
		}
		req := h.request(payload)
		h.serveStream(w, r, func(emit chat.EmitFunc) error {
			return h.service.Respond(r.Context(), req, variant, emit)
		})
	}
}

// handleMemory serves POST /chat/memory.
func (h *chatHandler) handleMemory(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	req := chat.MemoryRequest{
		Request:          h.request(payload),
		SummaryThreshold: h.defaults.SummaryThreshold,
	}
	if payload.SummaryThreshold != nil {
		req.SummaryThreshold = *payload.SummaryThreshold
	}
	h.serveStream(w, r, func(emit chat.EmitFunc) error {
		return h.service.RespondWithMemory(r.Context(), req, emit)
	})
}
