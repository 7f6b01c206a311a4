package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/huak95/mongkol-backend-rag/internal/history"
)

// HistoryStore is the slice of the history store the read and delete
// endpoints depend on. *history.Store satisfies this.
type HistoryStore interface {
	Find(ctx context.Context, externalID string) (*history.Session, error)
	List(ctx context.Context, sessionID uuid.UUID) ([]history.Turn, error)
	DeleteAll(ctx context.Context, sessionID uuid.UUID) error
	ListSessions(ctx context.Context) ([]history.SessionInfo, error)
}

// turnView is one history entry on the wire: role, content, model id.
type turnView struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	ModelID *string `json:"model_id"`
}

type historyHandler struct {
	store  HistoryStore
	logger *slog.Logger
}

// handleView serves GET /view_history?session_id=...
func (h *historyHandler) handleView(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("session_id")
	if externalID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := h.store.Find(r.Context(), externalID)
	if errors.Is(err, history.ErrSessionNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("looking up session", "error", err, "session_id", externalID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	turns, err := h.store.List(r.Context(), sess.ID)
	if err != nil {
		h.logger.Error("loading history", "error", err, "session_id", externalID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		v := turnView{Role: t.Role, Content: t.Content}
		if t.ModelID != "" {
			id := t.ModelID
			v.ModelID = &id
		}
		views = append(views, v)
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"session_id": externalID,
		"history":    views,
	})
}

// handleDelete serves DELETE /delete_history?session_id=...
// The session row survives; only its turns are removed.
func (h *historyHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("session_id")
	if externalID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := h.store.Find(r.Context(), externalID)
	if errors.Is(err, history.ErrSessionNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("looking up session", "error", err, "session_id", externalID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.store.DeleteAll(r.Context(), sess.ID); err != nil {
		h.logger.Error("deleting history", "error", err, "session_id", externalID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"message": "Chat history deleted successfully",
	})
}

// handleList serves GET /list_sessions.
func (h *historyHandler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"sessions": sessions})
}
