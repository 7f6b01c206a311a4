package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports backing-store connectivity. *pgxpool.Pool satisfies this.
type Pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth is the liveness probe. It answers as long as the process
// serves requests, independent of the database.
func handleHealth(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleReady is the readiness probe. It fails when the database does not
// answer a ping within a short deadline.
func handleReady(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Warn("readiness probe failed", "error", err)
			writeError(w, logger, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ready"})
	}
}
