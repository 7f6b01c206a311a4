package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/huak95/mongkol-backend-rag/internal/gateway"
	"github.com/huak95/mongkol-backend-rag/internal/history"
)

// ErrClientGone indicates the caller stopped consuming mid-stream.
// The accumulated partial reply is dropped, not persisted.
var ErrClientGone = errors.New("client disconnected during stream")

// relay forwards fragments to emit while accumulating the full text.
// On clean exhaustion it performs exactly one durable write: an assistant
// turn holding the concatenated reply, tagged with the generating model.
//
// A mid-stream upstream error, a caller cancellation, or an emit failure
// stops the relay and skips the write entirely; no partial turn is recorded.
func (s *Service) relay(ctx context.Context, stream gateway.TokenStream, sessionID uuid.UUID, modelID string, emit EmitFunc) error {
	defer func() {
		// Upstream handle cleanup is best-effort.
		if err := stream.Close(); err != nil {
			s.logger.Debug("closing upstream stream", "error", err)
		}
	}()

	var full strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("upstream stream failed: %w", err)
		}
		if fragment == "" {
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("caller cancelled mid-stream", "session_id", sessionID)
			return fmt.Errorf("%w: %w", ErrClientGone, ctx.Err())
		default:
		}

		if err := emit(fragment); err != nil {
			s.logger.Info("emit failed mid-stream", "session_id", sessionID, "error", err)
			return fmt.Errorf("%w: %w", ErrClientGone, err)
		}
		full.WriteString(fragment)
	}

	reply := history.NewTurn(history.RoleAssistant, full.String(), modelID)
	if err := s.store.Append(ctx, sessionID, reply); err != nil {
		return fmt.Errorf("saving assistant turn: %w", err)
	}

	s.logger.Debug("stream completed", "session_id", sessionID, "reply_len", full.Len())
	return nil
}
