package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/huak95/mongkol-backend-rag/internal/gateway"
	"github.com/huak95/mongkol-backend-rag/internal/history"
	"github.com/huak95/mongkol-backend-rag/internal/prompt"
)

// summaryInstruction is the fixed system prompt for the one-shot
// summarization call.
const summaryInstruction = "Summarize the following conversation into a paragraph that have about 300 words in Thai."

// summaryPrefix marks the stored summary turn.
const summaryPrefix = "conversation summary: \n"

// compact condenses a long history into a summary plus the most recent
// exchange, rewrites the stored log atomically, and returns the message
// list for the follow-up streaming call.
//
// The follow-up input is the fresh persona system message plus the rewritten
// entries only. The current user message is not appended again: it was
// persisted before assembly, so the trailing-two window normally carries it
// already. Histories whose tail splits that exchange lose it — a quirk kept
// intact from the original behavior.
func (s *Service) compact(ctx context.Context, sessionID uuid.UUID, req MemoryRequest, messages []gateway.Message) ([]gateway.Message, error) {
	// Serialize everything after the leading system message as one JSON
	// block for the summarizer.
	serialized, err := json.Marshal(messages[1:])
	if err != nil {
		return nil, fmt.Errorf("serializing history for summary: %w", err)
	}

	summary, err := s.models.Complete(ctx, gateway.Request{
		ModelID: req.ModelID,
		Messages: []gateway.Message{
			{Role: history.RoleSystem, Content: summaryInstruction},
			{Role: history.RoleUser, Content: string(serialized)},
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("summarizing history: %w", err)
	}

	// Keep the last two entries of the pre-summarization history for
	// continuity. With at least two stored turns these are both real turns;
	// the slice is over the assembled list, matching the original exactly.
	tail := messages
	if len(tail) > 2 {
		tail = tail[len(tail)-2:]
	}

	replacement := make([]history.Turn, 0, len(tail)+1)
	replacement = append(replacement, history.NewTurn(history.RoleSystem, summaryPrefix+summary, req.ModelID))
	for _, m := range tail {
		replacement = append(replacement, history.NewTurn(m.Role, m.Content, req.ModelID))
	}

	if err := s.store.ReplaceAll(ctx, sessionID, replacement); err != nil {
		return nil, fmt.Errorf("rewriting history: %w", err)
	}

	s.logger.Info("history compacted",
		"session_id", sessionID,
		"prior_messages", len(messages),
		"kept_turns", len(replacement))

	persona := prompt.Persona{Name: req.SeerName, Personality: req.SeerPersonality}
	return prompt.Assemble(persona, replacement), nil
}
