// Package history provides durable conversation storage on PostgreSQL.
//
// A Session is identified by a caller-supplied opaque external id and owns an
// ordered log of Turns. Insertion order is made explicit with sequence
// numbers; reads return turns in sequence order. All multi-row mutations run
// inside a transaction that locks the session row, so concurrent requests
// against the same session cannot interleave their writes.
package history

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Turn roles. The store tolerates consecutive same-role turns; the tarot
// flow deliberately inserts two turns back to back.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrSessionNotFound indicates the requested session does not exist.
// Check with errors.Is().
var ErrSessionNotFound = errors.New("session not found")

// Session is a caller-identified, durably tracked conversation.
// Callers reference sessions by ExternalID only; ID is the surrogate key.
type Session struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Turn is one role-tagged message stored against a session.
type Turn struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"-"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ModelID        string    `json:"model_id"`
	SequenceNumber int       `json:"-"`
	CreatedAt      time.Time `json:"-"`
}

// SessionInfo is the listing projection: external id plus turn count.
type SessionInfo struct {
	ExternalID string `json:"session_id"`
	TurnCount  int    `json:"message_count"`
}

// NewTurn builds an unsaved turn. Sequence numbers are assigned by the store.
func NewTurn(role, content, modelID string) Turn {
	return Turn{Role: role, Content: content, ModelID: modelID}
}
