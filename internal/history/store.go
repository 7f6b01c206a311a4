package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the same
// query helpers run inside and outside transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages session and turn persistence with a PostgreSQL backend.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store backed by the given connection pool.
// A nil logger falls back to slog.Default().
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// GetOrCreate returns the session with the given external id, creating it if
// absent. The upsert is a single statement, so two concurrent calls for the
// same id converge on one row and return the same surrogate key.
func (s *Store) GetOrCreate(ctx context.Context, externalID string) (*Session, error) {
	// DO UPDATE instead of DO NOTHING so the statement always returns the
	// row, existing or fresh.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (external_id)
		VALUES ($1)
		ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id, external_id, created_at`,
		externalID)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.ExternalID, &sess.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get or create session %q: %w", externalID, err)
	}

	s.logger.Debug("resolved session", "external_id", externalID, "id", sess.ID)
	return &sess, nil
}

// Find returns the session with the given external id, or ErrSessionNotFound.
func (s *Store) Find(ctx context.Context, externalID string) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, external_id, created_at FROM sessions WHERE external_id = $1`,
		externalID)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.ExternalID, &sess.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, externalID)
		}
		return nil, fmt.Errorf("failed to find session %q: %w", externalID, err)
	}
	return &sess, nil
}

// Append adds turns to a session with consecutive sequence numbers.
// The session row is locked for the duration of the transaction, so
// concurrent appends to the same session serialize instead of interleaving.
func (s *Store) Append(ctx context.Context, sessionID uuid.UUID, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockSession(ctx, tx, sessionID); err != nil {
			return err
		}

		var maxSeq int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(sequence_number), 0) FROM turns WHERE session_id = $1`,
			sessionID).Scan(&maxSeq)
		if err != nil {
			return fmt.Errorf("failed to read max sequence number: %w", err)
		}

		if err := insertTurns(ctx, tx, sessionID, maxSeq, turns); err != nil {
			return err
		}

		s.logger.Debug("appended turns", "session_id", sessionID, "count", len(turns))
		return nil
	})
}

// List returns all turns for a session in insertion order.
// Returns ErrSessionNotFound for an unknown session id.
func (s *Store) List(ctx context.Context, sessionID uuid.UUID) ([]Turn, error) {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, role, content, model_id, sequence_number, created_at
		FROM turns
		WHERE session_id = $1
		ORDER BY sequence_number`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var modelID *string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &modelID, &t.SequenceNumber, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if modelID != nil {
			t.ModelID = *modelID
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	return turns, nil
}

// ReplaceAll atomically replaces every turn of a session with the given set,
// renumbered from 1. A concurrent reader sees either the old set or the new
// one, never an empty intermediate state.
func (s *Store) ReplaceAll(ctx context.Context, sessionID uuid.UUID, turns []Turn) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockSession(ctx, tx, sessionID); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM turns WHERE session_id = $1`, sessionID); err != nil {
			return fmt.Errorf("failed to delete turns: %w", err)
		}

		if err := insertTurns(ctx, tx, sessionID, 0, turns); err != nil {
			return err
		}

		s.logger.Debug("replaced turns", "session_id", sessionID, "count", len(turns))
		return nil
	})
}

// DeleteAll removes every turn of a session, keeping the session row.
func (s *Store) DeleteAll(ctx context.Context, sessionID uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockSession(ctx, tx, sessionID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM turns WHERE session_id = $1`, sessionID); err != nil {
			return fmt.Errorf("failed to delete turns: %w", err)
		}
		s.logger.Debug("deleted history", "session_id", sessionID)
		return nil
	})
}

// ListSessions returns every known session with its turn count.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.external_id, COUNT(t.id)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id, s.external_id
		ORDER BY s.created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	infos := make([]SessionInfo, 0)
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ExternalID, &info.TurnCount); err != nil {
			return nil, fmt.Errorf("failed to scan session info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	return infos, nil
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockSession takes a row lock on the session, serializing writers.
// Returns ErrSessionNotFound if the session does not exist.
func lockSession(ctx context.Context, q querier, sessionID uuid.UUID) error {
	var id uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return fmt.Errorf("failed to lock session: %w", err)
	}
	return nil
}

// sessionExists checks for the session without locking it.
func (s *Store) sessionExists(ctx context.Context, sessionID uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check session %s: %w", sessionID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// insertTurns writes turns with sequence numbers continuing from afterSeq.
func insertTurns(ctx context.Context, q querier, sessionID uuid.UUID, afterSeq int, turns []Turn) error {
	for i, t := range turns {
		var modelID *string
		if t.ModelID != "" {
			modelID = &t.ModelID
		}
		_, err := q.Exec(ctx, `
			INSERT INTO turns (session_id, role, content, model_id, sequence_number)
			VALUES ($1, $2, $3, $4, $5)`,
			sessionID, t.Role, t.Content, modelID, afterSeq+i+1)
		if err != nil {
			return fmt.Errorf("failed to insert turn %d: %w", i, err)
		}
	}
	return nil
}
