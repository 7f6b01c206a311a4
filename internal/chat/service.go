// Package chat orchestrates one conversational request end to end: resolve
// the session, persist the inbound turns, assemble the prompt, stream the
// model reply to the caller, and record the full reply once the stream
// completes. The memory variant additionally compacts long histories into a
// generated summary before responding.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/huak95/mongkol-backend-rag/internal/gateway"
	"github.com/huak95/mongkol-backend-rag/internal/history"
	"github.com/huak95/mongkol-backend-rag/internal/prompt"
)

// Variant identifies which endpoint behavior a request follows.
type Variant string

const (
	// VariantDefault answers with plain history, tarot cards listed by name.
	VariantDefault Variant = "default"

	// VariantRAG augments tarot preambles with canonical card descriptions.
	VariantRAG Variant = "rag"

	// VariantMemory compacts history past the summary threshold.
	VariantMemory Variant = "memory"
)

// Store is the slice of the history store the service depends on.
// Interfaces are defined by the consumer; *history.Store satisfies this.
type Store interface {
	GetOrCreate(ctx context.Context, externalID string) (*history.Session, error)
	Append(ctx context.Context, sessionID uuid.UUID, turns ...history.Turn) error
	List(ctx context.Context, sessionID uuid.UUID) ([]history.Turn, error)
	ReplaceAll(ctx context.Context, sessionID uuid.UUID, turns []history.Turn) error
}

// Completer is the slice of the model gateway the service depends on.
// *gateway.Gateway satisfies this.
type Completer interface {
	Complete(ctx context.Context, req gateway.Request) (string, error)
	Stream(ctx context.Context, req gateway.Request) (gateway.TokenStream, error)
}

// EmitFunc receives each text fragment as it arrives from the model.
// Returning an error aborts the relay; accumulated text is then dropped.
type EmitFunc func(fragment string) error

// Request carries one chat turn. All fields are expected to have defaults
// applied by the caller (the HTTP layer fills them from config).
type Request struct {
	SessionID       string
	Message         string
	ModelID         string
	Temperature     float32
	SeerName        string
	SeerPersonality string
	TarotCards      []string
}

// MemoryRequest extends Request with the compaction threshold.
type MemoryRequest struct {
	Request

	// SummaryThreshold is the assembled message count (system + stored
	// turns) above which history is compacted before responding.
	SummaryThreshold int
}

// Service implements the conversational pipeline.
type Service struct {
	store  Store
	models Completer
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a chat service. A nil tracer disables tracing.
func NewService(store Store, models Completer, logger *slog.Logger, tracer trace.Tracer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("chat")
	}
	return &Service{store: store, models: models, logger: logger, tracer: tracer}
}

// Respond handles the default and rag variants: persist the inbound turns,
// assemble the full history, and stream the reply through emit.
func (s *Service) Respond(ctx context.Context, req Request, variant Variant, emit EmitFunc) error {
	ctx, span := s.startSpan(ctx, req, variant)
	defer span.End()

	sess, messages, err := s.prepare(ctx, req, variant == VariantRAG)
	if err != nil {
		return err
	}

	return s.streamAndPersist(ctx, sess.ID, req, messages, emit)
}

// RespondWithMemory handles the memory variant. When the assembled message
// count exceeds the threshold, older history is summarized and rewritten
// before the streaming reply.
func (s *Service) RespondWithMemory(ctx context.Context, req MemoryRequest, emit EmitFunc) error {
	ctx, span := s.startSpan(ctx, req.Request, VariantMemory)
	defer span.End()

	sess, messages, err := s.prepare(ctx, req.Request, false)
	if err != nil {
		return err
	}

	if len(messages) > req.SummaryThreshold {
		messages, err = s.compact(ctx, sess.ID, req, messages)
		if err != nil {
			return err
		}
	}

	return s.streamAndPersist(ctx, sess.ID, req.Request, messages, emit)
}

// prepare resolves the session, persists the inbound turns, and assembles
// the message list for the model call.
func (s *Service) prepare(ctx context.Context, req Request, augment bool) (*history.Session, []gateway.Message, error) {
	sess, err := s.store.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving session: %w", err)
	}

	inbound := prompt.InboundTurns(req.Message, req.TarotCards, req.ModelID, augment)
	if err := s.store.Append(ctx, sess.ID, inbound...); err != nil {
		return nil, nil, fmt.Errorf("saving inbound turns: %w", err)
	}

	turns, err := s.store.List(ctx, sess.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading history: %w", err)
	}

	persona := prompt.Persona{Name: req.SeerName, Personality: req.SeerPersonality}
	return sess, prompt.Assemble(persona, turns), nil
}

// streamAndPersist opens the upstream stream and relays it to the caller.
func (s *Service) streamAndPersist(ctx context.Context, sessionID uuid.UUID, req Request, messages []gateway.Message, emit EmitFunc) error {
	stream, err := s.models.Stream(ctx, gateway.Request{
		ModelID:     req.ModelID,
		Messages:    messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return fmt.Errorf("starting completion stream: %w", err)
	}

	return s.relay(ctx, stream, sessionID, req.ModelID, emit)
}

func (s *Service) startSpan(ctx context.Context, req Request, variant Variant) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "chat.respond", trace.WithAttributes(
		attribute.String("chat.variant", string(variant)),
		attribute.String("chat.model_id", req.ModelID),
	))
}
