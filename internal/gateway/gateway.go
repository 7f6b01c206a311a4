// Package gateway routes completion requests to upstream OpenAI-compatible
// model endpoints.
//
// Exactly one routing rule exists: model identifiers beginning with the
// "typhoon" prefix go to the OpenTyphoon endpoint, everything else goes to
// Groq. The layer performs no retries; upstream failures (auth, rate limit,
// network) propagate unchanged to the caller.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// TyphoonPrefix is the model identifier prefix that routes to OpenTyphoon.
const TyphoonPrefix = "typhoon"

// Message is one role-tagged entry of a model request.
// Roles use the OpenAI wire values: system, user, assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	ModelID     string
	Messages    []Message
	Temperature float32
}

// TokenStream is a lazy, finite, non-restartable sequence of incremental
// text fragments. Recv returns io.EOF when the upstream signals completion.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Config holds the upstream endpoint and credential pairs.
type Config struct {
	TyphoonBaseURL string
	TyphoonAPIKey  string
	GroqBaseURL    string
	GroqAPIKey     string
}

// Gateway issues completion requests against the configured upstreams.
// Client bindings are built once and reused; resolution by model id stays
// call-parameterized.
type Gateway struct {
	typhoon *openai.Client
	groq    *openai.Client
	logger  *slog.Logger
}

// New creates a Gateway with one cached client per vendor.
func New(cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		typhoon: newClient(cfg.TyphoonBaseURL, cfg.TyphoonAPIKey),
		groq:    newClient(cfg.GroqBaseURL, cfg.GroqAPIKey),
		logger:  logger,
	}
}

func newClient(baseURL, apiKey string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// resolve maps a model identifier to its upstream client binding.
func (g *Gateway) resolve(modelID string) *openai.Client {
	if strings.HasPrefix(modelID, TyphoonPrefix) {
		return g.typhoon
	}
	return g.groq
}

// Vendor reports which upstream a model identifier routes to.
// Exposed for logging and tests; the routing rule lives in resolve.
func Vendor(modelID string) string {
	if strings.HasPrefix(modelID, TyphoonPrefix) {
		return "typhoon"
	}
	return "groq"
}

// Complete issues a non-streaming completion and returns the final text.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	client := g.resolve(req.ModelID)

	resp, err := client.CreateChatCompletion(ctx, chatRequest(req, false))
	if err != nil {
		return "", fmt.Errorf("completion failed for model %s: %w", req.ModelID, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion for model %s returned no choices", req.ModelID)
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream issues a streaming completion. The returned TokenStream must be
// closed by the caller; cleanup of the upstream handle is best-effort.
func (g *Gateway) Stream(ctx context.Context, req Request) (TokenStream, error) {
	client := g.resolve(req.ModelID)

	stream, err := client.CreateChatCompletionStream(ctx, chatRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("stream start failed for model %s: %w", req.ModelID, err)
	}

	g.logger.Debug("stream opened", "model_id", req.ModelID, "vendor", Vendor(req.ModelID))
	return &tokenStream{inner: stream}, nil
}

func chatRequest(req Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	// The client marshals temperature with omitempty, which would drop an
	// explicit 0 and let the vendor default apply. The smallest positive
	// float keeps the field on the wire.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model:       req.ModelID,
		Messages:    messages,
		Temperature: temperature,
		Stream:      stream,
	}
}

// tokenStream adapts the go-openai stream to TokenStream.
type tokenStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next text fragment. Chunks without choices (for example
// role-only frames) come back as empty strings; io.EOF marks completion.
func (s *tokenStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

// Close releases the upstream stream handle.
func (s *tokenStream) Close() error {
	return s.inner.Close()
}
