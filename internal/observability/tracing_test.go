package observability

import (
	"context"
	"testing"

	"github.com/huak95/mongkol-backend-rag/internal/log"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	provider, shutdown, err := Setup(context.Background(), Config{
		ServiceName: "mongkol-test",
	}, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	if provider == nil {
		t.Fatal("provider must not be nil when disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() = %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	// The exporter connects lazily; setup must succeed even when nothing
	// listens on the endpoint.
	provider, shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "localhost:4318",
		ServiceName: "mongkol-test",
		Environment: "test",
	}, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}

	tracer := provider.Tracer("setup-test")
	_, span := tracer.Start(context.Background(), "test.span")
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // don't wait for a flush against a dead endpoint
	_ = shutdown(ctx)
}
