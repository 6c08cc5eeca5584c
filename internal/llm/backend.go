package llm

import (
	"context"
	"fmt"
	"os"
)

// BackendChat is the chat surface of the analysis service client
type BackendChat interface {
	Chat(ctx context.Context, message, option string) (string, bool, error)
	Health(ctx context.Context) error
}

// BackendProvider forwards chat turns to the analysis service's /chat endpoint
type BackendProvider struct {
	client BackendChat
}

// NewBackendProvider wraps client
func NewBackendProvider(client BackendChat) *BackendProvider {
	return &BackendProvider{client: client}
}

// Name returns the provider name
func (p *BackendProvider) Name() string {
	return "backend"
}

// IsAvailable checks that the analysis service answers
func (p *BackendProvider) IsAvailable(ctx context.Context) bool {
	if err := p.client.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Analysis service check failed: %v\n", err)
		return false
	}
	return true
}

// Reply sends the message with its section option
func (p *BackendProvider) Reply(ctx context.Context, req ChatRequest) (string, error) {
	reply, ok, err := p.client.Chat(ctx, req.Message, req.Option)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return reply, nil
}
