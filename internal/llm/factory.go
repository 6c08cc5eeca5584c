package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates the chat provider named in config.
// backend serves the "backend" provider and may be nil for the others.
func NewProvider(config Config, backend BackendChat) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(config.Provider))

	switch provider {
	case "", "backend":
		if backend == nil {
			return nil, fmt.Errorf("backend chat provider needs an analysis service client")
		}
		return NewBackendProvider(backend), nil

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown chat provider: %s (supported: backend, openai, anthropic, ollama)", config.Provider)
	}
}
