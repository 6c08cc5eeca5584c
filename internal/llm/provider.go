package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/reportlens/internal/model"
)

// Provider answers chat messages about the loaded report
type Provider interface {
	// Name returns the provider name
	Name() string

	// Reply answers one chat message. An empty reply with a nil error means
	// the provider answered without usable text.
	Reply(ctx context.Context, req ChatRequest) (string, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ChatRequest is one user turn
type ChatRequest struct {
	// Message is the user's text
	Message string

	// Option is the report section the user is looking at
	Option string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// Config holds chat provider configuration
type Config struct {
	// Provider name: "backend", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns the defaults: answer through the analysis service
func DefaultConfig() Config {
	return Config{
		Provider:  "backend",
		Timeout:   60,
		MaxTokens: 1000,
	}
}

// ConfigFromModel builds a provider config from the repo config, keeping the
// defaults for anything left unset. Proxy settings are shared with the
// analysis service client.
func ConfigFromModel(chat model.ChatConfig, backend model.BackendConfig) Config {
	cfg := DefaultConfig()
	if chat.Provider != "" {
		cfg.Provider = chat.Provider
	}
	if chat.Timeout > 0 {
		cfg.Timeout = chat.Timeout
	}
	if chat.MaxTokens > 0 {
		cfg.MaxTokens = chat.MaxTokens
	}
	cfg.Model = chat.Model
	cfg.APIKey = chat.APIKey
	cfg.BaseURL = chat.BaseURL
	cfg.HTTPProxy = backend.HTTPProxy
	cfg.HTTPSProxy = backend.HTTPSProxy
	cfg.NoProxy = backend.NoProxy
	return cfg
}

var sectionTopics = map[string]string{
	string(model.SectionExecutiveSummary): "the executive summary",
	string(model.SectionMarketAnalysis):   "the market analysis",
	string(model.SectionRiskFactors):      "the risk factors",
	"financial-statements":                "the financial statements",
}

// BuildSystemPrompt builds the system prompt for a question asked from the given section
func BuildSystemPrompt(option string) string {
	var b strings.Builder
	b.WriteString("You are a financial analyst assistant answering questions about an uploaded financial report.\n")
	b.WriteString("Answer only from the report. If the report does not contain the answer, say so.\n")
	b.WriteString("Quote figures exactly as they appear and name the page when you know it.\n")

	if topic, ok := sectionTopics[strings.ToLower(strings.TrimSpace(option))]; ok {
		fmt.Fprintf(&b, "The user is currently reading %s; prefer context from that section.\n", topic)
	} else if option != "" {
		fmt.Fprintf(&b, "The user is currently reading the %q section.\n", option)
	}
	return b.String()
}

func (c Config) maxTokens(req ChatRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func (c Config) model(req ChatRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
