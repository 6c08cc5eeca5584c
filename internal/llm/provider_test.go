package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/reportlens/internal/model"
)

type fakeBackend struct {
	reply     string
	ok        bool
	err       error
	healthErr error
	option    string
}

func (f *fakeBackend) Chat(ctx context.Context, message, option string) (string, bool, error) {
	f.option = option
	return f.reply, f.ok, f.err
}

func (f *fakeBackend) Health(ctx context.Context) error {
	return f.healthErr
}

func TestNewProvider(t *testing.T) {
	backend := &fakeBackend{}

	tests := []struct {
		name    string
		config  Config
		want    string
		wantErr bool
	}{
		{"default", Config{}, "backend", false},
		{"backend", Config{Provider: "Backend"}, "backend", false},
		{"openai", Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{"claude alias", Config{Provider: "claude", APIKey: "k"}, "anthropic", false},
		{"ollama", Config{Provider: "ollama", Model: "mistral"}, "ollama", false},
		{"openai without key", Config{Provider: "openai"}, "", true},
		{"unknown", Config{Provider: "gemini"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config, backend)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got provider %v", p)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, p.Name())
			}
		})
	}
}

func TestNewProvider_BackendRequiresClient(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "backend"}, nil); err == nil {
		t.Error("expected error without analysis service client")
	}
}

func TestBackendProvider_Reply(t *testing.T) {
	backend := &fakeBackend{reply: "Margins expanded.", ok: true}
	p := NewBackendProvider(backend)

	reply, err := p.Reply(context.Background(), ChatRequest{Message: "Margins?", Option: "executive-summary"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "Margins expanded." {
		t.Errorf("unexpected reply %q", reply)
	}
	if backend.option != "executive-summary" {
		t.Errorf("expected option to be forwarded, got %q", backend.option)
	}

	backend.ok = false
	if reply, _ := p.Reply(context.Background(), ChatRequest{Message: "x"}); reply != "" {
		t.Errorf("expected empty reply when response field is missing, got %q", reply)
	}

	backend.err = errors.New("connection refused")
	if _, err := p.Reply(context.Background(), ChatRequest{Message: "x"}); err == nil {
		t.Error("expected transport error to propagate")
	}
}

func TestBackendProvider_IsAvailable(t *testing.T) {
	backend := &fakeBackend{}
	p := NewBackendProvider(backend)
	if !p.IsAvailable(context.Background()) {
		t.Error("expected available")
	}
	backend.healthErr = errors.New("down")
	if p.IsAvailable(context.Background()) {
		t.Error("expected unavailable")
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	if got := BuildSystemPrompt("market-analysis"); !strings.Contains(got, "the market analysis") {
		t.Errorf("expected market analysis context, got %q", got)
	}
	if got := BuildSystemPrompt("valuation"); !strings.Contains(got, `"valuation"`) {
		t.Errorf("expected quoted unknown section, got %q", got)
	}
	if got := BuildSystemPrompt(""); strings.Contains(got, "currently reading") {
		t.Errorf("expected no section context, got %q", got)
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Chat.Provider = "ollama"
	cfg.Chat.Model = "mistral"
	cfg.Backend.HTTPProxy = "http://proxy:8080"

	got := ConfigFromModel(cfg.Chat, cfg.Backend)
	if got.Provider != "ollama" || got.Model != "mistral" || got.HTTPProxy != "http://proxy:8080" {
		t.Errorf("unexpected config %+v", got)
	}
	if got.MaxTokens != 1000 || got.Timeout != 60 {
		t.Errorf("expected defaults to carry over, got %+v", got)
	}
}

func TestConfigFromModel_Defaults(t *testing.T) {
	got := ConfigFromModel(model.ChatConfig{APIKey: "sk-test"}, model.BackendConfig{NoProxy: "localhost"})

	want := DefaultConfig()
	if got.Provider != want.Provider || got.Timeout != want.Timeout || got.MaxTokens != want.MaxTokens {
		t.Errorf("expected defaults for unset fields, got %+v", got)
	}
	if got.APIKey != "sk-test" || got.NoProxy != "localhost" {
		t.Errorf("expected set fields to carry over, got %+v", got)
	}
}
