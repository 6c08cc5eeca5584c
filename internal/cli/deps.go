package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/reportlens/internal/backend"
	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/llm"
	"github.com/ppiankov/reportlens/internal/model"
	"github.com/ppiankov/reportlens/internal/section"
	"github.com/ppiankov/reportlens/internal/worker"
)

// newBackend builds the rate-limited analysis service client
func newBackend(cfg *model.Config) *backend.Client {
	return backend.NewClient(cfg.Backend, newLimiter(cfg.RateLimiting))
}

// newLimiter applies the default rate and any per-host overrides
func newLimiter(cfg model.RateLimitingConfig) *worker.Limiter {
	limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
	for _, h := range cfg.Hosts {
		if h.Host == "" {
			continue
		}
		limiter.SetHostRate(h.Host, h.RequestsPerSecond, h.BurstSize)
	}
	return limiter
}

// newChatProvider builds the configured chat provider
func newChatProvider(cfg *model.Config, client *backend.Client) (llm.Provider, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.Chat, cfg.Backend), client)
	if err != nil {
		return nil, fmt.Errorf("chat provider: %w", err)
	}
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Chat provider: %s\n", provider.Name())
	}
	return provider, nil
}

// commandContext bounds a one-shot command by the backend timeout
func commandContext(cfg *model.Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Backend.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return context.WithTimeout(context.Background(), timeout)
}

// newOrchestrator verifies statements over the CLI result cache.
// A zero ttl lets the disk layer apply cache.ttl.
func newOrchestrator(c cache.Cache, client *backend.Client) *factcheck.Orchestrator {
	o := factcheck.NewOrchestrator(c, client)
	o.SetTTL(0)
	return o
}

// newSectionService loads sections over the CLI result cache
func newSectionService(c cache.Cache, client *backend.Client) *section.Service {
	svc := section.NewService(client, c, newOrchestrator(c, client))
	svc.SetTTL(0)
	return svc
}

// resultCache is memory only unless the disk cache is enabled
func resultCache(cfg *model.Config) cache.Cache {
	mem := cache.NewSessionCache()
	if !cfg.Cache.Enabled {
		return mem
	}

	dir := cfg.Cache.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory, disk cache disabled: %v\n", err)
			return mem
		}
		dir = filepath.Join(home, ".reportlens", "cache")
	}
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Cache: %s\n", dir)
	}
	return cache.NewLayeredCache(mem, cache.NewDiskCache(dir, cfg.Cache.TTL))
}
