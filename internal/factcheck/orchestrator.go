// Package factcheck turns statements into scored, evidenced verification
// results and caches them per session.
package factcheck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/reportlens/internal/backend"
	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/model"
)

// ErrPending is returned when a verification for the same key is already in flight
var ErrPending = errors.New("fact-check already pending")

// Verifier calls the external fact-check endpoint
type Verifier interface {
	FactCheck(ctx context.Context, statement string) (*model.FactCheckResult, []byte, error)
}

// StateFunc receives every fact-check state transition of one target
type StateFunc func(model.FactCheckState)

// Classify maps a score to its confidence tier
func Classify(score float64) model.Confidence {
	return model.ClassifyScore(score)
}

// AverageScore is the mean claim score, 0 for no claims
func AverageScore(claims []model.FactCheckClaim) float64 {
	return model.FactCheckResult{Claims: claims}.AverageScore()
}

// Summary builds the single indicator shown for a multi-claim result
func Summary(result *model.FactCheckResult) model.FactCheckSummary {
	if result == nil {
		return model.Summarize(model.FactCheckResult{})
	}
	return model.Summarize(*result)
}

// Orchestrator verifies statements against one session's result cache.
// Different keys may verify concurrently; a key has at most one call in flight.
type Orchestrator struct {
	cache    cache.Cache
	verifier Verifier
	ttl      time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	decoded map[string]*model.FactCheckResult
}

// NewOrchestrator creates an orchestrator over c
func NewOrchestrator(c cache.Cache, v Verifier) *Orchestrator {
	return &Orchestrator{
		cache:    c,
		verifier: v,
		ttl:      cache.NoExpiration,
		pending:  make(map[string]struct{}),
		decoded:  make(map[string]*model.FactCheckResult),
	}
}

// SetTTL sets the lifetime of stored results. The default keeps them until
// resync; zero defers to the cache's own default.
func (o *Orchestrator) SetTTL(ttl time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ttl = ttl
}

// Verify returns the result for key, calling the verifier only on a cache miss.
// onState (may be nil) sees pending before the call, then available or absent.
// A failed call leaves nothing cached.
func (o *Orchestrator) Verify(ctx context.Context, statement, key string, onState StateFunc) (*model.FactCheckResult, error) {
	if onState == nil {
		onState = func(model.FactCheckState) {}
	}

	o.mu.Lock()
	if _, busy := o.pending[key]; busy {
		o.mu.Unlock()
		return nil, ErrPending
	}
	if result, ok := o.cachedLocked(key); ok {
		o.mu.Unlock()
		onState(model.Available(result))
		return result, nil
	}
	o.pending[key] = struct{}{}
	o.mu.Unlock()

	onState(model.Pending())

	result, raw, err := o.verifier.FactCheck(ctx, statement)

	o.mu.Lock()
	delete(o.pending, key)
	if err == nil {
		if setErr := o.cache.Set(key, raw, o.ttl); setErr != nil {
			err = fmt.Errorf("cache fact-check: %w", setErr)
		} else {
			o.decoded[key] = result
		}
	}
	o.mu.Unlock()

	if err != nil {
		onState(model.Absent())
		return nil, fmt.Errorf("fact-check: %w", err)
	}

	onState(model.Available(result))
	return result, nil
}

// Cached returns the cached result for key without calling the verifier
func (o *Orchestrator) Cached(key string) (*model.FactCheckResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cachedLocked(key)
}

// IsPending reports whether key has a call in flight
func (o *Orchestrator) IsPending(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.pending[key]
	return busy
}

// Resync drops the cached result so the next Verify calls the verifier again
func (o *Orchestrator) Resync(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.decoded, key)
	return o.cache.Delete(key)
}

func (o *Orchestrator) cachedLocked(key string) (*model.FactCheckResult, bool) {
	raw, ok := o.cache.Get(key)
	if !ok {
		delete(o.decoded, key)
		return nil, false
	}
	if result, ok := o.decoded[key]; ok {
		return result, true
	}

	result, err := backend.ParseFactCheck(raw)
	if err != nil {
		// Unreadable entries are treated as a miss
		_ = o.cache.Delete(key)
		return nil, false
	}
	o.decoded[key] = result
	return result, true
}
