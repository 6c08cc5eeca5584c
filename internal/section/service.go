// Package section loads the AI-generated narrative sections of a report and
// fact-checks them, caching both per session.
package section

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/model"
	"github.com/ppiankov/reportlens/internal/worker"
)

// Fetcher generates section narratives
type Fetcher interface {
	Narrative(ctx context.Context, s model.Section) (*model.Narrative, error)
}

// View is a loaded section ready for display
type View struct {
	Section   model.Section           `json:"section"`
	Title     string                  `json:"title"`
	Narrative model.Narrative         `json:"narrative"`
	Blocks    []model.Block           `json:"blocks"`
	Cached    bool                    `json:"cached"`
	FactCheck *model.FactCheckResult  `json:"fact_check,omitempty"`
	Summary   *model.FactCheckSummary `json:"fact_check_summary,omitempty"`
}

// FactCheckView is the verification of a whole section
type FactCheckView struct {
	Section model.Section          `json:"section"`
	Result  *model.FactCheckResult `json:"result"`
	Summary model.FactCheckSummary `json:"summary"`
}

// Service serves one session's sections
type Service struct {
	fetcher Fetcher
	cache   cache.Cache
	facts   *factcheck.Orchestrator
	ttl     time.Duration

	mu    sync.Mutex
	locks map[model.Section]*sync.Mutex
}

// NewService creates a section service over a session's cache
func NewService(fetcher Fetcher, c cache.Cache, facts *factcheck.Orchestrator) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   c,
		facts:   facts,
		ttl:     cache.NoExpiration,
		locks:   make(map[model.Section]*sync.Mutex),
	}
}

// SetTTL sets the lifetime of cached narratives and initial-fetch sentinels.
// Zero defers to the cache's own default.
func (s *Service) SetTTL(ttl time.Duration) {
	s.ttl = ttl
}

// Title is the human name of a section
func Title(s model.Section) string {
	switch s {
	case model.SectionExecutiveSummary:
		return "executive summary"
	case model.SectionMarketAnalysis:
		return "market analysis"
	case model.SectionRiskFactors:
		return "risk factors"
	default:
		return string(s)
	}
}

// LoadErrorMessage is the user-facing text for a failed load
func LoadErrorMessage(s model.Section) string {
	return fmt.Sprintf("Failed to load %s. Please try again later.", Title(s))
}

// FactCheckErrorMessage is the user-facing text for a failed fact-check
func FactCheckErrorMessage(s model.Section) string {
	return fmt.Sprintf("Failed to fact-check %s. Please try again later.", Title(s))
}

// Load returns the section narrative, fetching it only when it is not cached.
// Concurrent loads of one section share a single fetch.
func (s *Service) Load(ctx context.Context, sec model.Section) (*View, error) {
	lock := s.lock(sec)
	lock.Lock()
	defer lock.Unlock()

	key := cache.SummaryKey(sec)
	if raw, ok := s.cache.Get(key); ok {
		var n model.Narrative
		if err := json.Unmarshal(raw, &n); err == nil {
			return s.view(sec, n, true)
		}
		_ = s.cache.Delete(key)
	}

	n, err := s.fetcher.Narrative(ctx, sec)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", sec, err)
	}
	n.Summary = CleanMarkdown(n.Summary)

	raw, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", sec, err)
	}
	if err := s.cache.Set(key, raw, s.ttl); err != nil {
		return nil, fmt.Errorf("cache %s: %w", sec, err)
	}
	return s.view(sec, *n, false)
}

// Resync drops the cached narrative and fact-check of a section and fetches it again
func (s *Service) Resync(ctx context.Context, sec model.Section) (*View, error) {
	if s.facts.IsPending(cache.SectionFactCheckKey(sec)) {
		return nil, factcheck.ErrPending
	}
	if err := s.cache.Delete(cache.SummaryKey(sec)); err != nil {
		return nil, fmt.Errorf("resync %s: %w", sec, err)
	}
	if err := s.facts.Resync(cache.SectionFactCheckKey(sec)); err != nil {
		return nil, fmt.Errorf("resync %s: %w", sec, err)
	}
	return s.Load(ctx, sec)
}

// FactCheck verifies the section's summary
func (s *Service) FactCheck(ctx context.Context, sec model.Section) (*FactCheckView, error) {
	v, err := s.Load(ctx, sec)
	if err != nil {
		return nil, err
	}

	result, err := s.facts.Verify(ctx, v.Narrative.Summary, cache.SectionFactCheckKey(sec), nil)
	if err != nil {
		return nil, err
	}
	return &FactCheckView{
		Section: sec,
		Result:  result,
		Summary: factcheck.Summary(result),
	}, nil
}

// CachedFactCheck returns the section's verification if one is cached
func (s *Service) CachedFactCheck(sec model.Section) (*FactCheckView, bool) {
	result, ok := s.facts.Cached(cache.SectionFactCheckKey(sec))
	if !ok {
		return nil, false
	}
	return &FactCheckView{Section: sec, Result: result, Summary: factcheck.Summary(result)}, true
}

// InitialFetchDone reports whether the automatic first fetch of sec already ran
func (s *Service) InitialFetchDone(sec model.Section) bool {
	_, ok := s.cache.Get(cache.InitialFetchKey(sec))
	return ok
}

// Prefetch loads every section whose automatic first fetch has not run yet.
// The sentinel is set before fetching so a failed fetch is not repeated
// automatically; the user can resync instead.
func (s *Service) Prefetch(ctx context.Context, workers int) []*worker.TaskResult {
	var tasks []worker.Task
	for _, sec := range model.Sections {
		if s.InitialFetchDone(sec) {
			continue
		}
		_ = s.cache.Set(cache.InitialFetchKey(sec), []byte("true"), s.ttl)

		tasks = append(tasks, worker.Task{
			Name: string(sec),
			Run: func(ctx context.Context) error {
				_, err := s.Load(ctx, sec)
				return err
			},
		})
	}
	return worker.RunTasks(ctx, workers, tasks)
}

func (s *Service) view(sec model.Section, n model.Narrative, cached bool) (*View, error) {
	blocks, err := RenderBlocks(SplitBlocks(n.Summary))
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []model.Block{}
	}

	v := &View{
		Section:   sec,
		Title:     Title(sec),
		Narrative: n,
		Blocks:    blocks,
		Cached:    cached,
	}
	if result, ok := s.facts.Cached(cache.SectionFactCheckKey(sec)); ok {
		summary := factcheck.Summary(result)
		v.FactCheck = result
		v.Summary = &summary
	}
	return v, nil
}

func (s *Service) lock(sec model.Section) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sec]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sec] = l
	}
	return l
}
