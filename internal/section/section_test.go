package section

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/reportlens/internal/backend"
	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/model"
)

const marketSummary = "### Market Position\nThe company holds **18%** share.\n\nCompetition is rising.\n\n### Outlook\nDemand is expected to grow."

type stubFetcher struct {
	calls int32
	fail  map[model.Section]bool
}

func (f *stubFetcher) Narrative(ctx context.Context, s model.Section) (*model.Narrative, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail[s] {
		return nil, &backend.StatusError{Method: "POST", Path: "/x", StatusCode: 500}
	}
	return &model.Narrative{Message: "ok", Summary: marketSummary}, nil
}

type stubVerifier struct {
	calls     int32
	statement string
}

func (v *stubVerifier) FactCheck(ctx context.Context, statement string) (*model.FactCheckResult, []byte, error) {
	atomic.AddInt32(&v.calls, 1)
	v.statement = statement
	raw := []byte(`{"fact_check":[{"claim":"18% share","score":0.6,"page":3},{"claim":"demand","score":0.2,"page":9}]}`)
	result, err := backend.ParseFactCheck(raw)
	return result, raw, err
}

func newService(f Fetcher, v factcheck.Verifier) (*Service, *cache.MemoryCache) {
	c := cache.NewSessionCache()
	return NewService(f, c, factcheck.NewOrchestrator(c, v)), c
}

func TestSplitBlocks(t *testing.T) {
	blocks := SplitBlocks(marketSummary)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Title != "Market Position" || blocks[1].Title != "Outlook" {
		t.Errorf("unexpected titles %q, %q", blocks[0].Title, blocks[1].Title)
	}
	if len(blocks[0].Paragraphs) != 2 || blocks[0].Paragraphs[1] != "Competition is rising." {
		t.Errorf("unexpected paragraphs %q", blocks[0].Paragraphs)
	}
}

func TestSplitBlocks_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		titles []string
	}{
		{"empty", "", nil},
		{"only delimiters", "### \n###\n", nil},
		{"preamble", "Intro line\n### Risks\nFX", []string{"Intro line", "Risks"}},
		{"deeper heading", "#### Liquidity\nStrong", []string{"Liquidity"}},
		{"crlf", "### A\r\nbody\r\n", []string{"A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := SplitBlocks(tt.in)
			if len(blocks) != len(tt.titles) {
				t.Fatalf("expected %d blocks, got %d: %+v", len(tt.titles), len(blocks), blocks)
			}
			for i, b := range blocks {
				if b.Title != tt.titles[i] {
					t.Errorf("block %d: expected %q, got %q", i, tt.titles[i], b.Title)
				}
			}
		})
	}
}

func TestRenderAndPlainText(t *testing.T) {
	html, err := RenderMarkdown("The company holds **18%** share.")
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if !strings.Contains(html, "<strong>18%</strong>") {
		t.Errorf("unexpected html %q", html)
	}

	text, err := PlainText(marketSummary)
	if err != nil {
		t.Fatalf("PlainText: %v", err)
	}
	if strings.Contains(text, "#") || strings.Contains(text, "**") {
		t.Errorf("expected markup stripped, got %q", text)
	}
	if !strings.Contains(text, "The company holds 18% share.") {
		t.Errorf("expected sentence preserved, got %q", text)
	}
	if lines := strings.Split(text, "\n"); len(lines) != 5 {
		t.Errorf("expected one line per block element, got %q", lines)
	}
}

func TestCleanMarkdown(t *testing.T) {
	if got := CleanMarkdown("```markdown\n### A\nb\n```"); got != "### A\nb" {
		t.Errorf("unexpected %q", got)
	}
	if got := CleanMarkdown("  plain  "); got != "plain" {
		t.Errorf("unexpected %q", got)
	}
}

func TestLoad_CachesNarrative(t *testing.T) {
	f := &stubFetcher{}
	svc, c := newService(f, &stubVerifier{})
	ctx := context.Background()

	first, err := svc.Load(ctx, model.SectionMarketAnalysis)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first.Cached || len(first.Blocks) != 2 || first.Blocks[0].HTML == "" {
		t.Errorf("unexpected first view %+v", first)
	}
	if _, ok := c.Get("market_summary_cache"); !ok {
		t.Error("expected narrative cached under market_summary_cache")
	}

	second, err := svc.Load(ctx, model.SectionMarketAnalysis)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !second.Cached {
		t.Error("expected cached view")
	}
	if atomic.LoadInt32(&f.calls) != 1 {
		t.Errorf("expected 1 fetch, got %d", f.calls)
	}
}

func TestLoad_FailureNotCached(t *testing.T) {
	f := &stubFetcher{fail: map[model.Section]bool{model.SectionRiskFactors: true}}
	svc, c := newService(f, &stubVerifier{})

	_, err := svc.Load(context.Background(), model.SectionRiskFactors)
	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("expected nothing cached after a failed load")
	}
	if got := LoadErrorMessage(model.SectionRiskFactors); got != "Failed to load risk factors. Please try again later." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestLoad_ConcurrentSingleFetch(t *testing.T) {
	f := &stubFetcher{}
	svc, _ := newService(f, &stubVerifier{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Load(context.Background(), model.SectionExecutiveSummary)
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&f.calls) != 1 {
		t.Errorf("expected 1 fetch for concurrent loads, got %d", f.calls)
	}
}

func TestFactCheck_AndResync(t *testing.T) {
	f := &stubFetcher{}
	v := &stubVerifier{}
	svc, c := newService(f, v)
	ctx := context.Background()

	fc, err := svc.FactCheck(ctx, model.SectionMarketAnalysis)
	if err != nil {
		t.Fatalf("FactCheck: %v", err)
	}
	if fc.Summary.Claims != 2 || fc.Summary.Confidence != model.ConfidenceLow {
		t.Errorf("unexpected summary %+v", fc.Summary)
	}
	if v.statement != marketSummary {
		t.Errorf("expected the summary sent unchanged, got %q", v.statement)
	}
	if _, ok := c.Get("market_fact_check_cache"); !ok {
		t.Error("expected fact-check cached under market_fact_check_cache")
	}

	view, _ := svc.Load(ctx, model.SectionMarketAnalysis)
	if view.FactCheck == nil || view.Summary == nil {
		t.Error("expected cached fact-check attached to the view")
	}
	if cached, ok := svc.CachedFactCheck(model.SectionMarketAnalysis); !ok || len(cached.Result.Claims) != 2 {
		t.Errorf("expected CachedFactCheck to return the result, got %+v %v", cached, ok)
	}

	if _, err := svc.FactCheck(ctx, model.SectionMarketAnalysis); err != nil {
		t.Fatalf("second FactCheck: %v", err)
	}
	if atomic.LoadInt32(&v.calls) != 1 {
		t.Errorf("expected 1 verifier call, got %d", v.calls)
	}

	if _, err := svc.Resync(ctx, model.SectionMarketAnalysis); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if atomic.LoadInt32(&f.calls) != 2 {
		t.Errorf("expected refetch after resync, got %d fetches", f.calls)
	}
	if _, ok := c.Get("market_fact_check_cache"); ok {
		t.Error("expected fact-check dropped by resync")
	}
	if _, ok := svc.CachedFactCheck(model.SectionMarketAnalysis); ok {
		t.Error("expected no cached fact-check after resync")
	}
}

func TestPrefetch_Sentinels(t *testing.T) {
	f := &stubFetcher{fail: map[model.Section]bool{model.SectionRiskFactors: true}}
	svc, _ := newService(f, &stubVerifier{})

	results := svc.Prefetch(context.Background(), 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if (r.Err != nil) != (r.Name == string(model.SectionRiskFactors)) {
			t.Errorf("%s: unexpected error state %v", r.Name, r.Err)
		}
	}
	for _, s := range model.Sections {
		if !svc.InitialFetchDone(s) {
			t.Errorf("%s: expected sentinel set", s)
		}
	}

	// A second prefetch does nothing, including for the failed section
	if again := svc.Prefetch(context.Background(), 3); len(again) != 0 {
		t.Errorf("expected no work on second prefetch, got %d tasks", len(again))
	}
	if atomic.LoadInt32(&f.calls) != 3 {
		t.Errorf("expected 3 fetches in total, got %d", f.calls)
	}
}

func TestLoad_TTL(t *testing.T) {
	f := &stubFetcher{}
	c := cache.NewMemoryCache(20*time.Millisecond, time.Minute)
	svc := NewService(f, c, factcheck.NewOrchestrator(c, &stubVerifier{}))
	svc.SetTTL(0)

	ctx := context.Background()
	if _, err := svc.Load(ctx, model.SectionMarketAnalysis); err != nil {
		t.Fatalf("Load: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := svc.Load(ctx, model.SectionMarketAnalysis); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if got := atomic.LoadInt32(&f.calls); got != 2 {
		t.Errorf("expected a refetch once the narrative expired, got %d fetches", got)
	}
}
