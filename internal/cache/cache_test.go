package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/reportlens/internal/model"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewSessionCache()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	if err := c.Set("k", []byte("v"), NoExpiration); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected v, got %q (found=%v)", got, ok)
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_CopiesValue(t *testing.T) {
	c := NewSessionCache()
	buf := []byte("abc")
	_ = c.Set("k", buf, NoExpiration)
	buf[0] = 'x'

	got, _ := c.Get("k")
	if string(got) != "abc" {
		t.Errorf("expected stored copy abc, got %q", got)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewSessionCache()
	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	_ = c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache(NoExpiration, 0)
	_ = c.Set("short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected entry with ttl to expire")
	}
}

func TestKeys_Namespaced(t *testing.T) {
	keys := map[string]bool{}
	all := []string{
		ChatFactCheckKey("123"),
		StatementFactCheckKey("123"),
		FinancialStatementsKey,
	}
	for _, s := range model.Sections {
		all = append(all, SummaryKey(s), SectionFactCheckKey(s), InitialFetchKey(s))
	}
	for _, k := range all {
		if keys[k] {
			t.Errorf("duplicate key %q", k)
		}
		keys[k] = true
	}

	if got := ChatFactCheckKey("123"); got != "chat_fact_check_123" {
		t.Errorf("unexpected chat key %q", got)
	}
	if got := SummaryKey(model.SectionMarketAnalysis); got != "market_summary_cache" {
		t.Errorf("unexpected summary key %q", got)
	}
	if got := SectionFactCheckKey(model.SectionRiskFactors); got != "risk_fact_check_cache" {
		t.Errorf("unexpected fact-check key %q", got)
	}
	if got := InitialFetchKey(model.SectionRiskFactors); got != "risk_initial_fetch" {
		t.Errorf("unexpected sentinel key %q", got)
	}
}

func TestSessionStore_Lifecycle(t *testing.T) {
	built := 0
	store := NewSessionStore(time.Hour, func(id string) *MemoryCache {
		built++
		return NewSessionCache()
	})

	id, c := store.Create()
	if id == "" || c == nil {
		t.Fatal("expected new session")
	}
	_ = c.Set("k", []byte("v"), NoExpiration)

	got, ok := store.Get(id)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if v, _ := got.Get("k"); string(v) != "v" {
		t.Error("expected session cache to be shared across lookups")
	}

	store.End(id)
	if _, ok := store.Get(id); ok {
		t.Error("expected session to be gone after End")
	}
	if built != 1 {
		t.Errorf("expected factory to run once, ran %d times", built)
	}
}

func TestSessionStore_GetOrCreate(t *testing.T) {
	store := NewSessionStore(time.Hour, func(id string) string { return "session:" + id })

	id, val := store.GetOrCreate("not-a-uuid")
	if id == "not-a-uuid" {
		t.Error("expected a fresh id for an invalid session id")
	}
	if val != "session:"+id {
		t.Errorf("unexpected value %q", val)
	}

	id2, _ := store.GetOrCreate(id)
	if id2 != id {
		t.Errorf("expected live session %s to be reused, got %s", id, id2)
	}

	unknown := "2f1b6c1e-8a34-4c2a-9d7e-0c6f4b1a2d3e"
	id3, _ := store.GetOrCreate(unknown)
	if id3 == unknown {
		t.Error("expected a fresh id for a well-formed id the store never issued")
	}
	if _, ok := store.Get(unknown); ok {
		t.Error("expected no session under the client-chosen id")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", store.Len())
	}
}

func TestSessionStore_EndDuringGet(t *testing.T) {
	store := NewSessionStore(time.Hour, func(id string) *MemoryCache { return NewSessionCache() })

	for i := 0; i < 200; i++ {
		id, _ := store.Create()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Get(id)
		}()
		go func() {
			defer wg.Done()
			store.End(id)
		}()
		wg.Wait()

		if _, ok := store.Get(id); ok {
			t.Fatalf("iteration %d: ended session came back", i)
		}
	}
}
