package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/reportlens/internal/backend"
	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/llm"
	"github.com/ppiankov/reportlens/internal/model"
)

type stubResponder struct {
	reply   func(req llm.ChatRequest) (string, error)
	release chan struct{}
	started chan struct{}
}

func (s *stubResponder) Reply(ctx context.Context, req llm.ChatRequest) (string, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	return s.reply(req)
}

type stubVerifier struct {
	body  string
	calls int32
}

func (s *stubVerifier) FactCheck(ctx context.Context, statement string) (*model.FactCheckResult, []byte, error) {
	atomic.AddInt32(&s.calls, 1)
	raw := []byte(s.body)
	result, err := backend.ParseFactCheck(raw)
	if err != nil {
		return nil, nil, err
	}
	return result, raw, nil
}

func echo(req llm.ChatRequest) (string, error) {
	return "re: " + req.Message, nil
}

func newManager(responder Responder, verifier factcheck.Verifier) (*Manager, *cache.MemoryCache) {
	c := cache.NewSessionCache()
	return NewManager(responder, factcheck.NewOrchestrator(c, verifier)), c
}

func TestSubmit_Success(t *testing.T) {
	var gotOption string
	m, _ := newManager(&stubResponder{reply: func(req llm.ChatRequest) (string, error) {
		gotOption = req.Option
		return "Revenue grew 12% YoY", nil
	}}, nil)

	m.SetInput("How did revenue do?")
	res, err := m.Submit(context.Background(), "How did revenue do?", "executive-summary")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("unexpected upstream error %v", res.Err)
	}
	if gotOption != "executive-summary" {
		t.Errorf("expected option forwarded, got %q", gotOption)
	}

	msgs := m.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Sender != model.SenderUser || msgs[1].Sender != model.SenderAssistant {
		t.Errorf("unexpected senders %s, %s", msgs[0].Sender, msgs[1].Sender)
	}
	if msgs[1].Content != "Revenue grew 12% YoY" {
		t.Errorf("unexpected reply %q", msgs[1].Content)
	}
	if msgs[1].FactCheck.Status != model.FactCheckAbsent {
		t.Errorf("expected fresh reply to have no fact-check, got %s", msgs[1].FactCheck.Status)
	}
	if m.Input() != "" {
		t.Errorf("expected input cleared, got %q", m.Input())
	}
	if m.InFlight() {
		t.Error("expected in-flight cleared")
	}
}

func TestSubmit_Rejections(t *testing.T) {
	m, _ := newManager(&stubResponder{reply: echo}, nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := m.Submit(context.Background(), text, ""); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("%q: expected ErrEmptyMessage, got %v", text, err)
		}
	}
	if len(m.Messages()) != 0 {
		t.Error("expected rejected submissions to leave the transcript empty")
	}
}

func TestSubmit_InFlight(t *testing.T) {
	responder := &stubResponder{reply: echo, release: make(chan struct{}), started: make(chan struct{})}
	m, _ := newManager(responder, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Submit(context.Background(), "first", "")
	}()
	<-responder.started

	if _, err := m.Submit(context.Background(), "second", ""); !errors.Is(err, ErrInFlight) {
		t.Errorf("expected ErrInFlight, got %v", err)
	}
	if n := len(m.Messages()); n != 1 {
		t.Errorf("expected only the first user message, got %d messages", n)
	}

	close(responder.release)
	<-done
	if n := len(m.Messages()); n != 2 {
		t.Errorf("expected 2 messages after reply, got %d", n)
	}
}

func TestSubmit_Fallback(t *testing.T) {
	m, _ := newManager(&stubResponder{reply: func(llm.ChatRequest) (string, error) { return "", nil }}, nil)

	res, err := m.Submit(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Reply.Content != FallbackReply {
		t.Errorf("expected fallback apology, got %q", res.Reply.Content)
	}
	if m.Error() != "" {
		t.Error("expected no error banner for a missing response field")
	}
}

func TestSubmit_Failure(t *testing.T) {
	m, _ := newManager(&stubResponder{reply: func(llm.ChatRequest) (string, error) {
		return "", errors.New("connection refused")
	}}, nil)

	res, err := m.Submit(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("expected failure to be recovered, got %v", err)
	}
	if res.Err == nil {
		t.Error("expected upstream error on result")
	}
	if res.Reply.Content != ErrorReply || res.Reply.Sender != model.SenderAssistant {
		t.Errorf("unexpected error reply %+v", res.Reply)
	}
	if m.Error() != ErrorBanner {
		t.Errorf("expected banner %q, got %q", ErrorBanner, m.Error())
	}
	if m.InFlight() {
		t.Error("expected in-flight cleared after failure")
	}

	m.ClearError()
	if m.Error() != "" {
		t.Error("expected banner cleared")
	}

	// The session continues
	if _, err := m.Submit(context.Background(), "again", ""); err != nil {
		t.Errorf("expected retry to be accepted, got %v", err)
	}
}

func TestSubmit_Ordering(t *testing.T) {
	m, _ := newManager(&stubResponder{reply: echo}, nil)

	for i := 0; i < 20; i++ {
		if _, err := m.Submit(context.Background(), fmt.Sprintf("q%d", i), ""); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	msgs := m.Messages()
	if len(msgs) != 40 {
		t.Fatalf("expected 40 messages, got %d", len(msgs))
	}
	for i := 0; i < 20; i++ {
		user, reply := msgs[2*i], msgs[2*i+1]
		if user.Sender != model.SenderUser || user.Content != fmt.Sprintf("q%d", i) {
			t.Errorf("position %d: unexpected user message %+v", 2*i, user)
		}
		if reply.Sender != model.SenderAssistant || reply.Content != "re: "+user.Content {
			t.Errorf("position %d: unexpected reply %+v", 2*i+1, reply)
		}
	}

	ids := make([]string, len(msgs))
	seen := map[string]bool{}
	for i, msg := range msgs {
		ids[i] = msg.ID
		if seen[msg.ID] {
			t.Errorf("duplicate id %s", msg.ID)
		}
		seen[msg.ID] = true
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("expected ids to sort in insertion order")
	}
}

func TestRequestFactCheck(t *testing.T) {
	verifier := &stubVerifier{body: `{"fact_check":[{"claim":"Revenue grew 12% YoY","score":0.82,"status":"verified","evidence":"Net revenue increased from $100M to $112M","page":14}]}`}
	m, c := newManager(&stubResponder{reply: func(llm.ChatRequest) (string, error) {
		return "Revenue grew 12% YoY", nil
	}}, verifier)

	res, _ := m.Submit(context.Background(), "Revenue?", "")

	state, err := m.RequestFactCheck(context.Background(), res.Reply.ID)
	if err != nil {
		t.Fatalf("RequestFactCheck: %v", err)
	}
	if state.Status != model.FactCheckAvailable || state.Result == nil {
		t.Fatalf("expected available result, got %+v", state)
	}
	if got := factcheck.Classify(state.Result.Claims[0].Score).Label(); got != "High confidence" {
		t.Errorf("expected High confidence, got %s", got)
	}
	if _, ok := c.Get(cache.ChatFactCheckKey(res.Reply.ID)); !ok {
		t.Error("expected result cached under the chat key")
	}

	msg, _ := m.Message(res.Reply.ID)
	if msg.FactCheck.Status != model.FactCheckAvailable {
		t.Errorf("expected message state available, got %s", msg.FactCheck.Status)
	}
	if other, _ := m.Message(res.User.ID); other.FactCheck.Status != model.FactCheckAbsent {
		t.Error("expected the user message untouched")
	}

	// Already available: no new request
	if _, err := m.RequestFactCheck(context.Background(), res.Reply.ID); err != nil {
		t.Fatalf("second RequestFactCheck: %v", err)
	}
	if atomic.LoadInt32(&verifier.calls) != 1 {
		t.Errorf("expected 1 verifier call, got %d", verifier.calls)
	}

	// Resync forces a new request
	if _, err := m.ResyncFactCheck(context.Background(), res.Reply.ID); err != nil {
		t.Fatalf("ResyncFactCheck: %v", err)
	}
	if atomic.LoadInt32(&verifier.calls) != 2 {
		t.Errorf("expected 2 verifier calls after resync, got %d", verifier.calls)
	}
}

func TestRequestFactCheck_Malformed(t *testing.T) {
	verifier := &stubVerifier{body: `"not an object"`}
	m, c := newManager(&stubResponder{reply: echo}, verifier)
	res, _ := m.Submit(context.Background(), "x", "")

	state, err := m.RequestFactCheck(context.Background(), res.Reply.ID)
	if err == nil {
		t.Fatal("expected error for malformed response")
	}
	if state.Status != model.FactCheckAbsent {
		t.Errorf("expected state back to absent, got %s", state.Status)
	}
	if c.Len() != 0 {
		t.Error("expected nothing cached")
	}
}

func TestRequestFactCheck_Errors(t *testing.T) {
	m, _ := newManager(&stubResponder{reply: echo}, &stubVerifier{body: `{"fact_check":[]}`})
	res, _ := m.Submit(context.Background(), "x", "")

	if _, err := m.RequestFactCheck(context.Background(), "missing"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
	if _, err := m.RequestFactCheck(context.Background(), res.User.ID); !errors.Is(err, ErrNotAssistant) {
		t.Errorf("expected ErrNotAssistant, got %v", err)
	}
}

func TestRequestFactCheck_IndependentMessages(t *testing.T) {
	verifier := &stubVerifier{body: `{"fact_check":[{"claim":"c","score":0.3,"page":2}]}`}
	m, _ := newManager(&stubResponder{reply: echo}, verifier)

	var replies []string
	for i := 0; i < 3; i++ {
		res, _ := m.Submit(context.Background(), fmt.Sprintf("q%d", i), "")
		replies = append(replies, res.Reply.ID)
	}

	var wg sync.WaitGroup
	for _, id := range replies {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := m.RequestFactCheck(context.Background(), id); err != nil {
				t.Errorf("%s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range replies {
		msg, _ := m.Message(id)
		if msg.FactCheck.Status != model.FactCheckAvailable {
			t.Errorf("%s: expected available, got %s", id, msg.FactCheck.Status)
		}
	}
}

func TestReset(t *testing.T) {
	m, _ := newManager(&stubResponder{reply: echo}, nil)
	_, _ = m.Submit(context.Background(), "x", "")
	m.SetInput("draft")

	m.Reset()
	if len(m.Messages()) != 0 || m.Input() != "" {
		t.Error("expected empty session after reset")
	}
}

func TestReset_DropsLateReply(t *testing.T) {
	responder := &stubResponder{reply: echo, release: make(chan struct{}), started: make(chan struct{})}
	m, _ := newManager(responder, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Submit(context.Background(), "x", "")
	}()
	<-responder.started
	m.Reset()
	close(responder.release)
	<-done

	if n := len(m.Messages()); n != 0 {
		t.Errorf("expected late reply to be dropped, got %d messages", n)
	}
}
