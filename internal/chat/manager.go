// Package chat keeps one session's transcript and coordinates chat and
// fact-check requests for it.
package chat

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/llm"
	"github.com/ppiankov/reportlens/internal/model"
)

// User-visible texts
const (
	FallbackReply = "I apologize, but I couldn't process your request."
	ErrorReply    = "Sorry, I encountered an error while processing your request. Please try again."
	ErrorBanner   = "Failed to get response. Please try again."
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrInFlight        = errors.New("a chat request is already in flight")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAssistant    = errors.New("only assistant messages can be fact-checked")

	// ErrPending is returned when the message's fact-check is already running
	ErrPending = factcheck.ErrPending
)

// Responder produces the assistant's reply to one user turn
type Responder interface {
	Reply(ctx context.Context, req llm.ChatRequest) (string, error)
}

// SubmitResult describes an accepted submission.
// Err is the upstream failure, already recovered into the transcript.
type SubmitResult struct {
	User  model.ChatMessage `json:"user"`
	Reply model.ChatMessage `json:"reply"`
	Err   error             `json:"-"`
}

// Manager owns a session's transcript. Messages are only ever appended;
// after creation only their FactCheck field changes.
type Manager struct {
	responder Responder
	facts     *factcheck.Orchestrator

	mu         sync.Mutex
	messages   []model.ChatMessage
	index      map[string]int
	input      string
	inFlight   bool
	banner     string
	generation int

	now     func() time.Time
	entropy io.Reader
}

// NewManager creates an empty transcript
func NewManager(responder Responder, facts *factcheck.Orchestrator) *Manager {
	return &Manager{
		responder: responder,
		facts:     facts,
		index:     make(map[string]int),
		now:       time.Now,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// Submit sends text to the assistant on behalf of the user.
// Empty text and a submission while another is in flight are rejected
// without touching the transcript.
func (m *Manager) Submit(ctx context.Context, text, option string) (*SubmitResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, ErrInFlight
	}
	user := m.appendLocked(text, model.SenderUser)
	m.input = ""
	m.banner = ""
	m.inFlight = true
	gen := m.generation
	m.mu.Unlock()

	reply, err := m.responder.Reply(ctx, llm.ChatRequest{Message: text, Option: option})

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		// The session was reset while the request was out
		return &SubmitResult{User: user, Err: err}, nil
	}
	m.inFlight = false

	content := reply
	switch {
	case err != nil:
		content = ErrorReply
		m.banner = ErrorBanner
	case strings.TrimSpace(reply) == "":
		content = FallbackReply
	}

	assistant := m.appendLocked(content, model.SenderAssistant)
	return &SubmitResult{User: user, Reply: assistant, Err: err}, nil
}

// RequestFactCheck verifies an assistant message. An already verified
// message returns its state without a new request.
func (m *Manager) RequestFactCheck(ctx context.Context, messageID string) (model.FactCheckState, error) {
	msg, err := m.checkable(messageID)
	if err != nil {
		return model.FactCheckState{}, err
	}
	switch msg.FactCheck.Status {
	case model.FactCheckAvailable:
		return msg.FactCheck, nil
	case model.FactCheckPending:
		return msg.FactCheck, ErrPending
	}

	_, err = m.facts.Verify(ctx, msg.Content, cache.ChatFactCheckKey(messageID), func(s model.FactCheckState) {
		m.setFactCheck(messageID, s)
	})

	current, _ := m.Message(messageID)
	if err != nil {
		return current.FactCheck, err
	}
	return current.FactCheck, nil
}

// ResyncFactCheck drops the cached result of a message and verifies it again
func (m *Manager) ResyncFactCheck(ctx context.Context, messageID string) (model.FactCheckState, error) {
	msg, err := m.checkable(messageID)
	if err != nil {
		return model.FactCheckState{}, err
	}
	if msg.FactCheck.Status == model.FactCheckPending {
		return msg.FactCheck, ErrPending
	}

	if err := m.facts.Resync(cache.ChatFactCheckKey(messageID)); err != nil {
		return msg.FactCheck, fmt.Errorf("resync: %w", err)
	}
	m.setFactCheck(messageID, model.Absent())
	return m.RequestFactCheck(ctx, messageID)
}

// Messages returns the transcript in insertion order
func (m *Manager) Messages() []model.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Message returns one message by ID
func (m *Manager) Message(id string) (model.ChatMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return model.ChatMessage{}, false
	}
	return m.messages[i], true
}

// Input returns the unsent input buffer
func (m *Manager) Input() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// SetInput replaces the input buffer
func (m *Manager) SetInput(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = s
}

// InFlight reports whether a chat request is outstanding
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Error returns the transient error banner, empty when there is none
func (m *Manager) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.banner
}

// ClearError dismisses the error banner
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banner = ""
}

// Reset empties the transcript. A reply still in flight is discarded.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.index = make(map[string]int)
	m.input = ""
	m.banner = ""
	m.inFlight = false
	m.generation++
}

func (m *Manager) checkable(id string) (model.ChatMessage, error) {
	msg, ok := m.Message(id)
	if !ok {
		return msg, ErrMessageNotFound
	}
	if msg.Sender != model.SenderAssistant {
		return msg, ErrNotAssistant
	}
	return msg, nil
}

func (m *Manager) setFactCheck(id string, s model.FactCheckState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[id]; ok {
		m.messages[i].FactCheck = s
	}
}

func (m *Manager) appendLocked(content string, sender model.Sender) model.ChatMessage {
	ts := m.now()
	msg := model.ChatMessage{
		ID:        ulid.MustNew(ulid.Timestamp(ts), m.entropy).String(),
		Content:   content,
		Sender:    sender,
		Timestamp: ts,
		FactCheck: model.Absent(),
	}
	m.index[msg.ID] = len(m.messages)
	m.messages = append(m.messages, msg)
	return msg
}
