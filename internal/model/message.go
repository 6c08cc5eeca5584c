package model

import "time"

// Sender identifies who authored a chat message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// FactCheckStatus is the lifecycle of a message's fact-check
type FactCheckStatus string

const (
	FactCheckAbsent    FactCheckStatus = "absent"
	FactCheckPending   FactCheckStatus = "pending"
	FactCheckAvailable FactCheckStatus = "available"
)

// FactCheckState holds a message's fact-check status. Result is set only when Available.
type FactCheckState struct {
	Status FactCheckStatus  `json:"status"`
	Result *FactCheckResult `json:"result,omitempty"`
}

// Absent returns the initial fact-check state
func Absent() FactCheckState {
	return FactCheckState{Status: FactCheckAbsent}
}

// Pending returns the in-flight fact-check state
func Pending() FactCheckState {
	return FactCheckState{Status: FactCheckPending}
}

// Available returns the completed fact-check state carrying result
func Available(result *FactCheckResult) FactCheckState {
	return FactCheckState{Status: FactCheckAvailable, Result: result}
}

// ChatMessage is one turn in a chat transcript
type ChatMessage struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Sender    Sender         `json:"sender"`
	Timestamp time.Time      `json:"timestamp"`
	FactCheck FactCheckState `json:"fact_check"`
}
