package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RolePipeline  Role = "pipeline"
)

// Kind is a rendering hint for the UI.
type Kind string

const (
	KindText     Kind = "text"
	KindProgress Kind = "progress"
	KindChart    Kind = "chart"
	KindError    Kind = "error"
)

// Message is one entry of a conversation.
//
// Display is what the user sees. Raw is what gets replayed to the model on
// later turns; for pipeline messages it holds the serialized result record.
type Message struct {
	ID        string
	Role      Role
	Display   string
	Raw       string
	Timestamp time.Time

	Status     string // pipeline messages only: "success" or "error"
	Kind       Kind
	Streaming  bool
	Attachment any
}

// NewMessage creates a message with a fresh id and the current time.
func NewMessage(role Role, display, raw string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Display:   display,
		Raw:       raw,
		Timestamp: time.Now(),
		Kind:      KindText,
	}
}

// SystemMessage wraps a system prompt for a provider call.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Raw: content, Display: content, Kind: KindText}
}

// NewID returns a unique message id.
func NewID() string {
	return uuid.New().String()
}

// HistoryText is the text replayed to the model. Messages without raw text
// (progress notes, failed partial replies) are not part of the history.
func (m Message) HistoryText() string {
	return m.Raw
}

// InHistory reports whether the message should be sent back to the model.
func (m Message) InHistory() bool {
	if m.Streaming || m.Raw == "" {
		return false
	}
	return m.Kind != KindProgress && m.Kind != KindChart
}
