package model

import (
	"time"
)

// Role discriminates the variants of Quantum in the persisted transcript
type Role string

const (
	RoleUser           Role = "User"
	RoleAssistant      Role = "Assistant"
	RoleSystem         Role = "System"
	RoleLongTermMemory Role = "LongTermMemory"
)

// Quantum is one atomic transcript entry. The set of implementations is
// closed: UserMessage, SystemMessage, AssistantMessage and LongTermMemory.
type Quantum interface {
	Role() Role
	CreatedAt() time.Time

	clone() Quantum
}

type UserMessage struct {
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

type SystemMessage struct {
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

type AssistantMessage struct {
	Content string    `json:"content"`
	Emotion Emotion   `json:"emotion"`
	Time    time.Time `json:"time"`
}

// LongTermMemory is a summary that lives outside of the chunked conversation
type LongTermMemory struct {
	Summary string    `json:"summary"`
	Emotion Emotion   `json:"emotion"`
	Time    time.Time `json:"time"`
}

func now() time.Time {
	return time.Now().UTC()
}

func NewUserMessage(content string) *UserMessage {
	return &UserMessage{Content: content, Time: now()}
}

func NewSystemMessage(content string) *SystemMessage {
	return &SystemMessage{Content: content, Time: now()}
}

func NewAssistantMessage(content string, emotion Emotion) *AssistantMessage {
	return &AssistantMessage{Content: content, Emotion: emotion, Time: now()}
}

func NewLongTermMemory(summary string, emotion Emotion) *LongTermMemory {
	return &LongTermMemory{Summary: summary, Emotion: emotion, Time: now()}
}

func (x *UserMessage) Role() Role           { return RoleUser }
func (x *UserMessage) CreatedAt() time.Time { return x.Time }
func (x *UserMessage) clone() Quantum       { c := *x; return &c }

func (x *SystemMessage) Role() Role           { return RoleSystem }
func (x *SystemMessage) CreatedAt() time.Time { return x.Time }
func (x *SystemMessage) clone() Quantum       { c := *x; return &c }

func (x *AssistantMessage) Role() Role           { return RoleAssistant }
func (x *AssistantMessage) CreatedAt() time.Time { return x.Time }
func (x *AssistantMessage) clone() Quantum       { c := *x; return &c }

func (x *LongTermMemory) Role() Role           { return RoleLongTermMemory }
func (x *LongTermMemory) CreatedAt() time.Time { return x.Time }
func (x *LongTermMemory) clone() Quantum       { c := *x; return &c }

// Text returns the textual payload of a quantum: content for messages and
// summary for long-term memories.
func Text(q Quantum) string {
	switch v := q.(type) {
	case *UserMessage:
		return v.Content
	case *SystemMessage:
		return v.Content
	case *AssistantMessage:
		return v.Content
	case *LongTermMemory:
		return v.Summary
	default:
		return ""
	}
}

// IsNil reports whether q is nil or a nil pointer of a quantum type
func IsNil(q Quantum) bool {
	switch v := q.(type) {
	case nil:
		return true
	case *UserMessage:
		return v == nil
	case *SystemMessage:
		return v == nil
	case *AssistantMessage:
		return v == nil
	case *LongTermMemory:
		return v == nil
	default:
		return false
	}
}
