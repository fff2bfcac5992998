// Package conversation defines the message model shared by the assistant
// pipeline and the visible message log shown to the user.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	// RoleUser is for user utterances.
	RoleUser Role = "user"

	// RoleAssistant is for assistant replies.
	RoleAssistant Role = "assistant"

	// RoleSystem is for the persona/system context.
	RoleSystem Role = "system"
)

// ID prefixes used when generating message identifiers.
const (
	PrefixUser     = "user"
	PrefixReply    = "msg"
	PrefixLocal    = "local"
	PrefixError    = "error"
	PrefixGreeting = "greeting"
	PrefixSystem   = "system"
)

// Message is a single conversational entry. Treat as immutable once created.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Interim   bool      `json:"is_interim,omitempty"`
}

// NewID returns a unique message identifier with the given prefix.
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// NewMessage creates a message stamped with the current time.
func NewMessage(prefix string, role Role, content string) Message {
	return Message{
		ID:        NewID(prefix),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return NewMessage(PrefixUser, RoleUser, content)
}

// NewAssistantMessage creates an assistant reply produced by the dialogue backend.
func NewAssistantMessage(content string) Message {
	return NewMessage(PrefixReply, RoleAssistant, content)
}

// NewSystemMessage creates a system context message.
func NewSystemMessage(content string) Message {
	return NewMessage(PrefixSystem, RoleSystem, content)
}

// IsZero reports whether m is the zero Message.
func (m Message) IsZero() bool {
	return m.ID == "" && m.Content == "" && m.Role == ""
}
