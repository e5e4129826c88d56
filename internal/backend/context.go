package backend

import (
	"fmt"
	"strings"

	"github.com/chazbot/chaz/internal/role"
)

// MessageRole is the speaker of a single conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one turn of a conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// String renders the message in the transcript form sent to plain-text
// backends.
func (m Message) String() string {
	var r string
	switch m.Role {
	case RoleUser:
		r = "USER"
	case RoleAssistant:
		r = "ASSISTANT"
	case RoleSystem:
		r = "SYSTEM"
	default:
		r = "UNKNOWN"
	}
	return fmt.Sprintf("%s: %s", r, m.Content)
}

// MediaHandle references a locally addressable media file. The handle must
// stay valid until the backend call that uses it returns.
type MediaHandle interface {
	Path() string
	Close() error
}

// ChatContext is the internal representation of a chat completion request.
//
// The frontend converts the room history into this format and each backend
// converts it to its own API. Messages are in chronological order, oldest
// first. Media handles are ordered oldest first as well, but are not
// correlated with message positions.
type ChatContext struct {
	Messages []Message
	Model    string
	Media    []MediaHandle
	Role     *role.Details
}

// StringPrompt renders the conversation as a single transcript string,
// ending with the assistant cue.
func (c *ChatContext) StringPrompt() string {
	var sb strings.Builder
	for _, m := range c.Messages {
		sb.WriteString(m.String())
		sb.WriteByte('\n')
	}
	// Indicate that the assistant speaks next.
	sb.WriteString("ASSISTANT: ")
	return sb.String()
}

// StringPromptWithRole is StringPrompt with the role prompt prepended.
func (c *ChatContext) StringPromptWithRole() string {
	prompt := c.StringPrompt()
	if c.Role != nil {
		return c.Role.PrependTo(prompt)
	}
	return prompt
}

// CloseMedia releases every media handle, keeping the first error.
func (c *ChatContext) CloseMedia() error {
	var first error
	for _, h := range c.Media {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
