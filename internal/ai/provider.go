package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by providers that lack a required credential.
var ErrNotConfigured = errors.New("completion service not configured")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	// Chat completes the conversation in history, prefixed by systemPrompt.
	Chat(ctx context.Context, model string, systemPrompt string, history []Message) (string, error)
	// Configured reports whether the provider can be called at all.
	Configured() bool
}

// BuildMessages prepends the system prompt to history.
func BuildMessages(systemPrompt string, history []Message) []Message {
	out := make([]Message, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return append(out, history...)
}
