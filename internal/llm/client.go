// Package llm provides the chat-completion client used by the host.
package llm

import (
	"context"
)

// Role values accepted by the chat-completions API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a chat-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call.
type Options struct {
	Temperature *float64
}

// Client produces a completion for an ordered message list. The call
// is opaque to callers: messages in, answer string out, transport or
// provider failures as errors. Retrying is the caller's concern.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}
