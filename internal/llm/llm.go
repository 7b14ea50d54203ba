// Package llm is the text-generation layer behind the agents: a single
// Invoker interface with an Ollama (OpenAI-compatible HTTP) backend and a
// Claude CLI backend.
package llm

import (
	"context"
)

// Invoker sends one prompt to a model and returns its reply.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error)
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// InvokeOptions configures a single invocation.
type InvokeOptions struct {
	// WorkingDir for subprocess-based invokers.
	WorkingDir string

	// System is an optional system prompt.
	System string

	// History holds earlier user/assistant turns, oldest first.
	History []Message

	// Timeout overrides the invoker's default timeout (seconds).
	// Zero means the invoker default.
	Timeout int

	// OnOutput is called with text fragments as they arrive.
	OnOutput func(text string)
}

// InvokeResult holds the output of a completed invocation.
type InvokeResult struct {
	Text  string
	Model string
}

// BuildMessages assembles the message list for a chat request: optional system
// prompt, user/assistant history, then prompt as the final user turn.
func BuildMessages(prompt string, opts InvokeOptions) []Message {
	msgs := make([]Message, 0, len(opts.History)+2)
	if opts.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: opts.System})
	}
	for _, m := range opts.History {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	return append(msgs, Message{Role: RoleUser, Content: prompt})
}
