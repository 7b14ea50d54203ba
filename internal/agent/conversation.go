package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexander-akhmetov/mat/internal/debug"
	"github.com/alexander-akhmetov/mat/internal/llm"
)

// Context budget defaults, in estimated tokens.
const (
	DefaultContextTokens = 4096
	reservedTokens       = 1024
	charsPerToken        = 4
)

// Conversation is an agent's chat history with a single backend. Old turns
// are dropped once the history outgrows the context budget.
type Conversation struct {
	invoker       llm.Invoker
	system        string
	workingDir    string
	contextTokens int
	history       []llm.Message

	// OnOutput, when set, receives backend output as it arrives.
	OnOutput func(text string)
}

// NewConversation returns an empty conversation. contextTokens <= 0 selects
// DefaultContextTokens.
func NewConversation(invoker llm.Invoker, system, workingDir string, contextTokens int) *Conversation {
	if contextTokens <= 0 {
		contextTokens = DefaultContextTokens
	}
	return &Conversation{
		invoker:       invoker,
		system:        system,
		workingDir:    workingDir,
		contextTokens: contextTokens,
	}
}

// Send asks prompt and records both turns. On failure the history is left as
// it was.
func (c *Conversation) Send(ctx context.Context, prompt string) (string, error) {
	c.truncate(estimateTokens(prompt))

	res, err := c.invoker.Invoke(ctx, prompt, llm.InvokeOptions{
		WorkingDir: c.workingDir,
		System:     c.system,
		History:    c.history,
		OnOutput:   c.OnOutput,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", llm.ErrEmptyResponse
	}

	c.history = append(c.history,
		llm.Message{Role: llm.RoleUser, Content: prompt},
		llm.Message{Role: llm.RoleAssistant, Content: res.Text},
	)
	debug.Logf("agent: conversation now %s", c.Summary())
	return res.Text, nil
}

// Reset clears the history.
func (c *Conversation) Reset() {
	c.history = nil
}

// Len returns the number of recorded messages.
func (c *Conversation) Len() int {
	return len(c.history)
}

// Summary describes the history size.
func (c *Conversation) Summary() string {
	total := 0
	for _, m := range c.history {
		total += estimateTokens(m.Content)
	}
	return fmt.Sprintf("%d messages, ~%d tokens", c.Len(), total)
}

// truncate drops the oldest turns until the history plus the system prompt
// and an incoming message of pending tokens fit the budget.
func (c *Conversation) truncate(pending int) {
	available := c.contextTokens - reservedTokens - estimateTokens(c.system) - pending
	if available <= 0 {
		c.history = nil
		return
	}

	total := 0
	for _, m := range c.history {
		total += estimateTokens(m.Content)
	}
	for total > available && len(c.history) > 0 {
		total -= estimateTokens(c.history[0].Content)
		c.history = c.history[1:]
	}
}

func estimateTokens(s string) int {
	return len(s) / charsPerToken
}
