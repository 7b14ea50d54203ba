package llm

import (
	"fmt"
	"strings"
)

// Executor names accepted by NewInvoker.
const (
	ExecutorOllama = "ollama"
	ExecutorClaude = "claude"
)

var supportedExecutors = []string{ExecutorOllama, ExecutorClaude}

// ExecutorConfig selects and configures an Invoker.
type ExecutorConfig struct {
	Name   string
	Ollama OllamaConfig
	Claude ClaudeConfig
}

// NewInvoker returns the Invoker named by cfg.Name. An empty name selects
// Ollama.
func NewInvoker(cfg ExecutorConfig) (Invoker, error) {
	switch cfg.Name {
	case "", ExecutorOllama:
		return NewOllamaInvoker(cfg.Ollama), nil
	case ExecutorClaude:
		return NewClaudeInvoker(cfg.Claude), nil
	default:
		return nil, fmt.Errorf("unknown executor: %q (supported: %s)", cfg.Name, strings.Join(supportedExecutors, ", "))
	}
}
