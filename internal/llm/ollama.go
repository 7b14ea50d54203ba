package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alexander-akhmetov/mat/internal/debug"
)

// Ollama defaults.
const (
	DefaultOllamaURL = "http://localhost:11434"
	DefaultModel     = "codellama"
	DefaultTimeout   = 120
	DefaultRetries   = 3
)

// OllamaConfig configures an OllamaInvoker.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    int // seconds per request
	MaxRetries int
}

// OllamaInvoker talks to Ollama's OpenAI-compatible chat endpoint.
type OllamaInvoker struct {
	cfg    OllamaConfig
	client *http.Client

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOllamaInvoker returns an invoker for cfg, filling in defaults.
func NewOllamaInvoker(cfg OllamaConfig) *OllamaInvoker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRetries
	}
	return &OllamaInvoker{
		cfg:    cfg,
		client: &http.Client{},
		sleep:  sleepCtx,
	}
}

// Model returns the configured model name.
func (o *OllamaInvoker) Model() string { return o.cfg.Model }

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Invoke sends prompt with the conversation in opts. Empty replies, timeouts
// and 5xx statuses are retried with exponential backoff (1s, 2s, 4s, ...);
// connection failures, unknown models and 4xx statuses fail immediately.
func (o *OllamaInvoker) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error) {
	body, err := json.Marshal(chatRequest{
		Model:    o.cfg.Model,
		Messages: BuildMessages(prompt, opts),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	timeout := o.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	var lastErr error
	for attempt := range o.cfg.MaxRetries {
		text, err := o.post(ctx, body, time.Duration(timeout)*time.Second)
		if err == nil {
			if opts.OnOutput != nil {
				opts.OnOutput(text)
			}
			return &InvokeResult{Text: text, Model: o.cfg.Model}, nil
		}
		if !Retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		debug.Logf("ollama: attempt %d/%d failed: %v", attempt+1, o.cfg.MaxRetries, err)

		if attempt < o.cfg.MaxRetries-1 {
			if err := o.sleep(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", o.cfg.MaxRetries, lastErr)
}

func (o *OllamaInvoker) post(ctx context.Context, body []byte, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, o.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer ollama")

	resp, err := o.client.Do(req)
	if err != nil {
		if isDialError(err) {
			return "", fmt.Errorf("%w at %s (start it with 'ollama serve'): %v", ErrConnection, o.cfg.BaseURL, err)
		}
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", o.modelNotFound(ctx)
	case resp.StatusCode >= 300:
		return "", &StatusError{Code: resp.StatusCode, Message: errorMessage(data)}
	}

	content := gjson.GetBytes(data, "choices.0.message.content").String()
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (o *OllamaInvoker) modelNotFound(ctx context.Context) error {
	models := o.ListModels(ctx)
	available := "none found"
	if len(models) > 0 {
		available = strings.Join(models, ", ")
	}
	return fmt.Errorf("%w: %q (available: %s; pull it with 'ollama pull %s')",
		ErrModelNotFound, o.cfg.Model, available, o.cfg.Model)
}

// ListModels returns the model ids the backend serves. Failures yield nil.
func (o *OllamaInvoker) ListModels(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	var ids []string
	for _, m := range gjson.GetBytes(data, "data.#.id").Array() {
		ids = append(ids, m.String())
	}
	return ids
}

func errorMessage(data []byte) string {
	if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
		return msg.String()
	}
	if msg := gjson.GetBytes(data, "error"); msg.Type == gjson.String {
		return msg.String()
	}
	return strings.TrimSpace(string(data))
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
