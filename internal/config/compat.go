package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alexander-akhmetov/mat/internal/llm"
)

// LegacyFileName is the key=value settings file older mat projects keep in
// the project directory.
const LegacyFileName = ".mat-config"

// ToExecutorConfig converts the unified Config to an llm.ExecutorConfig.
func (c *Config) ToExecutorConfig() llm.ExecutorConfig {
	return llm.ExecutorConfig{
		Name: c.Executor,
		Ollama: llm.OllamaConfig{
			BaseURL:    c.Ollama.URL,
			Model:      c.Ollama.Model,
			Timeout:    c.Timeout,
			MaxRetries: c.MaxRetries,
		},
		Claude: llm.ClaudeConfig{
			Flags:   c.Claude.Flags,
			Timeout: c.Timeout,
		},
	}
}

// loadLegacyFile reads a .mat-config file. Blank lines and # comments are
// ignored; unknown keys are skipped.
func loadLegacyFile(path string) (*Config, error) {
	f, err := os.Open(path) //nolint:gosec // project settings file
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "ollama_url":
			cfg.Ollama.URL = value
		case "model":
			cfg.Ollama.Model = value
		case "project_dir":
			cfg.ProjectDir = value
		case "verbose":
			cfg.Verbose = parseBool(value)
			cfg.VerboseSet = true
		case "max_retries", "timeout":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", lineNo, key, value)
			}
			if key == "max_retries" {
				cfg.MaxRetries, cfg.MaxRetriesSet = n, true
			} else {
				cfg.Timeout, cfg.TimeoutSet = n, true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
