// Package config provides layered configuration for mat.
// Configuration is loaded from multiple sources with the following precedence:
// embedded defaults → global file → legacy .mat-config → env vars → local file → CLI flags
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alexander-akhmetov/mat/internal/dirs"
)

//go:embed defaults/config.yaml
var defaultsFS embed.FS

// OllamaConfig holds the Ollama backend settings.
type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// ClaudeConfig holds the Claude CLI backend settings.
type ClaudeConfig struct {
	Flags string `yaml:"flags"`
}

// AgentConfig holds settings shared by the LLM-backed agents.
type AgentConfig struct {
	ContextTokens int `yaml:"context_tokens"`

	ContextTokensSet bool `yaml:"-"`
}

// GitConfig holds the commit side-effect settings.
type GitConfig struct {
	AutoCommit bool `yaml:"auto_commit"` // Commit artifacts after each completed item
	AutoPush   bool `yaml:"auto_push"`   // Push to origin after committing

	AutoCommitSet bool `yaml:"-"`
	AutoPushSet   bool `yaml:"-"`
}

// Config holds all configuration settings for mat.
// Fields ending in *Set track whether that field was explicitly set, so a
// later layer can override an earlier one with a zero value.
type Config struct {
	ProjectDir string `yaml:"project_dir"`
	Record     string `yaml:"record"`
	MaxRetries int    `yaml:"max_retries"`
	Timeout    int    `yaml:"timeout"` // seconds
	Verbose    bool   `yaml:"verbose"`
	Executor   string `yaml:"executor"`
	LogsDir    string `yaml:"logs_dir"`

	Ollama OllamaConfig `yaml:"ollama"`
	Claude ClaudeConfig `yaml:"claude"`
	Agent  AgentConfig  `yaml:"agent"`
	Git    GitConfig    `yaml:"git"`

	// Prompts (loaded separately, not from YAML)
	Prompts *Prompts `yaml:"-"`

	MaxRetriesSet bool `yaml:"-"`
	TimeoutSet    bool `yaml:"-"`
	VerboseSet    bool `yaml:"-"`

	configDir string
	localDir  string
	sources   []string
}

// Sources returns the ordered list of sources that contributed to this config.
func (c *Config) Sources() []string {
	return c.sources
}

// LocalDir returns the local project config directory if one was detected.
func (c *Config) LocalDir() string {
	return c.localDir
}

// ConfigDir returns the global config directory.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// RecordPath returns the record path, resolved against ProjectDir when
// relative.
func (c *Config) RecordPath() string {
	if filepath.IsAbs(c.Record) {
		return c.Record
	}
	return filepath.Join(c.ProjectDir, c.Record)
}

// Load loads configuration from the default locations. The project directory
// is MAT_PROJECT_DIR or the working directory; its .mat/ directory supplies
// local overrides.
func Load() (*Config, error) {
	projectDir := os.Getenv("MAT_PROJECT_DIR")
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		projectDir = cwd
	}
	return LoadWithDirs(dirs.ConfigDir(), projectDir)
}

// LoadWithDirs loads configuration with an explicit global config directory
// and project directory.
func LoadWithDirs(globalDir, projectDir string) (*Config, error) {
	if err := InstallDefaults(globalDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	// 1. Embedded defaults
	cfg, err := loadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load embedded defaults: %w", err)
	}
	cfg.sources = append(cfg.sources, "embedded")

	// 2. Global config
	globalPath := filepath.Join(globalDir, "config.yaml")
	if globalCfg, err := loadFile(globalPath); err == nil {
		cfg.mergeFrom(globalCfg)
		cfg.sources = append(cfg.sources, globalPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("load global config: %w", err)
	}

	// 3. Legacy key=value file in the project directory
	legacyPath := filepath.Join(projectDir, LegacyFileName)
	if legacyCfg, err := loadLegacyFile(legacyPath); err == nil {
		cfg.mergeFrom(legacyCfg)
		cfg.sources = append(cfg.sources, legacyPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", LegacyFileName, err)
	}

	// 4. Environment
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// 5. Local config
	var localDir string
	if cfg.ProjectDir != "" {
		projectDir = cfg.ProjectDir
	}
	candidate := dirs.LocalDir(projectDir)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		localDir = candidate
		localPath := filepath.Join(localDir, "config.yaml")
		if localCfg, err := loadFile(localPath); err == nil {
			cfg.mergeFrom(localCfg)
			cfg.sources = append(cfg.sources, localPath)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load local config: %w", err)
		}
	}

	if cfg.ProjectDir == "" {
		cfg.ProjectDir = projectDir
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = dirs.LogsDir()
	}
	cfg.configDir = globalDir
	cfg.localDir = localDir

	prompts, err := LoadPrompts(globalDir, localDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	cfg.Prompts = prompts

	return cfg, nil
}

// InstallDefaults creates the config directory and installs the default
// config file if it does not exist.
func InstallDefaults(configDir string) error {
	if err := os.MkdirAll(filepath.Join(configDir, "prompts"), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		data, err := defaultsFS.ReadFile("defaults/config.yaml")
		if err != nil {
			return fmt.Errorf("read embedded config: %w", err)
		}
		if err := os.WriteFile(configPath, data, 0o600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
	}
	return nil
}

func loadEmbedded() (*Config, error) {
	data, err := defaultsFS.ReadFile("defaults/config.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded defaults: %w", err)
	}
	return parseConfig(data)
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user's config file
	if err != nil {
		return nil, err
	}
	return parseConfigWithTracking(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// parseConfigWithTracking parses YAML config and records which fields were
// present.
func parseConfigWithTracking(data []byte) (*Config, error) {
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	_, cfg.MaxRetriesSet = raw["max_retries"]
	_, cfg.TimeoutSet = raw["timeout"]
	_, cfg.VerboseSet = raw["verbose"]

	if agent, ok := raw["agent"].(map[string]any); ok {
		_, cfg.Agent.ContextTokensSet = agent["context_tokens"]
	}
	if git, ok := raw["git"].(map[string]any); ok {
		_, cfg.Git.AutoCommitSet = git["auto_commit"]
		_, cfg.Git.AutoPushSet = git["auto_push"]
	}

	return cfg, nil
}

// applyEnv applies MAT_* environment variables. Env vars sit between the
// global and local files in precedence. A malformed number is an error.
func (c *Config) applyEnv() error {
	if v := os.Getenv("MAT_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
		c.sources = append(c.sources, "env:MAT_OLLAMA_URL")
	}
	if v := os.Getenv("MAT_MODEL"); v != "" {
		c.Ollama.Model = v
		c.sources = append(c.sources, "env:MAT_MODEL")
	}
	if v := os.Getenv("MAT_PROJECT_DIR"); v != "" {
		c.ProjectDir = v
		c.sources = append(c.sources, "env:MAT_PROJECT_DIR")
	}
	if v := os.Getenv("MAT_EXECUTOR"); v != "" {
		c.Executor = v
		c.sources = append(c.sources, "env:MAT_EXECUTOR")
	}
	if v := os.Getenv("MAT_CLAUDE_FLAGS"); v != "" {
		c.Claude.Flags = v
		c.sources = append(c.sources, "env:MAT_CLAUDE_FLAGS")
	}
	if v := os.Getenv("MAT_VERBOSE"); v != "" {
		c.Verbose = parseBool(v)
		c.VerboseSet = true
		c.sources = append(c.sources, "env:MAT_VERBOSE")
	}
	if v := os.Getenv("MAT_AUTO_COMMIT"); v != "" {
		c.Git.AutoCommit = parseBool(v)
		c.Git.AutoCommitSet = true
		c.sources = append(c.sources, "env:MAT_AUTO_COMMIT")
	}

	for _, e := range []struct {
		name string
		dst  *int
		set  *bool
	}{
		{"MAT_MAX_RETRIES", &c.MaxRetries, &c.MaxRetriesSet},
		{"MAT_TIMEOUT", &c.Timeout, &c.TimeoutSet},
	} {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", e.name, v, err)
		}
		*e.dst = n
		*e.set = true
		c.sources = append(c.sources, "env:"+e.name)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// mergeFrom merges set or non-empty values from src into c.
func (c *Config) mergeFrom(src *Config) {
	if src.ProjectDir != "" {
		c.ProjectDir = src.ProjectDir
	}
	if src.Record != "" {
		c.Record = src.Record
	}
	if src.MaxRetriesSet {
		c.MaxRetries = src.MaxRetries
		c.MaxRetriesSet = true
	}
	if src.TimeoutSet {
		c.Timeout = src.Timeout
		c.TimeoutSet = true
	}
	if src.VerboseSet {
		c.Verbose = src.Verbose
		c.VerboseSet = true
	}
	if src.Executor != "" {
		c.Executor = src.Executor
	}
	if src.LogsDir != "" {
		c.LogsDir = src.LogsDir
	}
	if src.Ollama.URL != "" {
		c.Ollama.URL = src.Ollama.URL
	}
	if src.Ollama.Model != "" {
		c.Ollama.Model = src.Ollama.Model
	}
	if src.Claude.Flags != "" {
		c.Claude.Flags = src.Claude.Flags
	}
	if src.Agent.ContextTokensSet {
		c.Agent.ContextTokens = src.Agent.ContextTokens
		c.Agent.ContextTokensSet = true
	}
	if src.Git.AutoCommitSet {
		c.Git.AutoCommit = src.Git.AutoCommit
		c.Git.AutoCommitSet = true
	}
	if src.Git.AutoPushSet {
		c.Git.AutoPush = src.Git.AutoPush
		c.Git.AutoPushSet = true
	}
}

// CLIFlags carries the command-line overrides. Zero values mean "not given".
type CLIFlags struct {
	MaxRetries int
	Timeout    int
	Model      string
	Executor   string
	Record     string
	Verbose    bool
	NoCommit   bool
	Push       bool
}

// ApplyCLIFlags applies CLI flag overrides to the config.
// CLI flags have the highest precedence.
func (c *Config) ApplyCLIFlags(f CLIFlags) {
	if f.MaxRetries > 0 {
		c.MaxRetries = f.MaxRetries
		c.MaxRetriesSet = true
		c.sources = append(c.sources, "cli:max-retries")
	}
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
		c.TimeoutSet = true
		c.sources = append(c.sources, "cli:timeout")
	}
	if f.Model != "" {
		c.Ollama.Model = f.Model
		c.sources = append(c.sources, "cli:model")
	}
	if f.Executor != "" {
		c.Executor = f.Executor
		c.sources = append(c.sources, "cli:executor")
	}
	if f.Record != "" {
		c.Record = f.Record
		c.sources = append(c.sources, "cli:record")
	}
	if f.Verbose {
		c.Verbose = true
		c.VerboseSet = true
		c.sources = append(c.sources, "cli:verbose")
	}
	if f.NoCommit {
		c.Git.AutoCommit = false
		c.Git.AutoCommitSet = true
		c.sources = append(c.sources, "cli:no-commit")
	}
	if f.Push {
		c.Git.AutoPush = true
		c.Git.AutoPushSet = true
		c.sources = append(c.sources, "cli:push")
	}
}

// Validate checks values that would make a run meaningless.
func (c *Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", c.Timeout)
	}
	if c.Record == "" {
		return fmt.Errorf("record path is empty")
	}
	return nil
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}
