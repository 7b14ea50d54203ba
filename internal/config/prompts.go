package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexander-akhmetov/mat/internal/debug"
)

//go:embed defaults/prompts/*.md
var promptsFS embed.FS

// Prompts holds the agent prompt templates. Developer and QA are Go
// text/template strings; the system prompts are plain text.
type Prompts struct {
	Developer       string
	DeveloperSystem string
	QA              string
	QASystem        string
}

type promptLoader struct {
	embedFS embed.FS
}

// LoadPrompts loads all prompt templates with fallback chain: local → global → embedded.
// localDir can be empty to skip local lookup.
func LoadPrompts(globalDir, localDir string) (*Prompts, error) {
	loader := &promptLoader{embedFS: promptsFS}
	return loader.Load(globalDir, localDir)
}

// Load loads all prompt files with fallback chain: local → global → embedded.
func (p *promptLoader) Load(globalDir, localDir string) (*Prompts, error) {
	var prompts Prompts
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"developer.md", &prompts.Developer},
		{"developer_system.md", &prompts.DeveloperSystem},
		{"qa.md", &prompts.QA},
		{"qa_system.md", &prompts.QASystem},
	} {
		content, err := p.loadPromptWithLocalFallback(localDir, globalDir, f.name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", f.name, err)
		}
		*f.dst = content
	}
	return &prompts, nil
}

func (p *promptLoader) loadPromptWithLocalFallback(localDir, globalDir, filename string) (string, error) {
	if localDir != "" {
		content, err := p.loadPromptFile(filepath.Join(localDir, "prompts", filename))
		if err != nil {
			debug.Logf("config: failed to load local prompt %s: %v (falling back to global/embedded)", filename, err)
		} else if content != "" {
			return content, nil
		}
	}

	content, err := p.loadPromptFile(filepath.Join(globalDir, "prompts", filename))
	if err != nil {
		return "", err
	}
	if content != "" {
		return content, nil
	}
	return p.loadPromptFromEmbedFS("defaults/prompts/" + filename)
}

// loadPromptFile reads a prompt file from disk. A missing file yields "".
func (p *promptLoader) loadPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read prompt file %s: %w", path, err)
	}
	return strings.TrimSpace(stripComments(string(data))), nil
}

func (p *promptLoader) loadPromptFromEmbedFS(path string) (string, error) {
	data, err := p.embedFS.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read embedded prompt %s: %w", path, err)
	}
	return strings.TrimSpace(stripComments(string(data))), nil
}

// stripComments removes lines starting with # from content.
func stripComments(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	lines := make([]string, 0, strings.Count(content, "\n")+1)
	for line := range strings.SplitSeq(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
