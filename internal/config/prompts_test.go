package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompts_Embedded(t *testing.T) {
	prompts, err := LoadPrompts(t.TempDir(), "")
	require.NoError(t, err)

	assert.Contains(t, prompts.Developer, "{{.ID}}")
	assert.NotContains(t, prompts.Developer, "Rendered with Go text/template", "comment lines are stripped")
	assert.Contains(t, prompts.QA, "{{.Title}}")
	assert.Contains(t, prompts.QASystem, "QA Tester")
}

func TestLoadPrompts_Fallback(t *testing.T) {
	globalDir := t.TempDir()
	localDir := t.TempDir()

	writeFile(t, filepath.Join(globalDir, "prompts", "developer.md"), "global developer {{.ID}}")
	writeFile(t, filepath.Join(globalDir, "prompts", "qa.md"), "global qa")
	writeFile(t, filepath.Join(localDir, "prompts", "qa.md"), "# note\nlocal qa")
	writeFile(t, filepath.Join(localDir, "prompts", "qa_system.md"), "   \n")

	prompts, err := LoadPrompts(globalDir, localDir)
	require.NoError(t, err)
	assert.Equal(t, "global developer {{.ID}}", prompts.Developer)
	assert.Equal(t, "local qa", prompts.QA)
	assert.Contains(t, prompts.QASystem, "QA Tester", "empty local file falls back to embedded")
}

func TestStripComments(t *testing.T) {
	in := "# header\r\nkeep\n  # indented comment\n\nalso keep # inline"
	assert.Equal(t, "keep\n\nalso keep # inline", stripComments(in))
}
