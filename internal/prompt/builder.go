// Package prompt renders the developer and QA prompt templates for a work
// item.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/alexander-akhmetov/mat/internal/config"
	"github.com/alexander-akhmetov/mat/internal/domain"
)

// File is a file's path and content shown to an agent.
type File struct {
	Path    string
	Content string
}

// DeveloperData is the template input for the developer prompt.
type DeveloperData struct {
	ID               string
	Title            string
	Description      string
	Criteria         []string
	Notes            string
	Attempt          int
	MaxAttempts      int
	PreviousFailures []string
	ContextFiles     []File
}

// QAData is the template input for the QA prompt.
type QAData struct {
	ID          string
	Title       string
	Description string
	Criteria    []string
	Artifacts   []string
	Files       []File
}

// Builder renders prompts from parsed templates.
type Builder struct {
	developer       *template.Template
	qa              *template.Template
	developerSystem string
	qaSystem        string
}

// NewBuilder parses the templates in p.
func NewBuilder(p *config.Prompts) (*Builder, error) {
	if p == nil {
		return nil, fmt.Errorf("no prompts configured")
	}
	dev, err := template.New("developer").Option("missingkey=error").Parse(p.Developer)
	if err != nil {
		return nil, fmt.Errorf("parse developer prompt: %w", err)
	}
	qa, err := template.New("qa").Option("missingkey=error").Parse(p.QA)
	if err != nil {
		return nil, fmt.Errorf("parse qa prompt: %w", err)
	}
	return &Builder{
		developer:       dev,
		qa:              qa,
		developerSystem: p.DeveloperSystem,
		qaSystem:        p.QASystem,
	}, nil
}

// DeveloperSystem returns the developer system prompt.
func (b *Builder) DeveloperSystem() string { return b.developerSystem }

// QASystem returns the QA system prompt.
func (b *Builder) QASystem() string { return b.qaSystem }

// Developer renders the developer prompt.
func (b *Builder) Developer(data DeveloperData) (string, error) {
	return render(b.developer, data)
}

// QA renders the QA prompt.
func (b *Builder) QA(data QAData) (string, error) {
	return render(b.qa, data)
}

// NewDeveloperData fills the item fields of a DeveloperData.
func NewDeveloperData(item *domain.WorkItem) DeveloperData {
	return DeveloperData{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Criteria:    item.AcceptanceCriteria,
		Notes:       item.Notes,
	}
}

// NewQAData fills the item fields of a QAData.
func NewQAData(item *domain.WorkItem, artifacts []string) QAData {
	return QAData{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Criteria:    item.AcceptanceCriteria,
		Artifacts:   artifacts,
	}
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return strings.TrimSpace(sb.String()) + "\n", nil
}
