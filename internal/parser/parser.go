// Package parser extracts the structured blocks agents append to their
// replies: MAT_STATUS from the implementer, MAT_VERDICT from the verifier,
// and FILE blocks carrying generated file contents.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alexander-akhmetov/mat/internal/protocol"
)

// Status is an alias for protocol.Status.
type Status = protocol.Status

// Verdict is an alias for protocol.Verdict.
type Verdict = protocol.Verdict

// ParsedStatus is the implementer's report for one attempt.
type ParsedStatus struct {
	Status       Status   `yaml:"status"`
	FilesChanged []string `yaml:"files_changed"`
	Summary      string   `yaml:"summary"`
	Error        string   `yaml:"error,omitempty"`
}

// IsValid checks if the parsed status has valid values.
func (p *ParsedStatus) IsValid() bool {
	if p == nil {
		return false
	}
	return p.Status.IsValid()
}

// CriterionVerdict is the verifier's judgement of one acceptance criterion.
type CriterionVerdict struct {
	Criterion string `yaml:"criterion"`
	Status    string `yaml:"status"`
	Details   string `yaml:"details,omitempty"`
	Evidence  string `yaml:"evidence,omitempty"`
}

// ParsedVerdict is the verifier's report for one attempt.
type ParsedVerdict struct {
	Verdict  Verdict            `yaml:"verdict"`
	Summary  string             `yaml:"summary"`
	Criteria []CriterionVerdict `yaml:"criteria"`
}

// IsValid checks if the parsed verdict has a valid value.
func (p *ParsedVerdict) IsValid() bool {
	if p == nil {
		return false
	}
	return p.Verdict.IsValid()
}

// blockRegex matches a "<KEY>:" block up to closing backticks or the end of
// output.
func blockRegex(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)` + key + `:\s*\n(.*?)(?:\n\s*\x60{3}|$)`)
}

var (
	statusBlockRegex  = blockRegex(protocol.StatusBlockKey)
	verdictBlockRegex = blockRegex(protocol.VerdictBlockKey)
)

// extract returns the YAML for the last key block in output, re-rooted under
// key, or "" when there is none.
func extract(re *regexp.Regexp, key, output string) string {
	matches := re.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return ""
	}
	content := key + ":\n" + matches[len(matches)-1][1]
	return strings.TrimRight(content, "`\n ")
}

// Parse extracts and parses a MAT_STATUS block. When the output holds several
// blocks the last one wins.
// Returns nil, nil if no status block is found.
// Returns nil, error if the status block is malformed.
func Parse(output string) (*ParsedStatus, error) {
	content := extract(statusBlockRegex, protocol.StatusBlockKey, output)
	if content == "" {
		return nil, nil
	}

	var wrapper struct {
		Status ParsedStatus `yaml:"MAT_STATUS"`
	}
	if err := yaml.Unmarshal([]byte(content), &wrapper); err != nil {
		return nil, fmt.Errorf("parse %s block: %w", protocol.StatusBlockKey, err)
	}
	wrapper.Status.Status = Status(strings.ToUpper(string(wrapper.Status.Status)))
	return &wrapper.Status, nil
}

// ParseVerdict extracts and parses a MAT_VERDICT block, with the same rules
// as Parse.
func ParseVerdict(output string) (*ParsedVerdict, error) {
	content := extract(verdictBlockRegex, protocol.VerdictBlockKey, output)
	if content == "" {
		return nil, nil
	}

	var wrapper struct {
		Verdict ParsedVerdict `yaml:"MAT_VERDICT"`
	}
	if err := yaml.Unmarshal([]byte(content), &wrapper); err != nil {
		return nil, fmt.Errorf("parse %s block: %w", protocol.VerdictBlockKey, err)
	}
	v := &wrapper.Verdict
	v.Verdict = Verdict(strings.ToUpper(string(v.Verdict)))
	for i := range v.Criteria {
		v.Criteria[i].Status = strings.ToLower(strings.TrimSpace(v.Criteria[i].Status))
	}
	return v, nil
}

// FileBlock is one generated file: a "FILE: <path>" line followed by a fenced
// code block.
type FileBlock struct {
	Path    string
	Content string
}

var fileBlockRegex = regexp.MustCompile("(?s)(?:^|\n)FILE:[ \t]*([^\n]+?)[ \t]*\n\x60{3}[^\n]*\n(.*?)\n?\x60{3}")

// ParseFiles returns every FILE block in output, in order. A path repeated
// later replaces the earlier content.
func ParseFiles(output string) []FileBlock {
	var blocks []FileBlock
	seen := make(map[string]int)
	for _, m := range fileBlockRegex.FindAllStringSubmatch(output, -1) {
		path := strings.Trim(strings.TrimSpace(m[1]), "`'\"")
		if path == "" {
			continue
		}
		content := m[2]
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		if i, ok := seen[path]; ok {
			blocks[i].Content = content
			continue
		}
		seen[path] = len(blocks)
		blocks = append(blocks, FileBlock{Path: path, Content: content})
	}
	return blocks
}
