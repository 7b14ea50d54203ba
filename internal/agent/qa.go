package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexander-akhmetov/mat/internal/debug"
	"github.com/alexander-akhmetov/mat/internal/domain"
	"github.com/alexander-akhmetov/mat/internal/event"
	"github.com/alexander-akhmetov/mat/internal/llm"
	"github.com/alexander-akhmetov/mat/internal/parser"
	"github.com/alexander-akhmetov/mat/internal/prompt"
	"github.com/alexander-akhmetov/mat/internal/protocol"
)

// ErrNoVerdict is returned when the QA reply has no MAT_VERDICT block.
var ErrNoVerdict = errors.New("no " + protocol.VerdictBlockKey + " block in response")

// QA is the LLM-backed Verifier. It shows the model the changed files and
// asks for a verdict per acceptance criterion.
type QA struct {
	prompts   *prompt.Builder
	workspace *Workspace
	conv      *Conversation
	onEvent   event.Handler
}

// NewQA returns a QA agent.
func NewQA(inv llm.Invoker, prompts *prompt.Builder, ws *Workspace, opts Options) *QA {
	conv := NewConversation(inv, prompts.QASystem(), ws.Root(), opts.ContextTokens)
	conv.OnOutput = streamTo(opts.OnEvent)
	return &QA{
		prompts:   prompts,
		workspace: ws,
		conv:      conv,
		onEvent:   opts.OnEvent,
	}
}

// Verify asks the model to judge artifacts against item's criteria. The
// report passes only when the verdict is PASS and no criterion failed.
func (q *QA) Verify(ctx context.Context, item *domain.WorkItem, artifacts []string) (*Report, error) {
	data := prompt.NewQAData(item, artifacts)
	for _, a := range artifacts {
		content, err := q.workspace.Read(a)
		if err != nil {
			debug.Logf("qa: skipping %s: %v", a, err)
			continue
		}
		if content == "" {
			continue
		}
		data.Files = append(data.Files, prompt.File{Path: a, Content: content})
	}

	text, err := q.prompts.QA(data)
	if err != nil {
		return nil, err
	}

	reply, err := q.conv.Send(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("qa: %w", err)
	}

	verdict, err := parser.ParseVerdict(reply)
	if err != nil {
		return nil, fmt.Errorf("qa: %w", err)
	}
	if verdict == nil {
		return nil, fmt.Errorf("qa: %w", ErrNoVerdict)
	}
	if !verdict.IsValid() {
		return nil, fmt.Errorf("qa: invalid verdict %q", verdict.Verdict)
	}

	report := &Report{
		Passed:  verdict.Verdict == protocol.VerdictPass,
		Summary: verdict.Summary,
	}
	for _, c := range verdict.Criteria {
		status := toCriterionStatus(c.Status)
		if status == CriterionFail || status == CriterionError {
			report.Passed = false
		}
		report.Criteria = append(report.Criteria, CriterionResult{
			Criterion: c.Criterion,
			Status:    status,
			Details:   c.Details,
			Evidence:  c.Evidence,
		})
	}
	debug.Logf("qa: %s passed=%v (%d criteria)", item.ID, report.Passed, len(report.Criteria))
	if q.onEvent != nil {
		q.onEvent(event.Markdown(report.Markdown(item)))
	}
	return report, nil
}

// Reset clears the QA conversation.
func (q *QA) Reset() {
	q.conv.Reset()
}

func toCriterionStatus(s string) CriterionStatus {
	switch CriterionStatus(s) {
	case CriterionPass, CriterionSkip, CriterionError:
		return CriterionStatus(s)
	default:
		return CriterionFail
	}
}
