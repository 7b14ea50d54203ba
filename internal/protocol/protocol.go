// Package protocol defines the vocabulary shared by prompts, parsers and
// invokers: block keys and the status and verdict values agents report.
package protocol

// Status is the value an implementer reports in a MAT_STATUS block.
type Status string

const (
	StatusDone    Status = "DONE"
	StatusBlocked Status = "BLOCKED"
)

func (s Status) String() string { return string(s) }

// IsValid reports whether s is a recognised status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDone, StatusBlocked:
		return true
	default:
		return false
	}
}

// Verdict is the value a verifier reports in a MAT_VERDICT block.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

func (v Verdict) String() string { return string(v) }

// IsValid reports whether v is a recognised verdict value.
func (v Verdict) IsValid() bool {
	return v == VerdictPass || v == VerdictFail
}

// StatusBlockKey begins the implementer's YAML status block.
const StatusBlockKey = "MAT_STATUS"

// VerdictBlockKey begins the verifier's YAML verdict block.
const VerdictBlockKey = "MAT_VERDICT"
