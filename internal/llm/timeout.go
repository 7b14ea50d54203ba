package llm

import "github.com/alexander-akhmetov/mat/internal/protocol"

// TimeoutBlockedStatus returns a MAT_STATUS block reporting that the
// invocation timed out, so a subprocess timeout surfaces as a blocked attempt
// instead of a parse failure.
func TimeoutBlockedStatus() string {
	return protocol.StatusBlockKey + `:
  status: ` + string(protocol.StatusBlocked) + `
  files_changed: []
  summary: "Timeout"
  error: "Executor invocation timed out"`
}
