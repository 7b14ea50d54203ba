//go:build windows

package llm

import "os/exec"

// setupProcessGroup is a no-op on Windows: there are no Unix process groups,
// so cancellation only kills the direct process.
func setupProcessGroup(_ *exec.Cmd) {}
