// Package debug provides debug logging utilities.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	enabled = os.Getenv("MAT_DEBUG") == "1"
	out     io.Writer = os.Stderr
)

// Logf writes a debug message to stderr if MAT_DEBUG=1
func Logf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(out, "[DEBUG %s] %s\n", timestamp, msg)
}

// Enabled returns true if debug logging is enabled
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Enable turns debug logging on or off at runtime (the --verbose flag).
func Enable(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
}

// SetOutput redirects debug output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}
