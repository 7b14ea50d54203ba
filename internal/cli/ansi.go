package cli

import (
	"fmt"
	"regexp"
)

var sgrPattern = regexp.MustCompile("\033\\[[0-9;]*m")

// bold renders text in bold.
func bold(text string) string {
	return fmt.Sprintf("\033[1m%s\033[0m", text)
}

// fg wraps text with a 256-color foreground escape.
func fg(color int, text string) string {
	return fmt.Sprintf("\033[38;5;%dm%s\033[0m", color, text)
}

// fgBold wraps text with a 256-color foreground and bold.
func fgBold(color int, text string) string {
	return fmt.Sprintf("\033[1;38;5;%dm%s\033[0m", color, text)
}

// stripANSI removes SGR escapes, leaving the visible text.
func stripANSI(s string) string {
	return sgrPattern.ReplaceAllString(s, "")
}
