package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// colorize wraps text in an ANSI color unless --no-color or NO_COLOR is set.
func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// Progress and results of in-process commands go to stderr so that stdout
// stays clean for --json and --output.
func notice(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { notice(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { notice(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { notice(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { notice(colorCyan, "→", format, args...) }

func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncateRunes shortens s to n runes, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
