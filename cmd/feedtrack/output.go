package main

import (
	"fmt"
	"os"

	"github.com/kalambet/feedtrack/internal/feedback"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// priorityColor highlights high priority items in red and low in cyan.
func priorityColor(p feedback.Priority) string {
	switch p {
	case feedback.PriorityHigh:
		return colorize(colorRed, string(p))
	case feedback.PriorityLow:
		return colorize(colorCyan, string(p))
	default:
		return string(p)
	}
}

func statusColor(s feedback.Status) string {
	switch s {
	case feedback.StatusResolved:
		return colorize(colorGreen, string(s))
	case feedback.StatusInProgress:
		return colorize(colorYellow, string(s))
	default:
		return string(s)
	}
}
