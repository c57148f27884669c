package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/kalambet/tonegate/internal/reconcile"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
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

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeVariants(w io.Writer, v reconcile.Variants) {
	for _, row := range []struct{ label, text string }{
		{"Direct", v.Direct},
		{"Gentle", v.Gentle},
		{"Neutral", v.Neutral},
	} {
		fmt.Fprintf(w, "%s\n  %s\n\n", colorize(colorBold, row.label), row.text)
	}
}

func writeAnswer(w io.Writer, a reconcile.Answer) {
	if a.Answer != "" {
		fmt.Fprintln(w, a.Answer)
	}
	if a.Variants != nil {
		fmt.Fprintln(w)
		writeVariants(w, *a.Variants)
	}
	if len(a.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, colorize(colorBold, "Sources"))
		for i, s := range a.Sources {
			title := s.Title
			if title == "" {
				title = s.Path
			}
			fmt.Fprintf(w, "  %d. %s\n", i+1, title)
		}
	}
	if a.Confidence > 0 {
		fmt.Fprintf(w, "\nConfidence: %.2f\n", a.Confidence)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
