// Package printer writes the CLI's coloured terminal output.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Colour stays on when piped; NO_COLOR turns it off
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects regular and error output. Commands point it at cobra's
// writers so tests can capture what a command printed.
func SetOutput(out, errOut io.Writer) {
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

// Success prints a green message prefixed with a checkmark.
func Success(format string, a ...any) {
	marked(green, "✓", format, a...)
}

// Info prints a message in the default colour.
func Info(format string, a ...any) {
	fmt.Fprintf(stdout, format, a...)
}

// Warning prints a yellow message prefixed with a warning sign.
func Warning(format string, a ...any) {
	marked(yellow, "⚠️ ", format, a...)
}

// Step prints a cyan progress line of a multi-step operation.
func Step(format string, a ...any) {
	marked(cyan, "→", format, a...)
}

// Error prints a failure block to stderr and returns an error carrying only the
// title, which cobra does not print again since errors are silenced.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details listed under the explanation,
// keys in sorted order.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintln(stderr, explanation)
	}
	writeContext(stderr, context)
	writeSuggestions(stderr, suggestions)
	return fmt.Errorf("%s", title)
}

func marked(c *color.Color, mark, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if strings.HasPrefix(msg, strings.TrimSpace(mark)) {
		c.Fprint(stdout, msg)
		return
	}
	c.Fprintf(stdout, "%s %s", mark, msg)
}

func writeContext(w io.Writer, context map[string]string) {
	if len(context) == 0 {
		return
	}
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, context[k])
	}
}

// writeSuggestions prints a lone suggestion as is and numbers several.
func writeSuggestions(w io.Writer, suggestions []string) {
	switch len(suggestions) {
	case 0:
		return
	case 1:
		fmt.Fprintf(w, "\n%s\n", suggestions[0])
	default:
		fmt.Fprint(w, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
}
