// Package printer writes coloured console output for the inkpet commands.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	faint  = color.New(color.Faint)
)

// Out receives the regular output, errors always go to stderr.
var Out io.Writer = os.Stdout

// Success prints a green message prefixed with a check mark.
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(Out, msg)
}

// Info prints a message in the default colour.
func Info(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Warning prints a yellow message prefixed with a warning sign.
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "!") {
		msg = "! " + msg
	}
	yellow.Fprint(Out, msg)
}

// Error prints a title, an explanation and numbered suggestions to stderr and
// returns an error holding only the title, for commands that silence cobra's
// own error output.
func Error(title, explanation string, suggestions ...string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(os.Stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(os.Stderr, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}

// Section prints a heading.
func Section(title string) {
	cyan.Fprintf(Out, "%s\n", title)
}

// Field prints an indented, aligned key/value line.
func Field(key string, value any) {
	faint.Fprintf(Out, "  %-18s", key+":")
	fmt.Fprintf(Out, " %v\n", value)
}

// Bar renders value out of max as a gauge of # and - characters.
func Bar(value, max int) string {
	if max <= 0 {
		return ""
	}
	if value < 0 {
		value = 0
	} else if value > max {
		value = max
	}
	return "[" + strings.Repeat("#", value) + strings.Repeat("-", max-value) + fmt.Sprintf("] %d/%d", value, max)
}
