package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"prism-board/domain"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
)

// columnColors gives each board column its header color.
var columnColors = map[domain.Column]*color.Color{
	domain.Todo:       color.New(color.FgBlue, color.Bold),
	domain.InProgress: color.New(color.FgYellow, color.Bold),
	domain.Done:       color.New(color.FgGreen, color.Bold),
}

// Success prints a success message in green with a checkmark prefix.
func Success(w io.Writer, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(w, msg)
}

// Warning prints a warning message in yellow.
func Warning(w io.Writer, format string, a ...any) {
	yellow.Fprintf(w, "⚠️  %s", fmt.Sprintf(format, a...))
}

// Step prints a step of a multi-step operation.
func Step(w io.Writer, format string, a ...any) {
	cyan.Fprintf(w, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a formatted error with title, explanation and suggestions
// to w and returns a plain error for cobra, which is configured not to print
// it again.
func Error(w io.Writer, title, explanation string, suggestions []string) error {
	red.Fprintf(w, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(w, "%s\n", explanation)
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(w, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(w, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(w, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
			}
		}
	}
	return fmt.Errorf("%s", title)
}

// Board renders the three columns one after another, tasks in board order.
func Board(w io.Writer, projectID string, b domain.Board) {
	bold.Fprintf(w, "%s (%d tasks)\n", projectID, b.Len())
	for _, col := range domain.Columns {
		tasks := b.Column(col)
		fmt.Fprintln(w)
		columnColors[col].Fprintf(w, "%s (%d)\n", col.Title(), len(tasks))
		if len(tasks) == 0 {
			faint.Fprintln(w, "  (empty)")
			continue
		}
		for i, t := range tasks {
			fmt.Fprintf(w, "  %d. %s ", i, t.Title)
			faint.Fprintf(w, "[%s]", t.ID)
			if t.Assignee != "" {
				fmt.Fprintf(w, " @%s", t.Assignee)
			}
			if t.DueAt != nil {
				fmt.Fprintf(w, " due %s", t.DueAt.Format("2006-01-02"))
			}
			fmt.Fprintln(w)
		}
	}
}
