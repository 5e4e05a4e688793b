package domain

import "strings"

// Column is one of the three canonical board lanes every backend status is
// folded into.
type Column string

const (
	Todo       Column = "todo"
	InProgress Column = "in_progress"
	Done       Column = "done"
)

// Columns lists the canonical lanes in display order.
var Columns = [...]Column{Todo, InProgress, Done}

var columnTitles = map[Column]string{
	Todo:       "To Do",
	InProgress: "In Progress",
	Done:       "Done",
}

// Keys are compared after lowercasing and stripping whitespace, hyphens and
// underscores, so "In Progress", "IN_PROGRESS" and "in-progress" collapse to
// the same entry.
var statusSynonyms = map[string]Column{
	"inprogress": InProgress,
	"progress":   InProgress,
	"doing":      InProgress,
	"done":       Done,
	"complete":   Done,
	"completed":  Done,
}

// Normalize maps arbitrary backend status text onto a canonical column.
// Unknown and empty input maps to Todo.
func Normalize(raw string) Column {
	if col, ok := statusSynonyms[statusKey(raw)]; ok {
		return col
	}
	return Todo
}

func statusKey(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		switch r {
		case ' ', '\t', '\n', '\r', '-', '_':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseColumn accepts only the canonical spellings (after normalization of
// case and separators) and reports whether s named a column explicitly.
func ParseColumn(s string) (Column, bool) {
	switch statusKey(s) {
	case "todo":
		return Todo, true
	case "inprogress":
		return InProgress, true
	case "done":
		return Done, true
	}
	return "", false
}

// Valid reports whether c is one of the canonical columns.
func (c Column) Valid() bool {
	_, ok := columnTitles[c]
	return ok
}

// Title is the human readable lane header.
func (c Column) Title() string {
	if t, ok := columnTitles[c]; ok {
		return t
	}
	return string(c)
}

func (c Column) String() string { return string(c) }

func (c Column) index() int {
	switch c {
	case Todo:
		return 0
	case InProgress:
		return 1
	case Done:
		return 2
	}
	return -1
}
