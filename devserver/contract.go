package devserver

import (
	"fmt"
	"net/http"
	"strings"

	"prism-board/domain"
)

// StatusStyle is the spelling the server uses for status values, both when
// accepting moves and when returning tasks.
type StatusStyle string

const (
	StyleSnake StatusStyle = "snake" // todo, in_progress, done
	StyleKebab StatusStyle = "kebab" // to-do, in-progress, done
	StyleUpper StatusStyle = "upper" // TO_DO, IN_PROGRESS, DONE
	StyleTitle StatusStyle = "title" // To Do, In Progress, Done
)

var styledStatus = map[StatusStyle][3]string{
	StyleSnake: {"todo", "in_progress", "done"},
	StyleKebab: {"to-do", "in-progress", "done"},
	StyleUpper: {"TO_DO", "IN_PROGRESS", "DONE"},
	StyleTitle: {"To Do", "In Progress", "Done"},
}

// Format spells col in style s.
func (s StatusStyle) Format(col domain.Column) string {
	names := styledStatus[s]
	for i, c := range domain.Columns {
		if c == col {
			return names[i]
		}
	}
	return names[0]
}

// Parse matches raw exactly against the spellings of s.
func (s StatusStyle) Parse(raw string) (domain.Column, bool) {
	for i, name := range styledStatus[s] {
		if name == raw {
			return domain.Columns[i], true
		}
	}
	return "", false
}

// positionFields pairs each status field with the position field sent
// alongside it.
var positionFields = map[string]string{
	"status": "position",
	"stage":  "position",
	"column": "index",
	"state":  "order",
}

type route struct {
	key    string
	method string
	path   string
}

// routes are registered with echo; only the one named by the contract
// accepts moves.
var routes = []route{
	{"project-patch", http.MethodPatch, "/projects/:project/tasks/:task"},
	{"project-put", http.MethodPut, "/projects/:project/tasks/:task"},
	{"task-patch", http.MethodPatch, "/tasks/:task"},
	{"task-put", http.MethodPut, "/tasks/:task"},
	{"project-task-patch", http.MethodPatch, "/projects/:project/task/:task"},
	{"status-patch", http.MethodPatch, "/tasks/:task/status"},
}

// Contract is the single update contract the server accepts.
type Contract struct {
	Endpoint    string      `yaml:"endpoint"`
	StatusField string      `yaml:"status_field"`
	StatusStyle StatusStyle `yaml:"status_style"`
	// PositionField is empty when moves carry the status only.
	PositionField string `yaml:"position_field"`
}

// Options configures the development backend.
type Options struct {
	Contract Contract `yaml:"contract"`
	// TasksRoute exposes GET /projects/:id/tasks. Without it clients must
	// read the tasks embedded in the project resource.
	TasksRoute bool `yaml:"tasks_route"`
	// Envelope wraps list responses as {"tasks": [...]} and the project
	// resource as {"project": {...}}.
	Envelope bool `yaml:"envelope"`
	// Secret enables HS256 bearer validation when non-empty.
	Secret string `yaml:"secret"`
}

// DefaultOptions returns a contract that sits well inside the client's
// negotiation matrix.
func DefaultOptions() Options {
	return Options{
		Contract: Contract{
			Endpoint:      "task-patch",
			StatusField:   "state",
			StatusStyle:   StyleUpper,
			PositionField: "order",
		},
		TasksRoute: true,
		Envelope:   true,
	}
}

// Validate checks that the contract is one a negotiating client can find.
func (c Contract) Validate() error {
	found := false
	for _, r := range routes {
		if r.key == c.Endpoint {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown endpoint %q", c.Endpoint)
	}
	if _, ok := styledStatus[c.StatusStyle]; !ok {
		return fmt.Errorf("unknown status style %q", c.StatusStyle)
	}
	pos, ok := positionFields[c.StatusField]
	if !ok {
		return fmt.Errorf("unknown status field %q", c.StatusField)
	}
	switch {
	case c.PositionField == "" && c.StatusField != "status":
		return fmt.Errorf("status only moves must use the status field, got %q", c.StatusField)
	case c.PositionField != "" && c.PositionField != pos:
		return fmt.Errorf("status field %q pairs with %q, got %q", c.StatusField, pos, c.PositionField)
	}
	return nil
}

func (c Contract) String() string {
	fields := c.StatusField
	if c.PositionField != "" {
		fields += "+" + c.PositionField
	}
	return strings.Join([]string{c.Endpoint, fields, string(c.StatusStyle)}, " ")
}
