package engine

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"prism-board/domain"
	"prism-board/storage"
)

// statusVariants lists, per column, the status spellings backends are known
// to accept, most canonical first.
var statusVariants = map[domain.Column][]string{
	domain.Todo:       {"todo", "To Do", "TO_DO", "to-do", "Not Started", "NOT_STARTED", "backlog"},
	domain.InProgress: {"in-progress", "in_progress", "IN_PROGRESS", "In Progress", "progress", "doing"},
	domain.Done:       {"done", "Done", "DONE", "completed", "Completed", "COMPLETED"},
}

// payloadShapes pairs a status field with an optional position field. An
// empty position field produces a status only payload.
var payloadShapes = []struct {
	statusField   string
	positionField string
}{
	{"status", "position"},
	{"stage", "position"},
	{"column", "index"},
	{"state", "order"},
	{"status", ""},
}

type endpointTemplate struct {
	key     string
	method  string
	pattern string
}

// endpointTemplates are tried in this order: project scoped before global,
// partial update before full replace, and the status sub-resource last.
var endpointTemplates = []endpointTemplate{
	{"project-patch", http.MethodPatch, "/projects/{project}/tasks/{task}"},
	{"project-put", http.MethodPut, "/projects/{project}/tasks/{task}"},
	{"task-patch", http.MethodPatch, "/tasks/{task}"},
	{"task-put", http.MethodPut, "/tasks/{task}"},
	{"project-task-patch", http.MethodPatch, "/projects/{project}/task/{task}"},
	{"status-patch", http.MethodPatch, "/tasks/{task}/status"},
}

// EndpointKeys returns the endpoint identifiers in probe order.
func EndpointKeys() []string {
	keys := make([]string, len(endpointTemplates))
	for i, tpl := range endpointTemplates {
		keys[i] = tpl.key
	}
	return keys
}

// StatusVariants returns the status spellings tried for col, in order.
func StatusVariants(col domain.Column) []string {
	return append([]string(nil), statusVariants[col]...)
}

// Endpoint is a concrete method and path for one task.
type Endpoint struct {
	Key    string
	Method string
	Path   string
}

func (e Endpoint) String() string { return e.Method + " " + e.Path }

// Payload is a move request body. It marshals to an object holding the status
// field and, when PositionField is set, the position field, in that order.
type Payload struct {
	StatusField   string
	Status        string
	PositionField string
	Position      int
}

func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeJSONString(&buf, p.StatusField); err != nil {
		return nil, err
	}
	buf.WriteByte(':')
	if err := writeJSONString(&buf, p.Status); err != nil {
		return nil, err
	}
	if p.PositionField != "" {
		buf.WriteByte(',')
		if err := writeJSONString(&buf, p.PositionField); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(p.Position))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p Payload) String() string {
	if p.PositionField == "" {
		return fmt.Sprintf("{%s: %q}", p.StatusField, p.Status)
	}
	return fmt.Sprintf("{%s: %q, %s: %d}", p.StatusField, p.Status, p.PositionField, p.Position)
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	data, err := sonic.ConfigStd.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// Combination is one cell of the negotiation matrix.
type Combination struct {
	Endpoint Endpoint
	Payload  Payload
}

func (c Combination) String() string { return c.Endpoint.String() + " " + c.Payload.String() }

// Contract strips the task specific parts so the combination can be reused.
func (c Combination) Contract() storage.Contract {
	return storage.Contract{
		Endpoint:      c.Endpoint.Key,
		StatusField:   c.Payload.StatusField,
		StatusValue:   c.Payload.Status,
		PositionField: c.Payload.PositionField,
	}
}

// MoveTarget names the task being persisted and where it now lives.
type MoveTarget struct {
	ProjectID string
	TaskID    string
	Column    domain.Column
	Position  int
}

// BuildMatrix expands the negotiation matrix for target in probe order:
// endpoints outermost, then status variants, then payload shapes. The
// result is finite and identical for identical input.
func BuildMatrix(target MoveTarget) []Combination {
	variants := statusVariants[target.Column]
	out := make([]Combination, 0, MatrixSize(target.Column))
	for _, tpl := range endpointTemplates {
		ep := tpl.expand(target.ProjectID, target.TaskID)
		for _, status := range variants {
			for _, shape := range payloadShapes {
				out = append(out, Combination{
					Endpoint: ep,
					Payload: Payload{
						StatusField:   shape.statusField,
						Status:        status,
						PositionField: shape.positionField,
						Position:      target.Position,
					},
				})
			}
		}
	}
	return out
}

// MatrixSize is the number of combinations BuildMatrix yields for col.
func MatrixSize(col domain.Column) int {
	return len(endpointTemplates) * len(statusVariants[col]) * len(payloadShapes)
}

// combinationFromContract rebuilds a combination for target from a cached
// contract. ok is false when the contract names an unknown endpoint.
func combinationFromContract(c storage.Contract, target MoveTarget) (Combination, bool) {
	for _, tpl := range endpointTemplates {
		if tpl.key != c.Endpoint {
			continue
		}
		return Combination{
			Endpoint: tpl.expand(target.ProjectID, target.TaskID),
			Payload: Payload{
				StatusField:   c.StatusField,
				Status:        c.StatusValue,
				PositionField: c.PositionField,
				Position:      target.Position,
			},
		}, true
	}
	return Combination{}, false
}

func (t endpointTemplate) expand(projectID, taskID string) Endpoint {
	path := strings.NewReplacer(
		"{project}", url.PathEscape(projectID),
		"{task}", url.PathEscape(taskID),
	).Replace(t.pattern)
	return Endpoint{Key: t.key, Method: t.method, Path: path}
}
