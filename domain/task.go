package domain

import (
	"bytes"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Task represents a single board item as last reported by the backend.
// Status is the backend's raw value; the lane is derived with Normalize.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	DueAt       *time.Time `json:"dueDate,omitempty"`
	StartAt     *time.Time `json:"startDate,omitempty"`
}

// Column is the canonical lane the task belongs in.
func (t Task) Column() Column { return Normalize(t.Status) }

// taskWire accepts the spellings seen across backends for the same fields.
type taskWire struct {
	ID          flexString `json:"id"`
	MongoID     flexString `json:"_id"`
	Title       flexString `json:"title"`
	Name        flexString `json:"name"`
	Description flexString `json:"description"`
	Status      flexString `json:"status"`
	Stage       flexString `json:"stage"`
	Assignee    flexString `json:"assignee"`
	AssigneeID  flexString `json:"assigneeId"`
	AssignedTo  flexString `json:"assignedTo"`
	DueDate     flexString `json:"dueDate"`
	DueDateAlt  flexString `json:"due_date"`
	DueAt       flexString `json:"dueAt"`
	StartDate   flexString `json:"startDate"`
	StartAlt    flexString `json:"start_date"`
	StartAt     flexString `json:"startAt"`
}

// UnmarshalJSON decodes a task tolerantly: ids and titles may be numbers,
// titles may be sent as "name", status as "stage", and unparseable dates are
// dropped.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := sonic.ConfigStd.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Task{
		ID:          firstNonEmpty(string(w.ID), string(w.MongoID)),
		Title:       firstNonEmpty(string(w.Title), string(w.Name)),
		Description: string(w.Description),
		Status:      firstNonEmpty(string(w.Status), string(w.Stage)),
		Assignee:    firstNonEmpty(string(w.Assignee), string(w.AssigneeID), string(w.AssignedTo)),
		DueAt:       parseTime(firstNonEmpty(string(w.DueDate), string(w.DueDateAlt), string(w.DueAt))),
		StartAt:     parseTime(firstNonEmpty(string(w.StartDate), string(w.StartAlt), string(w.StartAt))),
	}
	return nil
}

// flexString decodes strings, numbers and {id|_id} objects into a string.
// Other JSON kinds decode to the empty string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := sonic.ConfigStd.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '{':
		var ref struct {
			ID      flexString `json:"id"`
			MongoID flexString `json:"_id"`
		}
		if err := sonic.ConfigStd.Unmarshal(data, &ref); err != nil {
			return err
		}
		*f = flexString(firstNonEmpty(string(ref.ID), string(ref.MongoID)))
	case 'n', 't', 'f', '[':
		*f = ""
	default:
		*f = flexString(data)
	}
	return nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
