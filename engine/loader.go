package engine

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"prism-board/client"
	"prism-board/domain"
)

// Loader fetches the tasks of a project. It reads the project's task list and
// falls back to the tasks embedded in the project resource when the list
// route does not exist.
type Loader struct {
	sender Sender
	logger *log.Logger
}

// NewLoader creates a Loader. A nil logger uses the logrus standard logger.
func NewLoader(s Sender, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Loader{sender: s, logger: logger}
}

// Load returns the project's tasks in backend order. Failures other than a
// missing task list are returned as *LoadError.
func (l *Loader) Load(ctx context.Context, projectID string) ([]domain.Task, error) {
	base := "/projects/" + url.PathEscape(projectID)

	tasks, err := l.get(ctx, base+"/tasks", decodeTaskList)
	if err == nil {
		return tasks, nil
	}
	if !client.IsNotFound(err) {
		return nil, &LoadError{ProjectID: projectID, Cause: err}
	}

	l.logger.WithField("project_id", projectID).Debug("task list not found, falling back to project resource")
	tasks, err = l.get(ctx, base, decodeProjectTasks)
	if err != nil {
		return nil, &LoadError{ProjectID: projectID, Cause: err}
	}
	return tasks, nil
}

func (l *Loader) get(ctx context.Context, path string, decode func([]byte) ([]domain.Task, error)) ([]domain.Task, error) {
	resp, err := l.sender.Send(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := client.CheckResponse(http.MethodGet, path, resp); err != nil {
		return nil, err
	}
	tasks, err := decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return tasks, nil
}

// decodeTaskList accepts a bare array or an object with a tasks field. An
// object without a tasks array yields an empty list.
func decodeTaskList(body []byte) ([]domain.Task, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []domain.Task{}, nil
	}
	if body[0] == '[' {
		return taskArray(body)
	}
	var env struct {
		Tasks sonic.NoCopyRawMessage `json:"tasks"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return taskArray(env.Tasks)
}

// decodeProjectTasks reads the tasks embedded in a project resource, which
// may itself be wrapped as {"project": {...}}.
func decodeProjectTasks(body []byte) ([]domain.Task, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []domain.Task{}, nil
	}
	var env struct {
		Project *struct {
			Tasks sonic.NoCopyRawMessage `json:"tasks"`
		} `json:"project"`
		Tasks sonic.NoCopyRawMessage `json:"tasks"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Project != nil {
		return taskArray(env.Project.Tasks)
	}
	return taskArray(env.Tasks)
}

// taskArray decodes raw when it holds a JSON array; any other value, or no
// value at all, is treated as an empty list.
func taskArray(raw []byte) ([]domain.Task, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return []domain.Task{}, nil
	}
	tasks := []domain.Task{}
	if err := sonic.ConfigStd.Unmarshal(raw, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
