package engine

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"prism-board/client"
	"prism-board/domain"
)

// Draft is the user input for a new task.
type Draft struct {
	Title       string
	Description string
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateCoordinator creates tasks on the backend and only then places the
// returned record on the board.
type CreateCoordinator struct {
	view   *View
	sender Sender
	logger *log.Logger
}

// NewCreateCoordinator wires a CreateCoordinator for view.
func NewCreateCoordinator(view *View, s Sender, logger *log.Logger) *CreateCoordinator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &CreateCoordinator{view: view, sender: s, logger: logger}
}

// Create posts draft to the project's task collection. The status is left
// for the server to default. The created record, as returned by the server,
// is prepended to the column its status normalizes to. On any failure the
// board is untouched and a *CreateError is returned.
func (c *CreateCoordinator) Create(ctx context.Context, draft Draft) (domain.Task, error) {
	projectID := c.view.projectID
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return domain.Task{}, &CreateError{ProjectID: projectID, Cause: ErrTitleRequired}
	}
	if c.view.Closed() {
		return domain.Task{}, ErrViewClosed
	}

	path := "/projects/" + url.PathEscape(projectID) + "/tasks"
	body := createTaskRequest{Title: title, Name: title, Description: strings.TrimSpace(draft.Description)}
	header := http.Header{}
	header.Set(client.HeaderIdempotencyKey, uuid.NewString())

	ctx, cancel := c.view.bind(ctx)
	defer cancel()

	resp, err := c.sender.Send(ctx, http.MethodPost, path, body, header)
	if err == nil {
		err = client.CheckResponse(http.MethodPost, path, resp)
	}
	if err != nil {
		c.logger.WithFields(log.Fields{"project_id": projectID, "title": title, "error": err.Error()}).Warn("create task failed")
		return domain.Task{}, &CreateError{ProjectID: projectID, Title: title, Cause: err}
	}

	task, err := decodeCreatedTask(resp.Body)
	if err != nil {
		return domain.Task{}, &CreateError{ProjectID: projectID, Title: title, Cause: err}
	}

	if _, err := c.view.insertCreated(task); err != nil {
		return task, err
	}
	c.logger.WithFields(log.Fields{"project_id": projectID, "task_id": task.ID, "column": string(task.Column())}).Info("task created")
	return task, nil
}

var errMissingTaskID = errors.New("created task response has no id")

// decodeCreatedTask accepts the record bare or wrapped as {"task": {...}}.
func decodeCreatedTask(body []byte) (domain.Task, error) {
	var env struct {
		Task *domain.Task `json:"task"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &env); err == nil && env.Task != nil && env.Task.ID != "" {
		return *env.Task, nil
	}
	var task domain.Task
	if err := sonic.ConfigStd.Unmarshal(body, &task); err != nil {
		return domain.Task{}, err
	}
	if task.ID == "" {
		return domain.Task{}, errMissingTaskID
	}
	return task, nil
}
