package engine

import (
	"errors"
	"fmt"

	"prism-board/domain"
)

var (
	// ErrLoad is matched by every *LoadError.
	ErrLoad = errors.New("load tasks failed")
	// ErrPersist is matched by every *PersistError.
	ErrPersist = errors.New("persist move failed")
	// ErrCreate is matched by every *CreateError.
	ErrCreate = errors.New("create task failed")
	// ErrMoveInFlight rejects a move on a task whose previous move has not
	// resolved yet.
	ErrMoveInFlight = errors.New("move already in progress for task")
	// ErrViewClosed is returned when a result arrives after the view was
	// closed; the board is left untouched.
	ErrViewClosed = errors.New("board view closed")
	// ErrTitleRequired rejects a draft with a blank title before any network call.
	ErrTitleRequired = errors.New("task title is required")
)

// LoadError reports that neither the task list nor the project resource
// could be read.
type LoadError struct {
	ProjectID string
	Cause     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load tasks for project %s: %v", e.ProjectID, e.Cause)
}

func (e *LoadError) Unwrap() error        { return e.Cause }
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// PersistError reports that no combination of the negotiation matrix was
// accepted. Attempts holds every try in order, for diagnostics only; the
// error text leaves them out.
type PersistError struct {
	ProjectID string
	TaskID    string
	Column    domain.Column
	Attempts  []Attempt
	// Cause is set when probing stopped early, e.g. on cancellation.
	Cause error
}

func (e *PersistError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("could not save move of task %s to %s: %v", e.TaskID, e.Column.Title(), e.Cause)
	}
	return fmt.Sprintf("could not save move of task %s to %s", e.TaskID, e.Column.Title())
}

func (e *PersistError) Unwrap() error        { return e.Cause }
func (e *PersistError) Is(target error) bool { return target == ErrPersist }

// CreateError reports a failed creation call. The board is never modified
// when it is returned.
type CreateError struct {
	ProjectID string
	Title     string
	Cause     error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("create task %q: %v", e.Title, e.Cause)
}

func (e *CreateError) Unwrap() error        { return e.Cause }
func (e *CreateError) Is(target error) bool { return target == ErrCreate }
