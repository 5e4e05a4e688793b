package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleMove indicates the board changed underneath a move intent.
	ErrStaleMove = errors.New("stale move")
	// ErrUnknownColumn is returned when an intent names a non canonical column.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateTask is returned when inserting a task id already on the board.
	ErrDuplicateTask = errors.New("task already on board")
)

// StaleMoveError describes a move whose source position no longer holds the
// expected task.
type StaleMoveError struct {
	Intent MoveIntent
	// Found is the id currently at the source position, empty if the position
	// does not exist.
	Found string
	// DestOutOfRange is set when the source matched but the destination
	// position no longer exists.
	DestOutOfRange bool
}

func (e *StaleMoveError) Error() string {
	if e.DestOutOfRange {
		return fmt.Sprintf("stale move: %s has no position %d for %s; please refresh the board",
			e.Intent.DestColumn, e.Intent.DestIndex, e.Intent.TaskID)
	}
	if e.Found == "" {
		return fmt.Sprintf("stale move: no task at %s[%d], expected %s; please refresh the board",
			e.Intent.SourceColumn, e.Intent.SourceIndex, e.Intent.TaskID)
	}
	return fmt.Sprintf("stale move: %s[%d] holds %s, expected %s; please refresh the board",
		e.Intent.SourceColumn, e.Intent.SourceIndex, e.Found, e.Intent.TaskID)
}

func (e *StaleMoveError) Is(target error) bool { return target == ErrStaleMove }
