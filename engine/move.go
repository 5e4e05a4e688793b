package engine

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

// MoveResult describes how a move resolved.
type MoveResult struct {
	Intent domain.MoveIntent
	// Board is the board once the move resolved: the post-move board on
	// commit, the restored board on rollback.
	Board domain.Board
	// Noop is set when the intent did not change the task's position and
	// nothing was sent.
	Noop     bool
	Winner   *Combination
	Attempts []Attempt
}

// MoveEngine applies drag and drop moves: optimistically on the view, then
// persisted through a Persister, rolled back if persistence fails.
type MoveEngine struct {
	view      *View
	persister Persister
	logger    *log.Logger
}

// NewMoveEngine wires a MoveEngine for view.
func NewMoveEngine(view *View, p Persister, logger *log.Logger) *MoveEngine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &MoveEngine{view: view, persister: p, logger: logger}
}

// ApplyMove runs one move to resolution. The optimistic board is visible to
// view observers before any request is sent. On failure the board returns to
// its pre-move configuration and a *PersistError is returned; a stale intent
// fails with *domain.StaleMoveError before anything changes. Results that
// arrive after the view was closed are dropped and reported as ErrViewClosed.
func (e *MoveEngine) ApplyMove(ctx context.Context, intent domain.MoveIntent) (res MoveResult, err error) {
	metrics, ctx := newMoveMetrics(ctx, e.logger, e.view.projectID, intent)
	defer func() {
		metrics.Log(err)
	}()
	res.Intent = intent

	if intent.IsNoop() {
		// The intent must still name the task at its source position.
		board := e.view.Board()
		if _, err := board.MoveLocal(intent); err != nil {
			return res, rejectMove(metrics, err)
		}
		metrics.SetOutcome(outcomeNoop)
		res.Noop = true
		res.Board = board
		return res, nil
	}

	ticket, err := e.view.beginMove(intent)
	if err != nil {
		return res, rejectMove(metrics, err)
	}

	persistCtx, cancel := e.view.bind(ctx)
	start := time.Now()
	neg, perr := e.persister.Persist(persistCtx, MoveTarget{
		ProjectID: e.view.projectID,
		TaskID:    intent.TaskID,
		Column:    intent.DestColumn,
		Position:  intent.DestIndex,
	})
	cancel()

	attempts := neg.Attempts
	var pe *PersistError
	if perr != nil && errors.As(perr, &pe) {
		attempts = pe.Attempts
	}
	metrics.ObservePersist(time.Since(start), sentCount(attempts))
	res.Attempts = attempts

	if perr == nil {
		board, cerr := e.view.commitMove(ticket)
		if cerr != nil {
			metrics.SetOutcome(outcomeClosed)
			return res, cerr
		}
		winner := neg.Winner
		res.Winner = &winner
		res.Board = board
		metrics.SetWinner(winner)
		metrics.SetOutcome(outcomeCommitted)
		return res, nil
	}

	board, rerr := e.view.rollbackMove(ticket)
	if rerr != nil {
		metrics.SetOutcome(outcomeClosed)
		return res, rerr
	}
	res.Board = board
	metrics.SetOutcome(outcomeRolledBack)
	metrics.SetErrorStage("persist")
	return res, perr
}

// rejectMove records why a move was refused before anything was sent.
func rejectMove(metrics *moveMetrics, err error) error {
	metrics.SetOutcome(outcomeRejected)
	switch {
	case errors.Is(err, domain.ErrStaleMove):
		metrics.SetErrorStage("stale")
	case errors.Is(err, ErrMoveInFlight):
		metrics.SetErrorStage("in_flight")
	case errors.Is(err, ErrViewClosed):
		metrics.SetOutcome(outcomeClosed)
	default:
		metrics.SetErrorStage("local_move")
	}
	return err
}
