package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"prism-board/client"
	"prism-board/domain"
	"prism-board/engine"
	"prism-board/printer"
)

func newMoveCmd(a *app) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "move TASK_ID COLUMN",
		Short: "Move a task to another column or position",
		Long: `Move a task to COLUMN (todo, in_progress or done) at --index, counted
from the top of the column.

The move is persisted by trying the backend's update routes and payload
shapes in a fixed order until one is accepted. If none is, the board is left
as it was.

Examples:
  prism-board move t-3 done
  prism-board move t-3 in-progress --index 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			dest, ok := domain.ParseColumn(args[1])
			if !ok {
				return a.fail("Unknown column", fmt.Sprintf("%q is not a board column.", args[1]), []string{"Use todo, in_progress or done."})
			}
			if index < 0 {
				return a.fail("Invalid --index", "The index cannot be negative.", nil)
			}
			projectID, err := a.projectID()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c := a.client()
			view, err := a.openView(ctx, c, projectID)
			if err != nil {
				return err
			}
			defer view.Close()

			src, srcIdx, ok := view.Board().Locate(taskID)
			if !ok {
				return a.fail("Task not found", fmt.Sprintf("No task %s on board %s.", taskID, projectID), []string{"Run prism-board show to list task ids."})
			}
			destLen := len(view.Board().Column(dest))
			if src == dest {
				destLen--
			}
			if index > destLen {
				index = destLen
			}

			cache, closeCache := a.contractCache(ctx)
			defer closeCache()
			neg := engine.NewNegotiator(c,
				engine.WithContractCache(cache),
				engine.WithAttemptTimeout(a.cfg.Negotiation.AttemptTimeout),
				engine.WithNegotiatorLogger(a.logger),
			)
			moves := engine.NewMoveEngine(view, neg, a.logger)

			res, err := moves.ApplyMove(ctx, domain.MoveIntent{
				TaskID:       taskID,
				SourceColumn: src,
				SourceIndex:  srcIdx,
				DestColumn:   dest,
				DestIndex:    index,
			})
			if err != nil {
				return a.moveFailed(err, res)
			}
			if res.Noop {
				printer.Success(a.stdout, "%s is already at %s[%d]\n", taskID, dest.Title(), index)
				return nil
			}
			printer.Success(a.stdout, "Moved %s to %s[%d]\n", taskID, dest.Title(), index)
			if res.Winner != nil {
				printer.Step(a.stdout, "saved with %s after %d attempt(s)\n", res.Winner, len(res.Attempts))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, "Position within the destination column")
	return cmd
}

func (a *app) moveFailed(err error, res engine.MoveResult) error {
	var stale *domain.StaleMoveError
	var pe *engine.PersistError
	switch {
	case errors.As(err, &stale):
		return a.fail("Board out of date", stale.Error(), []string{"Run prism-board show and try again."})
	case errors.As(err, &pe):
		for _, at := range res.Attempts {
			if at.Skipped {
				continue
			}
			a.logger.WithField("status", at.StatusCode).Debugf("rejected %s", at.Combination)
		}
		if pe.Cause != nil {
			return a.fail("Could not save the move", client.UserMessage(pe.Cause), a.suggestionsFor(pe.Cause))
		}
		return a.fail("Could not save the move",
			fmt.Sprintf("The backend accepted none of %d update attempts. The task stays where it was.", len(res.Attempts)),
			[]string{"Run with DEBUG=true to see every rejected attempt."})
	}
	return a.fail("Move failed", client.UserMessage(err), nil)
}
