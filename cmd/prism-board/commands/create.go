package commands

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"prism-board/client"
	"prism-board/engine"
	"prism-board/printer"
)

func newCreateCmd(a *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create TITLE...",
		Short: "Create a task",
		Long: `Create a task in the project. The backend picks the initial status; the
task is shown at the top of the column that status maps to.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			task, err := engine.NewCreateCoordinator(view, c, a.logger).Create(ctx, engine.Draft{
				Title:       strings.Join(args, " "),
				Description: description,
			})
			if err != nil {
				if errors.Is(err, engine.ErrTitleRequired) {
					return a.fail("Title required", "A task needs a non-blank title.", nil)
				}
				return a.fail("Could not create the task", client.UserMessage(err), a.suggestionsFor(err))
			}
			printer.Success(a.stdout, "Created %s [%s] in %s\n", task.Title, task.ID, task.Column().Title())
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	return cmd
}
