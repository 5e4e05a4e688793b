package commands

import (
	"github.com/spf13/cobra"

	"prism-board/printer"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the project's board",
		Long: `Load the project's tasks and print them grouped into To Do, In Progress
and Done. Backend status spellings are folded into these three columns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := a.projectID()
			if err != nil {
				return err
			}
			view, err := a.openView(cmd.Context(), a.client(), projectID)
			if err != nil {
				return err
			}
			defer view.Close()

			printer.Board(a.stdout, projectID, view.Board())
			return nil
		},
	}
}
