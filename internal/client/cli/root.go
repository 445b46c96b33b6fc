package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree bound to a.
func NewRootCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cardkeeper",
		Short:         "cardkeeper keeps versioned text cards in sync across devices",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}

	a.config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newRegisterCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newSyncCommand(a),
		newListCommand(a),
		newCatCommand(a),
		newNewCommand(a),
		newEditCommand(a),
		newRemoveCommand(a),
		newHistoryCommand(a),
		newExportCommand(a),
	)

	return cmd
}
