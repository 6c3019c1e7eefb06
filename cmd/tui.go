package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/bugs/internal/state"
	"github.com/joescharf/bugs/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive bug tracker",
	Long: `Open the interactive terminal UI against the server at api.url.

Report bugs from the form at the top; press esc to move to the list, where
e edits, d deletes, r reloads and q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := state.NewController(newClient())
		return tui.Run(cmd.Context(), ctrl)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
