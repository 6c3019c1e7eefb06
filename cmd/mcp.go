package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/bugs/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

The server works directly against the local store, so no 'bugs serve'
process is needed. Configure an MCP client with:

  {
    "mcpServers": {
      "bugs": { "command": "bugs", "args": ["mcp"] }
    }
  }

Available tools: bugs_list, bugs_get, bugs_create, bugs_update, bugs_delete`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := getStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		return mcp.NewServer(s, buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
