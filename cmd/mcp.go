package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/mcpserver"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the session tree as MCP tools over stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout. Agents get tools
to list, read, write, lint and query the tree; every edit goes through the
sync engine. Logs go to stderr so they never corrupt the protocol stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(s *session) error {
			return mcpserver.New(s, Version).ServeStdio()
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
