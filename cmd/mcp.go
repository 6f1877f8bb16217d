package cmd

import (
	"context"

	"github.com/spf13/cobra"

	mcpserver "github.com/filewise/filewise/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets Claude Code drive the pipeline natively. Configure with:

  {
    "mcpServers": {
      "filewise": { "command": "filewise", "args": ["mcp"] }
    }
  }

Available tools: filewise_start_batch, filewise_resume_batch,
filewise_batch_status, filewise_regenerate, filewise_record_feedback,
filewise_get_effectiveness`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		proc, err := newProcessor()
		if err != nil {
			return err
		}

		srv := mcpserver.NewServer(s, proc)
		return srv.ServeStdio(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
