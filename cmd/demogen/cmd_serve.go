package main

import (
	"context"

	"github.com/spf13/cobra"

	"demogen/internal/logging"
	mcpserver "demogen/internal/mcp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveFlags struct {
	logDir string
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Starts a Model Context Protocol server over stdin/stdout with read-only
tools for plan previews, run status and scorecard templates.

The server exits when the process that launched it goes away.`,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveFlags.logDir, "log-dir", defaultLogDir, "Directory holding run directories")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	srv := mcpserver.NewServer(serveFlags.logDir)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger := logging.New("mcp")
	mcpserver.WatchParent(ctx, logger, cancel)

	logger.Info("starting demogen MCP server over stdio", "log_dir", serveFlags.logDir)
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
