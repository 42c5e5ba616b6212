package main

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/processgpt/dmnrules/internal/logger"
	"github.com/processgpt/dmnrules/internal/tool"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dmn_rule tool over stdio",
	Long: `Start an MCP server on stdin/stdout exposing the dmn_rule tool for one owner.
The owner's rules are loaded once at startup; logs go to stderr.

Example:
  dmnctl mcp --tenant acme --owner alice`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	manager, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	t, err := tool.NewDMNRuleTool(ctx, manager, owner, tenant)
	if err != nil {
		return err
	}

	s := server.NewMCPServer(
		"dmnrules",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.AddTool(t.Definition(), t.Handle)

	logger.Info("Serving dmn_rule over stdio", "tenant", tenant, "owner", owner)

	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
