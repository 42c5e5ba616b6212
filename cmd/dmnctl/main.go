package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/processgpt/dmnrules/internal/bootstrap"
	"github.com/processgpt/dmnrules/internal/config"
	"github.com/processgpt/dmnrules/internal/logger"
	"github.com/processgpt/dmnrules/multitenantengine"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// Global flags
	cfgFile string
	tenant  string
	owner   string
)

var rootCmd = &cobra.Command{
	Use:   "dmnctl",
	Short: "Inspect, query and serve DMN decision tables",
	Long: `dmnctl works with DMN 1.3 decision tables stored per owner and tenant.

  parse     validate DMN files and print their decision tables
  query     answer a question against an owner's rules
  mcp       serve the dmn_rule tool over stdio for agents

The model store is selected by the configuration file or the DMN_STORE,
DATABASE_URL and DMN_MODEL_DIR environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	// stdout carries command output and MCP frames, so logs go to stderr
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetOutput(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("DMN_CONFIG"), "config file path")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", os.Getenv("DMN_TENANT"), "tenant ID")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", os.Getenv("DMN_OWNER"), "owner (user) ID")
}

// openManager loads the configuration and builds a manager over the configured store.
// The returned close function releases the store.
func openManager(ctx context.Context) (*multitenantengine.Manager, func(), error) {
	if tenant == "" || owner == "" {
		return nil, nil, fmt.Errorf("--tenant and --owner are required")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	be, err := bootstrap.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open model store: %w", err)
	}

	return bootstrap.NewManager(be, cfg.Engine, nil), func() { be.Close() }, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
