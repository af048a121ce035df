package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kennyg/folio/internal/app"
	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/config"
	"github.com/kennyg/folio/internal/logging"
	"github.com/kennyg/folio/internal/ui"
)

var (
	// Version is set at build time
	Version = "dev"
)

var (
	flagWorkspace string
	flagDebug     bool
	flagLogFormat string
)

// Populated by setup before any command runs
var (
	logger = zap.NewNop()
	paths  *config.Paths
	cfg    *config.Config
)

// errReported marks failures whose details were already printed
var errReported = errors.New("failed")

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Sync curated Copilot agents, prompts and instructions into .github",
	Long: ui.Logo() + `
  Fetches a curated catalogue and installs the pieces you pick into your
  workspace's .github folder. Nothing outside .github is ever written.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context, which aborts downloads and any install that has not committed.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, ui.ErrorLine(artifact.Describe(err)))
		logger.Debug("command failed", zap.Error(err))
	}
	_ = logger.Sync()
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "Workspace root (default: nearest folder with .folio.yaml or .git)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "Log format: console or json")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	format, err := logging.ParseFormat(flagLogFormat)
	if err != nil {
		return err
	}
	logger = logging.New(logging.Options{Debug: flagDebug, Format: format})

	paths, err = config.GetPaths(flagWorkspace)
	if err != nil {
		return err
	}
	cfg, err = config.Load(config.LoadOptions{
		WorkspaceRoot:  paths.WorkspaceRoot,
		UserConfigPath: paths.UserConfig,
	})
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.String("workspace", paths.WorkspaceRoot),
		zap.Strings("sources", cfg.Sources),
		zap.String("repository", cfg.Repository),
		zap.String("ref", cfg.Ref))
	return nil
}

func newApp() (*app.App, error) {
	return app.New(cfg, paths, logger)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// no config needed
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "folio %s\n", Version)
	},
}
