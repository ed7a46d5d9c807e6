package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/khanglvm/smartfix/internal/version"
)

// NewRootCmd creates the smartfix root command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smartfix",
		Short: "Self-learning troubleshooting assistant for consumer devices",
		Long: `smartfix answers device troubleshooting questions from a local knowledge
store, falls back to fresh model analysis and web search when no trusted
solution is stored, and learns from every interaction and feedback.

Surfaces:
  • serve - MCP server over stdio
  • http  - REST API with Prometheus metrics
  • ask, search, related, add, feedback, stats, export - direct CLI access`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.smartfix/config.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewHTTPCmd())
	rootCmd.AddCommand(NewAskCmd())
	rootCmd.AddCommand(NewSearchCmd())
	rootCmd.AddCommand(NewRelatedCmd())
	rootCmd.AddCommand(NewAddCmd())
	rootCmd.AddCommand(NewFeedbackCmd())
	rootCmd.AddCommand(NewStatsCmd())
	rootCmd.AddCommand(NewExportCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// withApp builds the app from the command's --config flag, runs fn and closes it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	configPath, _ := cmd.Flags().GetString("config")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
