package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/smartfix/internal/brain"
	"github.com/khanglvm/smartfix/internal/learning"
)

// NewAddCmd creates the 'add' command for storing a solution.
func NewAddCmd() *cobra.Command {
	var (
		input      brain.RecordInput
		confidence float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a solution",
		Long: `Store a problem with its solution steps. A problem with the same text
(ignoring case and surrounding whitespace) replaces the stored one.`,
		Example: `  smartfix add --problem "Smart plug keeps disconnecting" \
    --step "Move the plug closer to the router" \
    --step "Reserve a DHCP lease for the plug" \
    --device iot --type connectivity`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("confidence") {
				input.ConfidenceScore = &confidence
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				id, err := a.engine.AddRecord(ctx, input.Record())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored solution #%d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&input.ProblemText, "problem", "", "Problem statement (required)")
	cmd.Flags().StringArrayVarP(&input.SolutionSteps, "step", "s", nil, "Solution step, repeat in order (required)")
	cmd.Flags().StringVar(&input.Symptoms, "symptoms", "", "Observable symptoms")
	cmd.Flags().StringVarP(&input.DeviceCategory, "device", "d", "", "Device category")
	cmd.Flags().StringVarP(&input.ProblemType, "type", "t", "", "Problem type")
	cmd.Flags().StringArrayVarP(&input.ErrorCodes, "code", "c", nil, "Error code, repeatable")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.5, "Confidence in the solution, 0 to 1")
	_ = cmd.MarkFlagRequired("problem")
	_ = cmd.MarkFlagRequired("step")

	return cmd
}

// NewFeedbackCmd creates the 'feedback' command for reporting an outcome.
func NewFeedbackCmd() *cobra.Command {
	var (
		success bool
		failure bool
		score   int
	)

	cmd := &cobra.Command{
		Use:   "feedback <query_id>",
		Short: "Report whether an answer fixed the problem",
		Example: `  smartfix feedback 6f1c... --success
  smartfix feedback 6f1c... --failure --score 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scorePtr *int
			if cmd.Flags().Changed("score") {
				scorePtr = &score
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.engine.SubmitFeedback(ctx, args[0], success && !failure, scorePtr)
				if errors.Is(err, learning.ErrFeedbackRecorded) {
					return fmt.Errorf("feedback for query %s was already recorded", args[0])
				}
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				switch result.Status {
				case learning.FeedbackUnknownQuery:
					fmt.Fprintf(w, "Unknown query %s, nothing recorded\n", args[0])
				default:
					fmt.Fprintf(w, "✓ Feedback recorded for %s\n", args[0])
					if result.RecordID != nil && result.SuccessRate != nil {
						fmt.Fprintf(w, "  Solution #%d success rate: %.2f\n", *result.RecordID, *result.SuccessRate)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&success, "success", false, "The answer fixed the problem")
	cmd.Flags().BoolVar(&failure, "failure", false, "The answer did not fix the problem")
	cmd.Flags().IntVar(&score, "score", 0, "Rating from 1 to 5")
	cmd.MarkFlagsMutuallyExclusive("success", "failure")
	cmd.MarkFlagsOneRequired("success", "failure")

	return cmd
}

// NewStatsCmd creates the 'stats' command.
func NewStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge and learning statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				stats, err := a.engine.Stats(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), stats)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintln(w, "Knowledge")
				fmt.Fprintln(w, "=========")
				fmt.Fprintf(w, "Problems:             %d\n", stats.TotalProblems)
				fmt.Fprintf(w, "Average confidence:   %.2f\n", stats.AverageConfidence)
				fmt.Fprintf(w, "Average success rate: %.2f\n", stats.AverageSuccessRate)
				fmt.Fprintln(w)
				fmt.Fprintln(w, "Learning")
				fmt.Fprintln(w, "========")
				fmt.Fprintf(w, "Events:               %d (%d successful, %.1f%%)\n",
					stats.TotalLearningEvents, stats.SuccessfulLearningEvents, stats.LearningSuccessRate)
				fmt.Fprintf(w, "Queries:              %d (%d with feedback)\n", stats.TotalQueries, stats.QueriesWithFeedback)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

// NewExportCmd creates the 'export' command for dumping all records as JSON.
func NewExportCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all stored solutions as JSON",
		Example: `  smartfix export
  smartfix export -o brain.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				records, err := a.engine.Records(ctx)
				if err != nil {
					return err
				}

				if outputFile == "" {
					return writeJSON(cmd.OutOrStdout(), records)
				}

				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				if err := writeJSON(f, records); err != nil {
					f.Close()
					return fmt.Errorf("failed to write export: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d solutions to %s\n", len(records), outputFile)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
