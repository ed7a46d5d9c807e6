package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/smartfix/internal/brain"
	"github.com/khanglvm/smartfix/internal/models"
)

// NewAskCmd creates the 'ask' command for answering a troubleshooting query.
func NewAskCmd() *cobra.Command {
	var (
		device     string
		logFile    string
		imageFile  string
		voiceFile  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ask <problem description>",
		Short: "Diagnose a device problem",
		Long: `Answer a troubleshooting query the same way the MCP and HTTP surfaces do.

The query id printed with the answer can be passed to 'smartfix feedback'.`,
		Example: `  smartfix ask "TV screen is black but power light is on"
  smartfix ask "phone keeps rebooting" --device smartphone
  smartfix ask "router fails" --log ./router.log
  smartfix ask "what does this mean" --image ./error.png --json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := askInput(strings.Join(args, " "), device, logFile, imageFile, voiceFile)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				resp := a.engine.Process(ctx, in)
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				printResponse(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Device category (television, smartphone, smartwatch, iot)")
	cmd.Flags().StringVar(&logFile, "log", "", "Log file to analyze")
	cmd.Flags().StringVar(&imageFile, "image", "", "Screenshot or photo of the error")
	cmd.Flags().StringVar(&voiceFile, "voice", "", "Audio recording describing the problem")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("log", "image", "voice")

	return cmd
}

// askInput builds the engine input from the command's text and file flags.
func askInput(text, device, logFile, imageFile, voiceFile string) (models.Input, error) {
	in := models.Input{Type: models.InputText, Text: text, DeviceCategory: device}

	switch {
	case logFile != "":
		content, err := os.ReadFile(logFile)
		if err != nil {
			return in, fmt.Errorf("failed to read log file: %w", err)
		}
		in.Type = models.InputLog
		in.LogContent = string(content)
	case imageFile != "":
		payload, err := os.ReadFile(imageFile)
		if err != nil {
			return in, fmt.Errorf("failed to read image: %w", err)
		}
		in.Type = models.InputImage
		in.Payload = payload
		in.Filename = filepath.Base(imageFile)
	case voiceFile != "":
		payload, err := os.ReadFile(voiceFile)
		if err != nil {
			return in, fmt.Errorf("failed to read audio: %w", err)
		}
		in.Type = models.InputVoice
		in.Payload = payload
		in.Filename = filepath.Base(voiceFile)
	case strings.TrimSpace(text) == "":
		return in, fmt.Errorf("problem description required")
	}
	return in, nil
}

func printResponse(w io.Writer, resp brain.Response) {
	sol := resp.Solution
	fmt.Fprintf(w, "Issue:      %s\n", sol.Issue)
	fmt.Fprintf(w, "Source:     %s\n", resp.Source)
	fmt.Fprintf(w, "Confidence: %.2f\n", sol.ConfidenceScore)
	fmt.Fprintf(w, "Query ID:   %s\n", resp.QueryID)

	if len(sol.PossibleCauses) > 0 {
		fmt.Fprintln(w, "\nPossible causes:")
		for _, cause := range sol.PossibleCauses {
			fmt.Fprintf(w, "  - %s\n", cause)
		}
	}
	if len(sol.RecommendedSteps) > 0 {
		fmt.Fprintln(w, "\nSteps:")
		for _, step := range sol.RecommendedSteps {
			fmt.Fprintf(w, "  %d. %s\n", step.StepNumber, step.Description)
		}
	}
	if sol.AdditionalInfo != "" {
		fmt.Fprintf(w, "\n%s\n", sol.AdditionalInfo)
	}
	if len(sol.ExternalSources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, src := range sol.ExternalSources {
			fmt.Fprintf(w, "  %s\n    %s\n", src.Title, src.URL)
		}
	}
	if len(resp.Related) > 0 {
		fmt.Fprintln(w, "\nRelated:")
		for _, r := range resp.Related {
			fmt.Fprintf(w, "  #%d %s\n", r.RecordID, r.ProblemText)
		}
	}
	if sol.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", sol.Error)
	}
}

// NewSearchCmd creates the 'search' command for listing matching stored solutions.
func NewSearchCmd() *cobra.Command {
	var (
		device     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List stored solutions matching a query",
		Example: `  smartfix search battery drain
  smartfix search "no picture" --device television --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				records, err := a.engine.Search(ctx, query, device)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), records)
				}

				w := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(w, "No matching solutions.")
					return nil
				}
				fmt.Fprintf(w, "Matching solutions (%d):\n\n", len(records))
				for _, rec := range records {
					fmt.Fprintf(w, "  #%d %s\n", rec.ID, rec.ProblemText)
					fmt.Fprintf(w, "    Device:     %s\n", rec.DeviceCategory)
					fmt.Fprintf(w, "    Confidence: %.2f  Success: %.2f  Used: %d\n\n",
						rec.ConfidenceScore, rec.SuccessRate, rec.UsageCount)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Device category filter")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

// NewRelatedCmd creates the 'related' command for BM25 related-problem lookup.
func NewRelatedCmd() *cobra.Command {
	var (
		device     string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "related <query>",
		Short: "Find related stored problems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be a positive integer")
			}
			query := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				results, err := a.engine.Related(query, device, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), results)
				}

				w := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(w, "No related problems.")
					return nil
				}
				for _, r := range results {
					fmt.Fprintf(w, "  #%d %-50s %-12s %.3f\n", r.RecordID, r.ProblemText, r.DeviceCategory, r.Score)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Device category filter")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
