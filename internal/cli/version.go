package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/smartfix/internal/version"
)

// NewVersionCmd creates the 'version' command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the current version, commit hash, and build date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, c, d := version.GetVersionComponents()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Version:  %s\n", v)
			fmt.Fprintf(w, "Commit:   %s\n", c)
			fmt.Fprintf(w, "Built:    %s\n", d)
			return nil
		},
	}
}
