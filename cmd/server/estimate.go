package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fidde/codesnip/internal/complexity"
)

var estimateJSON bool

var estimateCmd = &cobra.Command{
	Use:   "estimate [file]",
	Short: "Estimate the time complexity of code read from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()
			in = f
		}

		code, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("reading code: %w", err)
		}

		est := complexity.EstimateComplexity(string(code))
		out := cmd.OutOrStdout()
		if estimateJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(est)
		}

		fmt.Fprintf(out, "%s (confidence %d%%)\n", est.Class, est.Confidence)
		fmt.Fprintln(out, est.Explanation)
		return nil
	},
}

func init() {
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "print the full estimate as JSON")
}
