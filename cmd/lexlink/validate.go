package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ameetan/go-lexlink/validation"
)

var (
	validateFile string
	validateJSON bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a generated answer against its retrieval context",
	Long: `Validate reads a JSON request {query, answer, context} from --file or
stdin, scores how well the answer synthesises the context, checks every
case-law claim against the link store, and reports a decision.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := os.Stdin
		if validateFile != "" {
			f, err := os.Open(validateFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}

		var req validation.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("parsing request: %w", err)
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		res, err := eng.Validate(cmd.Context(), req)
		if err != nil {
			return err
		}

		if validateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Printf("decision: %s", res.Decision)
		if res.Priority != "" {
			fmt.Printf(" (priority %s)", res.Priority)
		}
		fmt.Println()
		fmt.Printf("synthesis %.2f  citations %.2f  hallucination %.2f\n",
			res.Metrics.SynthesisScore, res.Metrics.CitationScore, res.Metrics.HallucinationRate)
		for _, issue := range res.Issues {
			fmt.Printf("issue: %s\n", issue)
		}
		for _, w := range res.Warnings {
			fmt.Printf("warning: %s\n", w)
		}

		if res.Decision == validation.DecisionReject {
			return fmt.Errorf("answer rejected")
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "request file (stdin when empty)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "emit the full result as JSON")
	rootCmd.AddCommand(validateCmd)
}
