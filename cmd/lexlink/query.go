package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	lexlink "github.com/ameetan/go-lexlink"
	"github.com/ameetan/go-lexlink/retrieval"
)

var (
	queryTopK    int
	queryNoLinks bool
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Run one hybrid retrieval",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		var opts []lexlink.RetrieveOption
		if queryTopK > 0 {
			opts = append(opts, lexlink.WithTopK(queryTopK))
		}
		if queryNoLinks {
			opts = append(opts, lexlink.WithoutInterpretationLinks())
		}

		results, trace, err := eng.Retrieve(cmd.Context(), strings.Join(args, " "), opts...)
		if err != nil {
			return err
		}

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Results []retrieval.Result `json:"results"`
				Trace   *retrieval.Trace   `json:"trace"`
			}{results, trace})
		}

		for i, r := range results {
			fmt.Printf("%2d. [%.3f] %s", i+1, r.Score, r.UnitID)
			if r.Title != "" {
				fmt.Printf("  %s", r.Title)
			}
			fmt.Println()
			if r.BoostedBy > 0 {
				fmt.Printf("    interprets %s (%s, x%.1f)\n", r.InterpretsStatute, r.InterpretationType, r.BoostedBy)
			}
			fmt.Printf("    %s\n", snippet(r.Content, 160))
		}
		fmt.Printf("\n%d results in %dms (lex %d, dense %d, boosted %d, injected %d)\n",
			len(results), trace.ElapsedMs, trace.LexResults, trace.DenseResults,
			trace.Boosted, trace.Injected)
		for _, w := range trace.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

// snippet collapses whitespace and cuts at a word boundary.
func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return s[:cut] + "..."
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (config default when 0)")
	queryCmd.Flags().BoolVar(&queryNoLinks, "no-links", false, "disable interpretation-link boosting")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "emit raw JSON")
	rootCmd.AddCommand(queryCmd)
}
