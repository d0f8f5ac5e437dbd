package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	lexlink "github.com/ameetan/go-lexlink"
	"github.com/ameetan/go-lexlink/eval"
)

var (
	evalKs      []int
	evalNoLinks bool
	evalJSON    bool
)

var evalCmd = &cobra.Command{
	Use:   "eval [dataset.json]",
	Short: "Score retrieval against a golden dataset",
	Long: `Eval runs every golden query through retrieval and reports mean
precision@k, recall@k, and MRR. Without a dataset file a small built-in
sample is used. Pass --no-links to measure the unboosted baseline.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds := eval.SampleDataset()
		if len(args) == 1 {
			var err error
			ds, err = eval.LoadDataset(args[0])
			if err != nil {
				return err
			}
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		retrieve := func(ctx context.Context, query string) ([]string, error) {
			var opts []lexlink.RetrieveOption
			if evalNoLinks {
				opts = append(opts, lexlink.WithoutInterpretationLinks())
			}
			results, _, err := eng.Retrieve(ctx, query, opts...)
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(results))
			for i, r := range results {
				ids[i] = r.UnitID
			}
			return ids, nil
		}

		runner := eval.NewRunner(retrieve, evalKs)
		sum, err := runner.Run(cmd.Context(), ds)
		if err != nil {
			return err
		}

		if evalJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}

		fmt.Printf("dataset %s: %d queries, %d failed, %.1fms\n",
			sum.Dataset, sum.Queries, sum.Failed, sum.ElapsedMs)
		ks := make([]int, 0, len(sum.MeanPrecisionAt))
		for k := range sum.MeanPrecisionAt {
			ks = append(ks, k)
		}
		sort.Ints(ks)
		for _, k := range ks {
			fmt.Printf("  p@%-3d %.3f   r@%-3d %.3f\n", k, sum.MeanPrecisionAt[k], k, sum.MeanRecallAt[k])
		}
		fmt.Printf("  mrr   %.3f\n", sum.MRR)
		return nil
	},
}

func init() {
	evalCmd.Flags().IntSliceVar(&evalKs, "k", nil, "cutoffs to score (default 1,5,10)")
	evalCmd.Flags().BoolVar(&evalNoLinks, "no-links", false, "disable interpretation-link boosting")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "emit the summary as JSON")
	rootCmd.AddCommand(evalCmd)
}
