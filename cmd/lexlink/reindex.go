package main

import (
	"fmt"

	"github.com/spf13/cobra"

	lexlink "github.com/ameetan/go-lexlink"
)

var (
	reindexLex   bool
	reindexDense bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild search indexes from the stored corpus",
	Long: `Reindex builds fresh index generations from every stored document and
atomically swaps them live. Searches keep running against the old
generation until the swap. Without flags both sides are rebuilt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx := cmd.Context()
		var rep *lexlink.ReindexReport
		switch {
		case reindexLex && !reindexDense:
			rep, err = eng.ReindexLexical(ctx)
		case reindexDense && !reindexLex:
			rep, err = eng.ReindexDense(ctx)
		default:
			rep, err = eng.Reindex(ctx)
		}
		if err != nil {
			return err
		}
		printReindex(rep)
		return nil
	},
}

func printReindex(rep *lexlink.ReindexReport) {
	fmt.Printf("indexed %d units in %dms\n", rep.Units, rep.ElapsedMs)
	if rep.LexGeneration != "" {
		fmt.Printf("  lexical generation %s\n", rep.LexGeneration)
	}
	if rep.DenseGeneration != "" {
		fmt.Printf("  dense generation %s\n", rep.DenseGeneration)
	}
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexLex, "lex", false, "rebuild only the lexical side")
	reindexCmd.Flags().BoolVar(&reindexDense, "dense", false, "rebuild only the dense side")
	rootCmd.AddCommand(reindexCmd)
}
