package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ameetan/go-lexlink/store"
)

var (
	ingestType    string
	ingestReindex bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Segment source documents into the corpus",
	Long: `Ingest reads statutes, judgments, or rules (.txt or .pdf), segments
them into a document tree, and stores the nodes. Unchanged content is
skipped, so re-running over the same files is safe.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dt := store.DocType(ingestType)
		if !dt.Valid() {
			return fmt.Errorf("unknown document type %q (want statute, case, or rule)", ingestType)
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx := cmd.Context()
		for _, path := range args {
			rep, err := eng.IngestFile(ctx, path, dt)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s: %s stored %d/%d segments\n", path, rep.RootID, rep.Inserted, rep.Segments)
			for _, sk := range rep.Skipped {
				fmt.Printf("  skipped %s: %s\n", sk.ID, sk.Reason)
			}
		}

		if ingestReindex {
			rep, err := eng.Reindex(ctx)
			if err != nil {
				return err
			}
			printReindex(rep)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestType, "type", "t", "", "document type: statute, case, or rule")
	_ = ingestCmd.MarkFlagRequired("type")
	ingestCmd.Flags().BoolVar(&ingestReindex, "reindex", false, "rebuild indexes after ingesting")
	rootCmd.AddCommand(ingestCmd)
}
