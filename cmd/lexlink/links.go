package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Manage statute-to-case interpretation links",
}

var linksExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Mine links from stored case paragraphs",
	Long: `Extract scans every stored judgment paragraph for statutory citations
paired with interpretation language, filters the candidates through the
quality gate, and stores the survivors as unverified links.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		rep, err := eng.ExtractLinks(cmd.Context(), nil)
		if err != nil {
			return err
		}
		fmt.Printf("scanned %d cases (%d paragraphs) in %.1fms\n",
			rep.CasesScanned, rep.ParagraphsScanned, rep.ElapsedMs)
		fmt.Printf("extracted %d, passed quality %d, upserted %d, unresolved %d\n",
			rep.Extracted, rep.Passed, rep.Upserted, rep.Skipped)
		for _, w := range rep.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

var linksLoadCmd = &cobra.Command{
	Use:   "load [sheet.xlsx]",
	Short: "Import a curated link spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		rep, err := eng.LoadLinkSheet(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("loaded %d rows, upserted %d\n", rep.Loaded, rep.Upserted)
		for _, w := range rep.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

var linksVerifyBy string

var linksVerifyCmd = &cobra.Command{
	Use:   "verify [link-id]",
	Short: "Mark a link as human-verified",
	Long: `Verify records a reviewer's sign-off on one link. Only verified links
boost retrieval, so extraction output stays inert until reviewed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.Store().VerifyLink(cmd.Context(), args[0], linksVerifyBy); err != nil {
			return err
		}
		fmt.Printf("link %s verified by %s\n", args[0], linksVerifyBy)
		return nil
	},
}

func init() {
	linksVerifyCmd.Flags().StringVar(&linksVerifyBy, "by", "", "reviewer name")
	_ = linksVerifyCmd.MarkFlagRequired("by")

	linksCmd.AddCommand(linksExtractCmd, linksLoadCmd, linksVerifyCmd)
	rootCmd.AddCommand(linksCmd)
}
