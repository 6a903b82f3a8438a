package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadsync/internal/ingest"
	"github.com/sells-group/leadsync/internal/sheet"
)

var (
	importCSVPath      string
	importSheetSource  string
	importManaged      bool
	importAssignRandom bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import leads from a local CSV file",
	Long:  "Parses the CSV through the same normalization pipeline as sync and upserts the leads in batches.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(importCSVPath)
		if err != nil {
			return eris.Wrapf(err, "read %s", importCSVPath)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		templates, err := sheet.LoadTemplates(cfg.Sheets.TemplatePath)
		if err != nil {
			return eris.Wrap(err, "load header templates")
		}

		im := ingest.NewImporter(st, cfg.Sync.BatchSize)
		report, err := im.ImportCSV(ctx, importSheetSource, string(data),
			templates.ForSheet(importSheetSource), ingest.ImportOptions{
				AssignToRandom: importAssignRandom,
				MarkAsManaged:  importManaged,
			})
		if err != nil {
			return eris.Wrap(err, "import")
		}

		fmt.Printf("processed: %d  errors: %d\n", report.RecordsProcessed, len(report.Errors))
		for _, e := range report.Errors {
			fmt.Fprintln(os.Stderr, "  "+e)
		}
		if !report.Success {
			return eris.New("import completed with errors")
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to the CSV file (required)")
	importCmd.Flags().StringVar(&importSheetSource, "sheet", "quick_import", "sheet source recorded on the imported leads")
	importCmd.Flags().BoolVar(&importManaged, "managed", false, "mark imported leads as managed")
	importCmd.Flags().BoolVar(&importAssignRandom, "assign-random", false, "distribute unassigned leads across known assignees")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
