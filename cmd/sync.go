package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/config"
)

var (
	syncFull   bool
	syncSheets []string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile sheet rows into the lead store",
	Long:  "Downloads each configured sheet's CSV export and upserts new or changed rows. Incremental by default; --full reprocesses every row.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		engine, err := buildEngine(st)
		if err != nil {
			return err
		}

		var refs []config.SheetRef
		for _, name := range syncSheets {
			refs = append(refs, config.SheetRef{Name: name})
		}
		report := engine.SyncSheets(ctx, refs, syncFull)

		fmt.Printf("processed: %d  added: %d  updated: %d  errors: %d\n",
			report.RecordsProcessed, report.RecordsAdded, report.RecordsUpdated, len(report.Errors))
		for _, e := range report.Errors {
			fmt.Fprintln(os.Stderr, "  "+e)
		}

		if !report.Success {
			return eris.New("sync completed with errors")
		}
		zap.L().Info("sync complete",
			zap.Int("processed", report.RecordsProcessed),
			zap.Int("added", report.RecordsAdded),
			zap.Int("updated", report.RecordsUpdated),
		)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "reprocess every row regardless of the watermark")
	syncCmd.Flags().StringSliceVar(&syncSheets, "sheets", nil, "sync only the named sheets")
	rootCmd.AddCommand(syncCmd)
}
