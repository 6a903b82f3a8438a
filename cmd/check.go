package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Count new sheet rows without syncing",
	Long:  "Downloads each sheet and counts rows past its watermark. Nothing is written.",
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

		report, err := engine.CheckNew(ctx)
		if err != nil {
			return eris.Wrap(err, "check")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SHEET\tNEW ROWS\tWATERMARK")
		_, _ = fmt.Fprintln(w, "-----\t--------\t---------")
		for _, s := range report.Sheets {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", s.Sheet, s.NewRows, s.Watermark)
		}
		_ = w.Flush()
		fmt.Printf("\ntotal new rows: %d\n", report.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
