package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resetSheet string
	resetTo    int
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a sheet's sync watermark",
	Long:  "Resets the watermark so the next sync reprocesses rows. With --to, rewinds to a specific row number instead of zero.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if resetTo > 0 {
			meta, err := st.GetSyncMetadata(ctx, resetSheet)
			if err != nil {
				return eris.Wrapf(err, "reset %s", resetSheet)
			}
			meta.LastRowNumber = resetTo
			if err := st.UpsertSyncMetadata(ctx, meta); err != nil {
				return eris.Wrapf(err, "reset %s", resetSheet)
			}
		} else if err := st.ResetSyncMetadata(ctx, resetSheet); err != nil {
			return eris.Wrapf(err, "reset %s", resetSheet)
		}

		zap.L().Info("watermark reset",
			zap.String("sheet", resetSheet),
			zap.Int("to", resetTo),
		)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetSheet, "sheet", "", "sheet name to reset (required)")
	resetCmd.Flags().IntVar(&resetTo, "to", 0, "rewind the watermark to this row number")
	_ = resetCmd.MarkFlagRequired("sheet")
	rootCmd.AddCommand(resetCmd)
}
