package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fabgroup/recon-cli/internal/recon"
	"github.com/fabgroup/recon-cli/internal/workbook"
)

var (
	exportFlags pipelineFlags
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run the full reconciliation and write the report workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		year, month, err := periodYearMonth(exportFlags.from)
		if err != nil {
			return err
		}

		sources, err := buildSources(ctx, exportFlags)
		if err != nil {
			return err
		}

		snap := recon.Build(sources)

		if err := workbook.WriteReport(exportOut, sources, snap, year, month); err != nil {
			return eris.Wrap(err, "write report")
		}

		zap.L().Info("report written",
			zap.String("path", exportOut),
			zap.Int("reconciled_keys", len(snap.Rows)),
			zap.String("delta", snap.Totals.Delta.String()),
		)
		return nil
	},
}

func init() {
	addPipelineFlags(exportCmd, &exportFlags)
	exportCmd.Flags().StringVar(&exportOut, "out", "ecom_recon.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
