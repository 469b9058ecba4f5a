package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fabgroup/recon-cli/internal/recon"
)

var snapshotFlags pipelineFlags

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run the reconciliation in memory and print the computed snapshot",
	Long:  "Runs the same pipeline as export but skips the report workbook: the per-key values and totals are computed in memory and printed as JSON. Useful for validating a period before exporting.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := buildSources(cmd.Context(), snapshotFlags)
		if err != nil {
			return err
		}

		snap := recon.Build(sources)
		zap.L().Info("snapshot computed",
			zap.Int("reconciled_keys", len(snap.Rows)),
			zap.String("delta", snap.Totals.Delta.String()),
		)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	addPipelineFlags(snapshotCmd, &snapshotFlags)
	rootCmd.AddCommand(snapshotCmd)
}
