package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"export", "snapshot"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "recon-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestExportCommand_Flags(t *testing.T) {
	for _, name := range []string{"from", "to", "baseline"} {
		require.NotNil(t, exportCmd.Flags().Lookup(name), "export should have --%s flag", name)
	}

	out := exportCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "ecom_recon.xlsx", out.DefValue)
}

func TestSnapshotCommand_Flags(t *testing.T) {
	for _, name := range []string{"from", "to", "baseline"} {
		require.NotNil(t, snapshotCmd.Flags().Lookup(name), "snapshot should have --%s flag", name)
	}
}

func TestPeriodYearMonth(t *testing.T) {
	year, month, err := periodYearMonth("2024-04-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 4, month)

	_, _, err = periodYearMonth("04/01/2024")
	require.Error(t, err)
}
