package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/alphaaudio/internal/export"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List exported build reports",
	Long: `Lists the report keys in the configured export store, sorted by key.
Nothing is listed when export.backend is "none".`,
	Args: cobra.NoArgs,
	RunE: runReports,
}

func runReports(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	exporter, err := newExporter(cfg, logger)
	if err != nil {
		return err
	}
	return listReports(cmd.Context(), cmd.OutOrStdout(), exporter)
}

func listReports(ctx context.Context, out io.Writer, exporter *export.Exporter) error {
	keys, err := exporter.History(ctx)
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "no reports exported yet")
		return nil
	}
	for _, key := range keys {
		fmt.Fprintln(out, key)
	}
	fmt.Fprintf(out, "\n%d reports\n", len(keys))
	return nil
}
