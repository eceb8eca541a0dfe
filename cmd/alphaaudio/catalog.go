package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/alphaaudio/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [category]",
	Short: "Show the equipment catalogs",
	Long: `Without arguments, lists every category with its record count.
With a category (subwoofers, amplifiers, batteries, alternators, head_units,
processors), prints the records as a table.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalog,
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	cat, err := catalog.Load(cmd.Context(), cfg.Paths.DataDir, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 0 {
		fmt.Fprintln(w, "CATEGORY\tRECORDS\tREJECTED\tSTATUS")
		for _, c := range catalog.Categories {
			status := "ok"
			if cat.Missing(c) {
				status = "missing"
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c, cat.Len(c), cat.Rejected(c), status)
		}
		return nil
	}

	c, err := catalog.ParseCategory(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(w, strings.Join(catalog.Columns(c), "\t"))
	for _, item := range cat.Items(c) {
		fmt.Fprintln(w, strings.Join(item.Row(), "\t"))
	}
	return nil
}
