package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/alphaaudio/internal/agent"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send the canary request to every candidate model",
	Long: `Probes each model in the candidate list with a throwaway request and
reports which ones answer. The serve command uses the first working model in
this order.`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	selector, err := newSelector(ctx, cfg, logger)
	if err != nil {
		return err
	}

	results := selector.ProbeAll(ctx)
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSTATUS\tLATENCY\tERROR")

	working := 0
	for _, r := range results {
		status := "fail"
		errText := ""
		if r.OK {
			status = "ok"
			working++
		} else if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Model, status, r.Duration.Round(time.Millisecond), errText)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if working == 0 {
		return agent.ErrNoEndpoint
	}
	fmt.Fprintf(out, "\n%d of %d models available\n", working, len(results))
	return nil
}
