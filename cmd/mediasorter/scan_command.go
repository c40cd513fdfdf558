package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pokerjest/mediasorter/internal/service"
	"github.com/spf13/cobra"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Process every pending file in the source directories once",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.engine()
			if err != nil {
				return err
			}
			if err := eng.settings.Validate(); err != nil {
				return err
			}

			results := eng.organizer.Scan(cmd.Context())
			eng.drainHooks(ctx.logger)
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "Nothing to do")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			counts := map[service.Outcome]int{}
			for _, r := range results {
				counts[r.Outcome]++
				target := r.Destination
				if r.Err != nil {
					target = r.Err.Error()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Outcome, r.Source, target)
			}
			tw.Flush()
			fmt.Fprintf(out, "\n%d files: %d organized, %d quarantined, %d deferred, %d failed, %d skipped\n",
				len(results), counts[service.OutcomeOrganized], counts[service.OutcomeQuarantined],
				counts[service.OutcomeDeferred], counts[service.OutcomeFailed], counts[service.OutcomeSkipped])
			return nil
		},
	}
}
