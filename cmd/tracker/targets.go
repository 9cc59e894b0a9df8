package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-tracker-service/internal/targets"
)

func newTargetsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the configured target papers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := targets.Load(c.cfg.Tracker.TargetsFile)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tALIAS")
			for _, t := range list {
				fmt.Fprintf(tw, "%s\t%s\n", t.ID, t.Alias)
			}
			return tw.Flush()
		},
	}
}
