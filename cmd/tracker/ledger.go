package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-tracker-service/internal/ledger"
)

func newLedgerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the processing ledger",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Count ledger rows per status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withLedger(cmd.Context(), func(ctx context.Context, store ledger.Store) error {
					stats, err := store.Stats(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), stats)
				})
			},
		},
		&cobra.Command{
			Use:   "show <paper-id>",
			Short: "Show the ledger row of one paper",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withLedger(cmd.Context(), func(ctx context.Context, store ledger.Store) error {
					entry, err := store.Entry(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), entry)
				})
			},
		},
		&cobra.Command{
			Use:   "reset <paper-id>...",
			Short: "Forget papers so the next cycle processes them again",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withLedger(cmd.Context(), func(ctx context.Context, store ledger.Store) error {
					for _, id := range args {
						existed, err := store.Reset(ctx, id)
						if err != nil {
							return fmt.Errorf("reset %s: %w", id, err)
						}
						if existed {
							fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", id)
						} else {
							fmt.Fprintf(cmd.OutOrStdout(), "%s not in ledger\n", id)
						}
					}
					return nil
				})
			},
		},
	)
	return cmd
}

// withLedger opens the configured ledger for the duration of fn.
func (c *cli) withLedger(ctx context.Context, fn func(context.Context, ledger.Store) error) error {
	store, err := ledger.Open(ctx, c.cfg.Ledger, c.cfg.Database, c.logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
