package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func SyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize tickets into the vector index",
		Long:  "Run a full sync, re-index one ticket, or remove a ticket's chunks",
	}

	cmd.AddCommand(syncFullCmd())
	cmd.AddCommand(syncTicketCmd())
	cmd.AddCommand(syncDeleteCmd())

	return cmd
}

func syncFullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "full",
		Short: "Index every ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.EnsureCollection(ctx); err != nil {
				return fmt.Errorf("failed to ensure collection: %w", err)
			}
			stats, err := a.pipeline.FullSync(ctx)
			if err != nil {
				return fmt.Errorf("full sync failed: %w", err)
			}
			return printResult(cmd, stats, func(w io.Writer) {
				fmt.Fprintf(w, "Synced %d tickets into %d chunks in %.1fs (%d errors)\n",
					stats.TotalTickets, stats.TotalChunks, stats.DurationSeconds, stats.Errors)
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func syncTicketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket <id>",
		Short: "Re-index a single ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.EnsureCollection(ctx); err != nil {
				return fmt.Errorf("failed to ensure collection: %w", err)
			}
			result, err := a.pipeline.SyncTicket(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to sync ticket %s: %w", args[0], err)
			}
			return printResult(cmd, result, func(w io.Writer) {
				if result.NotFound {
					fmt.Fprintf(w, "Ticket %s not found; its chunks were removed\n", result.TicketID)
					return
				}
				fmt.Fprintf(w, "Ticket %s indexed as %d chunks\n", result.TicketID, result.ChunksCreated)
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func syncDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a ticket's chunks from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.pipeline.DeleteRecord(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete ticket %s: %w", args[0], err)
			}
			return printResult(cmd, map[string]any{"ticket_id": args[0], "deleted": deleted}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted chunks for ticket %s\n", args[0])
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}
