package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func CollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Inspect or rebuild the vector collection",
	}

	cmd.AddCommand(collectionStatsCmd())
	cmd.AddCommand(collectionRecreateCmd())

	return cmd
}

func collectionStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to read collection stats: %w", err)
			}
			return printResult(cmd, stats, func(w io.Writer) {
				fmt.Fprintf(w, "Collection: %s\nPoints:     %d\nDimension:  %d\nStatus:     %s\n",
					stats.Collection, stats.PointsCount, stats.Dimension, stats.Status)
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func collectionRecreateCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "recreate",
		Short: "Drop and recreate the collection",
		Long:  "Drop every indexed chunk and recreate an empty collection. Run 'sync full' afterwards.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop the collection without --yes")
			}
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Recreate(ctx); err != nil {
				return fmt.Errorf("failed to recreate collection: %w", err)
			}
			return printResult(cmd, map[string]any{"success": true, "collection": a.cfg.CollectionName}, func(w io.Writer) {
				fmt.Fprintf(w, "Collection %s recreated\n", a.cfg.CollectionName)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm dropping all indexed data")
	addOutputFlag(cmd)
	return cmd
}
