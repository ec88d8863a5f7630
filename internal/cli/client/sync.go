package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// SyncCmd drives the server's admin ingestion routes. The token must carry
// the admin role when the server enforces auth.
func SyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger re-indexing on the server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "full",
		Short: "Start a background full sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCall(cmd, http.MethodPost, "/ingest/full", nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ticket <id>",
		Short: "Re-index one ticket and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCall(cmd, http.MethodPost, "/ingest/ticket", map[string]string{"ticket_id": args[0]})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a ticket's chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCall(cmd, http.MethodDelete, "/delete/ticket/"+args[0], nil)
		},
	})

	return cmd
}

func runAdminCall(cmd *cobra.Command, method, path string, body any) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := api.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(resp.Data))
	return nil
}
