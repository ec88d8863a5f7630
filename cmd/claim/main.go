package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartclaim/triage/internal/cli"
	"github.com/smartclaim/triage/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "claim",
		Short: "Query tickets and SLA predictions from a claimd server",
		Long: `claim talks to a running claimd server.

Environment variables:
  CLAIM_TOKEN     Signed access token (optional when the server has no JWT_SECRET)
  CLAIM_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("token", "", "Access token (overrides env and saved login)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and saved login)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.LoginCmd())
	rootCmd.AddCommand(client.LogoutCmd())
	rootCmd.AddCommand(client.QueryCmd())
	rootCmd.AddCommand(client.SLACmd())
	rootCmd.AddCommand(client.SyncCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
