package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartclaim/triage/internal/cli"
	"github.com/smartclaim/triage/internal/cli/admin"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "claimd",
		Short:   "Ticket retrieval and SLA prediction daemon",
		Long:    "claimd serves role-scoped ticket retrieval and SLA predictions, and runs index maintenance commands",
		Version: version,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.SyncCmd())
	rootCmd.AddCommand(admin.CollectionCmd())
	rootCmd.AddCommand(admin.SLACmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
