package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/rollout/internal/cli"
	"github.com/example/rollout/internal/version"
	"github.com/example/rollout/internal/wire"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "rollout",
		Short:   "rollout - municipal rollout registry and revenue reconciler",
		Version: version.String(),
		Long: `rollout tracks cities through PLANNING → EXPANSION → CONSOLIDATED,
keeps their monthly projected and realized figures, and reconciles realized
revenue from the transaction feed.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.DetectAndStoreActor(cmd)
		},
	}
	rootCmd.PersistentFlags().String("actor", "", "Operator recorded in audit entries (default $USER)")

	rootCmd.AddCommand(cli.CityCmd())
	rootCmd.AddCommand(cli.PlanCmd())
	rootCmd.AddCommand(cli.LedgerCmd())
	rootCmd.AddCommand(cli.ReconcileCmd())
	rootCmd.AddCommand(cli.GateCmd())

	// Data tools
	rootCmd.AddCommand(cli.SeedCmd())
	rootCmd.AddCommand(cli.TxCmd())

	err := rootCmd.Execute()
	wire.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
