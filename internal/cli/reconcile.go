package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/rollout/internal/wire"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile realized revenue from the transaction feed",
	Long: `Resolve each city's monthly revenue from top-up transactions, falling
back to the configured estimate when a city has none, and store the result.`,
}

var reconcileMonthCmd = &cobra.Command{
	Use:   "month [YYYY-MM] [city-id...]",
	Short: "Reconcile one month for the given cities",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseCityIDs(args[1:])
		if err != nil {
			return err
		}
		return wire.ReconcileAdapter().Month(NewContext(), args[0], ids)
	},
}

var reconcileRangeCmd = &cobra.Command{
	Use:   "range [from] [to] [city-id...]",
	Short: "Reconcile a month range and print per-month totals",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseCityIDs(args[2:])
		if err != nil {
			return err
		}
		return wire.ReconcileAdapter().Range(NewContext(), args[0], args[1], ids)
	},
}

func init() {
	reconcileCmd.AddCommand(reconcileMonthCmd)
	reconcileCmd.AddCommand(reconcileRangeCmd)
}

// ReconcileCmd returns the reconcile command
func ReconcileCmd() *cobra.Command {
	return reconcileCmd
}
