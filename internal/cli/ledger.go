package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/rollout/internal/wire"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Record and inspect monthly projected/realized figures",
}

var ledgerRecordCmd = &cobra.Command{
	Use:   "record [city-id] [YYYY-MM]",
	Short: "Merge-write one month (other months are untouched)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCityID(args[0])
		if err != nil {
			return err
		}
		projected, _ := cmd.Flags().GetString("projected")
		realized, _ := cmd.Flags().GetString("realized")
		if projected == "" && realized == "" {
			return fmt.Errorf("must specify at least --projected or --realized")
		}
		return wire.LedgerAdapter().Record(NewContext(), id, args[1], projected, realized)
	},
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show [city-id]",
	Short: "Show a city's monthly series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCityID(args[0])
		if err != nil {
			return err
		}
		month, _ := cmd.Flags().GetString("month")
		return wire.LedgerAdapter().Show(NewContext(), id, month)
	},
}

func init() {
	ledgerRecordCmd.Flags().String("projected", "", "Projected amount")
	ledgerRecordCmd.Flags().String("realized", "", "Realized amount (recorded as manual)")
	ledgerShowCmd.Flags().String("month", "", "Show a single month (YYYY-MM)")

	ledgerCmd.AddCommand(ledgerRecordCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
}

// LedgerCmd returns the ledger command
func LedgerCmd() *cobra.Command {
	return ledgerCmd
}
