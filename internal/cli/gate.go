package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/rollout/internal/wire"
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Evaluate the lifecycle gate",
}

var gateCheckCmd = &cobra.Command{
	Use:   "check [city-id] [STATUS]",
	Short: "Report whether a city may advance to STATUS",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCityID(args[0])
		if err != nil {
			return err
		}
		_, err = wire.CityAdapter().GateCheck(NewContext(), id, args[1])
		return err
	},
}

func init() {
	gateCmd.AddCommand(gateCheckCmd)
}

// GateCmd returns the gate command
func GateCmd() *cobra.Command {
	return gateCmd
}
