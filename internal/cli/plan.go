package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/rollout/internal/wire"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage city phase plans",
}

var planSetCmd = &cobra.Command{
	Use:   "set [city-id]",
	Short: "Create or replace a city's plan",
	Long: `Create or replace a city's plan. Phases are given in order as
"Name:task1,task2"; repeat --phase for each phase.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCityID(args[0])
		if err != nil {
			return err
		}
		start, _ := cmd.Flags().GetString("start")
		phases, _ := cmd.Flags().GetStringArray("phase")
		return wire.LedgerAdapter().SetPlan(NewContext(), id, start, phases)
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show [city-id]",
	Short: "Show a city's plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCityID(args[0])
		if err != nil {
			return err
		}
		return wire.LedgerAdapter().ShowPlan(NewContext(), id)
	},
}

func init() {
	planSetCmd.Flags().String("start", "", "Plan start date (YYYY-MM-DD)")
	planSetCmd.Flags().StringArray("phase", nil, `Phase as "Name:task1,task2" (repeatable)`)
	_ = planSetCmd.MarkFlagRequired("start")

	planCmd.AddCommand(planSetCmd)
	planCmd.AddCommand(planShowCmd)
}

// PlanCmd returns the plan command
func PlanCmd() *cobra.Command {
	return planCmd
}
