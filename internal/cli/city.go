package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/rollout/internal/wire"
)

var cityCmd = &cobra.Command{
	Use:   "city",
	Short: "Manage cities in the rollout registry",
	Long:  "List, inspect and advance cities through PLANNING → EXPANSION → CONSOLIDATED",
}

var cityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cities",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		return wire.CityAdapter().List(NewContext(), status)
	},
}

var cityShowCmd = &cobra.Command{
	Use:   "show [city-id]",
	Short: "Show city details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCityID(args[0])
		if err != nil {
			return err
		}
		_, err = wire.CityAdapter().Show(NewContext(), id)
		return err
	},
}

var cityFindCmd = &cobra.Command{
	Use:   "find [query]",
	Short: "Find cities by name (substring unless --exact)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exact, _ := cmd.Flags().GetBool("exact")
		return wire.CityAdapter().Find(NewContext(), args[0], exact)
	},
}

var cityAdvanceCmd = &cobra.Command{
	Use:   "advance [city-id] [STATUS]",
	Short: "Advance a city one step (gated unless --skip-gate)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCityID(args[0])
		if err != nil {
			return err
		}
		skipGate, _ := cmd.Flags().GetBool("skip-gate")
		return wire.CityAdapter().Advance(NewContext(), id, args[1], skipGate)
	},
}

var cityBatchAdvanceCmd = &cobra.Command{
	Use:   "batch-advance [STATUS] [name...]",
	Short: "Advance every named city to STATUS",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.CityAdapter().BatchAdvance(NewContext(), args[0], args[1:])
	},
}

var cityForceConsolidateCmd = &cobra.Command{
	Use:   "force-consolidate [name...]",
	Short: "Consolidate cities without adjacency or gate checks (audited)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return wire.CityAdapter().ForceConsolidate(NewContext(), reason, args)
	},
}

var cityDemographicsCmd = &cobra.Command{
	Use:   "demographics [city-id]",
	Short: "Set a city's population figures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCityID(args[0])
		if err != nil {
			return err
		}
		population, _ := cmd.Flags().GetInt64("population")
		workingAge, _ := cmd.Flags().GetInt64("working-age")
		return wire.CityAdapter().Demographics(NewContext(), id, population, workingAge)
	},
}

func init() {
	cityListCmd.Flags().StringP("status", "s", "", "Filter by status (PLANNING, EXPANSION, CONSOLIDATED)")
	cityFindCmd.Flags().Bool("exact", false, "Match the full name exactly")
	cityAdvanceCmd.Flags().Bool("skip-gate", false, "Advance without evaluating the lifecycle gate")
	cityForceConsolidateCmd.Flags().StringP("reason", "r", "", "Reason recorded in the audit log (required)")
	_ = cityForceConsolidateCmd.MarkFlagRequired("reason")
	cityDemographicsCmd.Flags().Int64("population", 0, "Total population")
	cityDemographicsCmd.Flags().Int64("working-age", 0, "Working-age population")
	_ = cityDemographicsCmd.MarkFlagRequired("population")
	_ = cityDemographicsCmd.MarkFlagRequired("working-age")

	// Register subcommands
	cityCmd.AddCommand(cityListCmd)
	cityCmd.AddCommand(cityShowCmd)
	cityCmd.AddCommand(cityFindCmd)
	cityCmd.AddCommand(cityAdvanceCmd)
	cityCmd.AddCommand(cityBatchAdvanceCmd)
	cityCmd.AddCommand(cityForceConsolidateCmd)
	cityCmd.AddCommand(cityDemographicsCmd)
}

// CityCmd returns the city command
func CityCmd() *cobra.Command {
	return cityCmd
}
