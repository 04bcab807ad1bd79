package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/rollout/internal/db"
	"github.com/example/rollout/internal/wire"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample cities, plans and transactions",
	Long: `Load the sample Mato Grosso cities, their plans and a handful of
feed transactions. Existing rows are left as they are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.SeedFixtures(NewContext(), wire.Database()); err != nil {
			return fmt.Errorf("failed to seed fixtures: %w", err)
		}
		fmt.Println("✓ Seeded sample data")
		return nil
	},
}

// SeedCmd returns the seed command
func SeedCmd() *cobra.Command {
	return seedCmd
}
