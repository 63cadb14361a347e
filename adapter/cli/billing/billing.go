package billing

import (
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/spf13/cobra"
)

// Cmd is the billing command group.
var Cmd = &cobra.Command{
	Use:   "billing",
	Short: "Inspect tiers and feature gates",
	Long:  `Inspect an organization's subscription tier, check feature gates and upgrade tiers.`,
}

func init() {
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(featuresCmd)
	Cmd.AddCommand(checkCmd)
	Cmd.AddCommand(upgradeCmd)
	Cmd.AddCommand(historyCmd)
	Cmd.AddCommand(catalogCmd)
}

func tierLabel(t domain.Tier) string {
	return t.Info().DisplayName
}
