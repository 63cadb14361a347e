package billing

import (
	"fmt"
	"strings"

	"github.com/occusafe/occusafe/adapter/cli"
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List tiers and the features they grant",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := domain.DefaultCatalog()
		if app := cli.GetApp(); app != nil && app.BillingService != nil {
			catalog = app.BillingService.Resolver().Catalog()
		}

		out := cmd.OutOrStdout()
		for _, tier := range domain.AllTiers() {
			info := tier.Info()
			fmt.Fprintf(out, "%s - %s\n", info.DisplayName, info.Tagline)
			features := catalog.FeaturesForTier(tier)
			names := make([]string, 0, len(features))
			for _, f := range features {
				names = append(names, f.String())
			}
			fmt.Fprintf(out, "  %s\n", strings.Join(names, ", "))
		}
		return nil
	},
}
