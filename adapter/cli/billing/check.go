package billing

import (
	"errors"
	"fmt"

	"github.com/occusafe/occusafe/adapter/cli"
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/spf13/cobra"
)

var (
	checkFeature string
	checkTier    string
	checkStrict  bool
)

// errAccessDenied makes --strict exit non-zero on a denied gate.
var errAccessDenied = errors.New("access denied")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a feature or tier gate",
	Long: `Check whether the organization may use a feature (--feature) or a
surface gated on a minimum tier (--tier). When both are given the feature decides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var req domain.GateRequest
		if checkFeature != "" {
			f, err := domain.ParseFeatureKey(checkFeature)
			if err != nil {
				return err
			}
			req.Feature = &f
		}
		if checkTier != "" {
			t, err := domain.ParseTier(checkTier)
			if err != nil {
				return err
			}
			req.RequiredTier = &t
		}

		app, orgID, err := cli.Billing()
		if err != nil {
			return err
		}

		decision, err := app.BillingService.CheckAccess(cmd.Context(), orgID, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if decision.HasAccess {
			fmt.Fprintln(out, "Access granted.")
			return nil
		}
		if decision.RequiredTier != nil {
			fmt.Fprintf(out, "Access denied. Requires %s.\n", tierLabel(*decision.RequiredTier))
		} else {
			fmt.Fprintln(out, "Access denied.")
		}
		if checkStrict {
			return errAccessDenied
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkFeature, "feature", "", "feature identifier, e.g. trend_analysis")
	checkCmd.Flags().StringVar(&checkTier, "tier", "", "minimum tier: basic, premium or enterprise")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "exit non-zero when access is denied")
}
