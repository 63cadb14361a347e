package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for entitlement workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("upgrade_advice").
		Description("Explain what the organization would gain from its next tier.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Upgrade Advice",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Help me decide whether to upgrade our occusafe subscription.

1. Read the occusafe://subscription resource for our current tier and suggested upgrade
2. Read the occusafe://catalog resource for what each tier grants

Then:
- List the features the suggested tier would unlock that we do not have today
- Describe in one sentence each how those features help an occupational health team
- If we are already on the highest tier, say so and stop

Only call billing.upgrade after I confirm.`,
						},
					},
				},
			}, nil
		})

	srv.Prompt("feature_access").
		Description("Find out why a feature is unavailable and which tier unlocks it.").
		Argument("feature", "Feature identifier, for example trend_analysis", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			feature := args["feature"]
			if feature == "" {
				feature = "[name the feature]"
			}

			return &mcp.PromptResult{
				Description: "Feature Access Check",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`Can our organization use the feature "%s"?

Call billing.check with feature set to "%s". If access is denied, report the
required tier from the result and what else that tier includes, using billing.catalog.`, feature, feature),
						},
					},
				},
			}, nil
		})

	return nil
}
