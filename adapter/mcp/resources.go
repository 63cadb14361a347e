package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterResources registers MCP resources that expose entitlement data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	if deps.Billing == nil {
		return fmt.Errorf("billing service is required")
	}
	tools := billingTools{deps: deps}

	srv.Resource("occusafe://catalog").
		Name("Tier Catalog").
		Description("Every subscription tier and the features it grants").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return jsonResource(uri, tools.catalog())
		})

	srv.Resource("occusafe://subscription").
		Name("Subscription").
		Description("The default organization's tier, status and unlocked features").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			view, err := tools.status(ctx, orgInput{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, view)
		})

	srv.Resource("occusafe://subscription/history").
		Name("Tier History").
		Description("Tier changes of the default organization").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			changes, err := tools.history(ctx, orgInput{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, changes)
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
