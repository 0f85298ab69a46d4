// ABOUTME: The fixed advertising tool catalogue and its handlers.
// ABOUTME: Every handler is one outbound API request; results pass through.

package adsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adforge/ads-gateway/internal/catalog"
)

// Tools returns the full advertising tool set for catalogue registration.
func (c *Client) Tools() []*catalog.Tool {
	return []*catalog.Tool{
		{
			Definition: catalog.Definition{
				Name:        "list_ad_accounts",
				Description: "List the ad accounts accessible with the current credentials",
				InputSchema: &catalog.Schema{
					Type:       "object",
					Properties: map[string]*catalog.Schema{},
				},
			},
			Handler: c.ListAdAccounts,
		},
		{
			Definition: catalog.Definition{
				Name:        "list_campaigns",
				Description: "List campaigns in an ad account, optionally filtered by status",
				InputSchema: &catalog.Schema{
					Type: "object",
					Properties: map[string]*catalog.Schema{
						"account_id": {Type: "string", Description: "Ad account identifier"},
						"status":     {Type: "string", Enum: []string{"ACTIVE", "PAUSED", "DELETED", "ARCHIVED"}},
						"limit":      {Type: "integer", Description: "Maximum number of campaigns to return"},
					},
					Required: []string{"account_id"},
				},
			},
			Handler: c.ListCampaigns,
		},
		{
			Definition: catalog.Definition{
				Name:        "get_campaign",
				Description: "Fetch a single campaign with its core fields",
				InputSchema: &catalog.Schema{
					Type: "object",
					Properties: map[string]*catalog.Schema{
						"campaign_id": {Type: "string", Description: "Campaign identifier"},
					},
					Required: []string{"campaign_id"},
				},
			},
			Handler: c.GetCampaign,
		},
		{
			Definition: catalog.Definition{
				Name:        "list_ad_sets",
				Description: "List ad sets belonging to a campaign",
				InputSchema: &catalog.Schema{
					Type: "object",
					Properties: map[string]*catalog.Schema{
						"campaign_id": {Type: "string", Description: "Campaign identifier"},
						"limit":       {Type: "integer"},
					},
					Required: []string{"campaign_id"},
				},
			},
			Handler: c.ListAdSets,
		},
		{
			Definition: catalog.Definition{
				Name:        "list_ads",
				Description: "List ads belonging to an ad set",
				InputSchema: &catalog.Schema{
					Type: "object",
					Properties: map[string]*catalog.Schema{
						"ad_set_id": {Type: "string", Description: "Ad set identifier"},
						"limit":     {Type: "integer"},
					},
					Required: []string{"ad_set_id"},
				},
			},
			Handler: c.ListAds,
		},
		{
			Definition: catalog.Definition{
				Name:        "get_insights",
				Description: "Fetch performance insights for an account, campaign, ad set, or ad over a date range",
				InputSchema: &catalog.Schema{
					Type: "object",
					Properties: map[string]*catalog.Schema{
						"object_id": {Type: "string", Description: "Identifier of the object to report on"},
						"date_range": {
							Type: "object",
							Properties: map[string]*catalog.Schema{
								"since": {Type: "string", Format: "date"},
								"until": {Type: "string", Format: "date"},
							},
							Required: []string{"since", "until"},
						},
						"metrics": {
							Type:  "array",
							Items: &catalog.Schema{Type: "string"},
						},
						"level": {Type: "string", Enum: []string{"account", "campaign", "adset", "ad"}},
					},
					Required: []string{"object_id", "date_range"},
				},
			},
			Handler: c.GetInsights,
		},
	}
}

// ListAdAccounts returns the ad accounts visible to the token.
func (c *Client) ListAdAccounts(ctx context.Context, _ map[string]any, token string) (any, error) {
	return c.get(ctx, "/me/adaccounts", token, map[string]string{
		"fields": "id,account_id,name,account_status,currency",
	})
}

// ListCampaigns returns campaigns in an account.
func (c *Client) ListCampaigns(ctx context.Context, args map[string]any, token string) (any, error) {
	accountID, _ := args["account_id"].(string)
	query := map[string]string{
		"fields": "id,name,status,objective,created_time",
		"limit":  intArg(args, "limit"),
	}
	if status, _ := args["status"].(string); status != "" {
		filter, err := json.Marshal([]map[string]any{
			{"field": "effective_status", "operator": "IN", "value": []string{status}},
		})
		if err != nil {
			return nil, fmt.Errorf("encoding status filter: %w", err)
		}
		query["filtering"] = string(filter)
	}
	return c.get(ctx, "/"+accountPath(accountID)+"/campaigns", token, query)
}

// GetCampaign returns one campaign.
func (c *Client) GetCampaign(ctx context.Context, args map[string]any, token string) (any, error) {
	campaignID, _ := args["campaign_id"].(string)
	return c.get(ctx, "/"+campaignID, token, map[string]string{
		"fields": "id,name,status,objective,daily_budget,lifetime_budget,created_time,updated_time",
	})
}

// ListAdSets returns ad sets in a campaign.
func (c *Client) ListAdSets(ctx context.Context, args map[string]any, token string) (any, error) {
	campaignID, _ := args["campaign_id"].(string)
	return c.get(ctx, "/"+campaignID+"/adsets", token, map[string]string{
		"fields": "id,name,status,daily_budget,targeting,optimization_goal",
		"limit":  intArg(args, "limit"),
	})
}

// ListAds returns ads in an ad set.
func (c *Client) ListAds(ctx context.Context, args map[string]any, token string) (any, error) {
	adSetID, _ := args["ad_set_id"].(string)
	return c.get(ctx, "/"+adSetID+"/ads", token, map[string]string{
		"fields": "id,name,status,creative,created_time",
		"limit":  intArg(args, "limit"),
	})
}

// GetInsights returns performance metrics for an object over a date range.
func (c *Client) GetInsights(ctx context.Context, args map[string]any, token string) (any, error) {
	objectID, _ := args["object_id"].(string)

	query := map[string]string{}
	if dr, ok := args["date_range"].(map[string]any); ok {
		since, _ := dr["since"].(string)
		until, _ := dr["until"].(string)
		timeRange, err := json.Marshal(map[string]string{"since": since, "until": until})
		if err != nil {
			return nil, fmt.Errorf("encoding time range: %w", err)
		}
		query["time_range"] = string(timeRange)
	}
	if metrics, ok := args["metrics"].([]any); ok && len(metrics) > 0 {
		fields := make([]string, 0, len(metrics))
		for _, m := range metrics {
			if s, ok := m.(string); ok {
				fields = append(fields, s)
			}
		}
		query["fields"] = strings.Join(fields, ",")
	}
	if level, _ := args["level"].(string); level != "" {
		query["level"] = level
	}

	return c.get(ctx, "/"+objectID+"/insights", token, query)
}

// accountPath normalizes an account id to the API's act_ prefix form.
func accountPath(accountID string) string {
	if strings.HasPrefix(accountID, "act_") {
		return accountID
	}
	return "act_" + accountID
}

// intArg renders an integer argument as a query value, empty when absent.
func intArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case float64:
		return fmt.Sprintf("%d", int(v))
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}
