// ABOUTME: The shared invocation pipeline every transport funnels into.
// ABOUTME: Catalogue lookup, credential resolution, dispatch, metrics.

package gateway

import (
	"context"
	"time"

	"github.com/adforge/ads-gateway/internal/call"
)

// Invoke runs one canonical call through the pipeline. All three
// transports converge here, so behavior differences between conventions
// are confined to their adapters.
func (g *Gateway) Invoke(ctx context.Context, c call.Call) call.Result {
	start := time.Now()
	res := g.invoke(ctx, c)

	outcome := "success"
	if res.Err != nil {
		outcome = string(res.Err.Code)
	}
	g.metrics.ToolCallsTotal.WithLabelValues(c.Tool, outcome).Inc()
	g.metrics.ToolCallDuration.WithLabelValues(c.Tool).Observe(time.Since(start).Seconds())

	return res
}

func (g *Gateway) invoke(ctx context.Context, c call.Call) call.Result {
	tool := g.catalog.Get(c.Tool)
	if tool == nil {
		return call.Failure(call.Errorf(call.CodeUnknownTool, "unknown tool %q", c.Tool))
	}

	// Reflective tools answer from the gateway's own state and never
	// touch the upstream API, so they dispatch without a credential.
	if tool.SkipCredentials {
		return g.dispatcher.Dispatch(ctx, c, "")
	}

	rec, err := g.resolver.Resolve(ctx, c)
	if err != nil {
		ce := call.AsError(err)
		g.metrics.ResolutionsTotal.WithLabelValues("none", string(ce.Code)).Inc()
		if ce.Code == call.CodeUserResponseTimeout {
			g.metrics.PromptWaitsTotal.WithLabelValues("timeout").Inc()
		}
		g.logger.Info("credential resolution failed",
			"tool_name", c.Tool,
			"session_id", c.SessionID,
			"code", ce.Code,
		)
		return call.Failure(ce)
	}
	g.metrics.ResolutionsTotal.WithLabelValues(string(rec.SourceTier), "success").Inc()

	return g.dispatcher.Dispatch(ctx, c, rec.Token)
}
