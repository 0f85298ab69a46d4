// ABOUTME: Routes canonical calls to the matching tool handler.
// ABOUTME: Validates argument shape and bounds handler execution time.

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/catalog"
)

// DefaultTimeout bounds a single handler invocation.
const DefaultTimeout = 30 * time.Second

// Dispatcher routes a canonical call to its handler and shapes the outcome
// into a canonical result.
type Dispatcher struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
	timeout time.Duration
}

// Config holds dispatcher construction options.
type Config struct {
	Catalog *catalog.Catalog
	Logger  *slog.Logger
	Timeout time.Duration
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		catalog: cfg.Catalog,
		logger:  logger,
		timeout: timeout,
	}, nil
}

// Dispatch validates the call's arguments against the tool's schema and
// invokes the handler with the resolved token. Handler failures pass
// through verbatim; they are never translated or swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, c call.Call, token string) call.Result {
	tool := d.catalog.Get(c.Tool)
	if tool == nil {
		d.logger.Debug("tool not found in catalogue", "tool_name", c.Tool)
		return call.Failure(call.Errorf(call.CodeUnknownTool, "unknown tool %q", c.Tool))
	}

	if err := validateArgs(tool.Definition.InputSchema, c.Args); err != nil {
		var fe *FieldError
		if errors.As(err, &fe) {
			d.logger.Debug("argument validation failed",
				"tool_name", c.Tool,
				"field", fe.Field,
			)
		}
		return call.Failure(call.NewError(call.CodeInvalidArguments, err.Error()))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	payload, err := tool.Handler(ctx, c.Args, token)
	if err != nil {
		d.logger.Warn("tool handler failed",
			"tool_name", c.Tool,
			"duration", time.Since(start),
			"error", err,
		)
		return call.Failure(call.NewError(call.CodeToolExecutionFailed, err.Error()))
	}

	d.logger.Debug("tool handler completed",
		"tool_name", c.Tool,
		"duration", time.Since(start),
	)
	return call.Success(payload)
}
