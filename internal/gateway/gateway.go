// ABOUTME: Gateway composition root binding transports, adapters, credential
// ABOUTME: resolution, and the tool dispatcher into one HTTP server.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adforge/ads-gateway/internal/adsapi"
	"github.com/adforge/ads-gateway/internal/auth"
	"github.com/adforge/ads-gateway/internal/catalog"
	"github.com/adforge/ads-gateway/internal/config"
	"github.com/adforge/ads-gateway/internal/creds"
	"github.com/adforge/ads-gateway/internal/dispatch"
	"github.com/adforge/ads-gateway/internal/metrics"
	"github.com/adforge/ads-gateway/internal/protocol"
	"github.com/adforge/ads-gateway/internal/protocol/mcp"
	"github.com/adforge/ads-gateway/internal/protocol/openai"
	"github.com/adforge/ads-gateway/internal/protocol/rest"
	"github.com/adforge/ads-gateway/internal/session"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// Gateway owns every component of the request path. All mutable shared
// state (session registry, credential cache, prompt waits) is injected
// here at construction, never ambient.
type Gateway struct {
	config     *config.Config
	logger     *slog.Logger
	catalog    *catalog.Catalog
	dispatcher *dispatch.Dispatcher
	resolver   *creds.Resolver
	registry   *session.Registry
	credsvc    *creds.ServiceClient
	broker     *creds.PromptBroker
	hub        *mcp.Hub
	metrics    *metrics.Metrics
	verifier   *auth.JWTVerifier
	httpServer *http.Server
	version    string

	// adapters maps transport identifiers to their wire adapters.
	adapters map[string]protocol.Adapter
}

// Option adjusts gateway construction; tests inject fakes through these.
type Option func(*options)

type options struct {
	credService creds.Service
	version     string
}

// WithCredentialService substitutes the credential service dependency.
func WithCredentialService(svc creds.Service) Option {
	return func(o *options) { o.credService = svc }
}

// WithVersion sets the version string reported in the MCP handshake.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// New assembles a gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.version == "" {
		o.version = "dev"
	}

	g := &Gateway{
		config:   cfg,
		logger:   logger,
		metrics:  metrics.New(),
		broker:   creds.NewPromptBroker(logger.With("component", "prompt-broker")),
		hub:      mcp.NewHub(logger.With("component", "sse-hub")),
		version:  o.version,
		adapters: make(map[string]protocol.Adapter),
	}

	if err := g.initCatalog(); err != nil {
		return nil, err
	}
	if err := g.initSessions(); err != nil {
		return nil, err
	}
	if err := g.initCredentials(o.credService); err != nil {
		return nil, err
	}
	if err := g.initDispatcher(); err != nil {
		return nil, err
	}
	if err := g.initAuth(); err != nil {
		return nil, err
	}

	router, err := g.buildRouter()
	if err != nil {
		return nil, err
	}

	g.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}
	return g, nil
}

// initCatalog loads the fixed tool catalogue: the advertising tools plus
// the reflective listing tool, which dispatches without credentials.
func (g *Gateway) initCatalog() error {
	g.catalog = catalog.New(g.logger.With("component", "catalog"))

	adsClient, err := adsapi.NewClient(adsapi.Config{
		BaseURL:    g.config.Ads.BaseURL,
		APIVersion: g.config.Ads.APIVersion,
		Logger:     g.logger.With("component", "ads-api"),
	})
	if err != nil {
		return fmt.Errorf("creating ads client: %w", err)
	}

	if err := g.catalog.RegisterAll(adsClient.Tools()); err != nil {
		return fmt.Errorf("registering ads tools: %w", err)
	}

	reflective := &catalog.Tool{
		Definition: catalog.Definition{
			Name:        "get_available_tools",
			Description: "List the names of every tool this gateway exposes",
			InputSchema: &catalog.Schema{Type: "object", Properties: map[string]*catalog.Schema{}},
		},
		SkipCredentials: true,
		Handler: func(_ context.Context, _ map[string]any, _ string) (any, error) {
			return map[string]any{"tools": g.catalog.Names()}, nil
		},
	}
	if err := g.catalog.Register(reflective); err != nil {
		return fmt.Errorf("registering reflective tool: %w", err)
	}

	g.logger.Info("tool catalogue loaded", "tool_count", g.catalog.Len())
	return nil
}

// initSessions builds the session registry on the configured store.
func (g *Gateway) initSessions() error {
	var store session.Store
	switch g.config.Sessions.Store {
	case "", "memory":
		store = session.NewMemoryStore()
	case "sqlite":
		s, err := session.NewSQLiteStore(g.config.Sessions.Path)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		store = s
	default:
		return fmt.Errorf("unknown session store %q", g.config.Sessions.Store)
	}

	registry, err := session.NewRegistry(session.RegistryConfig{
		Store:  store,
		TTL:    g.config.Sessions.TTL,
		Logger: g.logger.With("component", "sessions"),
	})
	if err != nil {
		return fmt.Errorf("creating session registry: %w", err)
	}
	g.registry = registry
	return nil
}

// initCredentials wires the resolver and, unless overridden, the real
// credential-service client. The prompt sender is attached later once
// the MCP hub's routes exist; construction order keeps it non-nil here.
func (g *Gateway) initCredentials(override creds.Service) error {
	svc := override
	if svc == nil && g.config.Credentials.ServiceURL != "" {
		client, err := creds.NewServiceClient(creds.ServiceConfig{
			BaseURL: g.config.Credentials.ServiceURL,
			Logger:  g.logger.With("component", "cred-service"),
		})
		if err != nil {
			return fmt.Errorf("creating credential service client: %w", err)
		}
		g.credsvc = client
		svc = client
	}
	if svc == nil {
		// Config validation guarantees a static token in this case, so
		// resolution never reaches the service tiers.
		svc = unreachableService{}
	}

	resolver, err := creds.NewResolver(creds.ResolverConfig{
		StaticToken:   g.config.Credentials.StaticToken,
		CacheTTL:      g.config.Credentials.CacheTTL,
		Registry:      g.registry,
		Service:       svc,
		Broker:        g.broker,
		Prompts:       g.hub,
		PromptTimeout: g.config.Credentials.PromptTimeout,
		Logger:        g.logger.With("component", "resolver"),
	})
	if err != nil {
		return fmt.Errorf("creating resolver: %w", err)
	}
	g.resolver = resolver
	return nil
}

func (g *Gateway) initDispatcher() error {
	d, err := dispatch.New(dispatch.Config{
		Catalog: g.catalog,
		Logger:  g.logger.With("component", "dispatcher"),
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	g.dispatcher = d
	return nil
}

func (g *Gateway) initAuth() error {
	if g.config.Auth.JWTSecret == "" {
		g.logger.Warn("registration surface is unauthenticated, no jwt_secret configured")
		return nil
	}
	verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	g.verifier = verifier
	return nil
}

// buildRouter assembles the full HTTP surface: three protocol transports,
// the registration surface, health, and metrics.
func (g *Gateway) buildRouter() (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(g.requestLogger)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Catalog: g.catalog,
		Hub:     g.hub,
		Invoker: g,
		Broker:  g.broker,
		Version: g.version,
		Logger:  g.logger.With("component", "mcp"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating mcp server: %w", err)
	}
	g.adapters[mcpServer.Adapter().Name()] = mcpServer.Adapter()

	openaiServer, err := openai.NewServer(openai.Config{
		Catalog: g.catalog,
		Invoker: g,
		Logger:  g.logger.With("component", "openai"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating openai server: %w", err)
	}
	g.adapters[openaiServer.Adapter().Name()] = openaiServer.Adapter()

	restServer, err := rest.NewServer(rest.Config{
		Catalog: g.catalog,
		Invoker: g,
		Logger:  g.logger.With("component", "rest"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating rest server: %w", err)
	}
	g.adapters[restServer.Adapter().Name()] = restServer.Adapter()

	r.Group(func(r chi.Router) {
		r.Use(g.countRequests("mcp"))
		mcpServer.RegisterRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(g.countRequests("openai"))
		openaiServer.RegisterRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(g.countRequests("rest"))
		restServer.RegisterRoutes(r)
	})

	g.registerAuthRoutes(r)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","tools":%d}`, g.catalog.Len())
	})

	if g.config.Metrics.Enabled {
		path := g.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, g.metrics.Handler())
	}

	return r, nil
}

// Handler exposes the assembled router for in-process serving in tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Adapters returns the transport-to-adapter mapping.
func (g *Gateway) Adapters() map[string]protocol.Adapter {
	return g.adapters
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully and releases the session registry.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gateway listening", "http_addr", g.config.Server.HTTPAddr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	g.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := g.registry.Close(); err != nil {
		g.logger.Warn("session registry close failed", "error", err)
	}
	return nil
}

// requestLogger logs every request with its duration.
func (g *Gateway) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		g.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// countRequests increments the per-transport request counter.
func (g *Gateway) countRequests(transport string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.metrics.RequestsTotal.WithLabelValues(transport).Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// unreachableService stands in when no credential service is configured.
type unreachableService struct{}

func (unreachableService) TokenByUser(context.Context, string) (string, error) {
	return "", errors.New("no credential service configured")
}

func (unreachableService) FallbackSessionByOrg(context.Context, string) (string, string, error) {
	return "", "", errors.New("no credential service configured")
}
