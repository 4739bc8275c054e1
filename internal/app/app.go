package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/gemini-proxy/internal/keystore"
	"github.com/florianilch/gemini-proxy/internal/proxy"
)

// App orchestrates the lifecycle of the proxy server.
type App struct {
	cfg    *Config
	proxy  *proxy.Proxy
	health *Health
}

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	transport http.RoundTripper
}

// WithUpstreamTransport replaces the base transport for upstream calls, e.g. in tests.
func WithUpstreamTransport(transport http.RoundTripper) Option {
	return func(o *appOptions) {
		o.transport = transport
	}
}

// New creates a new App. The API key is read from the configured store here and only here;
// a missing key is reported and leaves the proxy answering prompts with a configuration error.
func New(ctx context.Context, cfg *Config, environ func() []string, opts ...Option) (*App, error) {
	o := appOptions{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := cfg.Auth.NewKeyStore(environ)
	if err != nil {
		return nil, fmt.Errorf("failed to create key store: %w", err)
	}

	apiKey, err := store.Read(ctx)
	switch {
	case errors.Is(err, keystore.ErrNotFound):
		slog.WarnContext(ctx, "upstream API key not configured, prompt requests will fail",
			"storage", string(cfg.Auth.Storage))
	case err != nil:
		return nil, fmt.Errorf("failed to read API key: %w", err)
	}

	health := NewHealth()

	proxyServer, err := proxy.New(
		proxy.Credentials{APIKey: apiKey},
		health,
		proxy.WithTransport(o.transport),
		proxy.WithUpstream(cfg.Upstream.BaseURL, cfg.Upstream.Model),
		proxy.WithUpstreamTimeout(cfg.Upstream.Timeout),
		proxy.WithMaxRequestBytes(cfg.Server.MaxRequestBytes),
		proxy.WithServerTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:    cfg,
		proxy:  proxyServer,
		health: health,
	}, nil
}

// Addr returns the address the proxy is bound to, or "" before Start.
func (a *App) Addr() string {
	return a.proxy.Addr()
}

// Ready reports whether the app currently accepts traffic.
func (a *App) Ready() bool {
	return a.health.IsReady()
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting proxy server")
	proxyErrCh, err := a.proxy.Start(gCtx, a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	a.health.SetReady(true)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	runtimeErr := g.Wait()

	// Fail readiness first so load balancers stop routing before connections drain
	a.health.SetReady(false)
	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.InfoContext(shutdownCtx, "application stopped")
	return nil
}
