package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/florianilch/gemini-proxy/internal/gemini"
	"github.com/florianilch/gemini-proxy/internal/observability/middleware"
)

// PromptPath is the single endpoint prompts are posted to.
const PromptPath = "/api/proxy"

// DefaultMaxRequestBytes bounds inbound prompt bodies.
const DefaultMaxRequestBytes = 1 << 20

// Proxy is the HTTP server exposing the prompt endpoint and health probes.
type Proxy struct {
	handler http.Handler
	server  *http.Server
	opts    options
}

// Compile-time check to ensure Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

type options struct {
	transport       http.RoundTripper
	baseURL         string
	model           string
	upstreamTimeout time.Duration
	maxRequestBytes int64
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
}

// Option configures a Proxy.
type Option func(*options)

// WithTransport sets the base transport for upstream calls. Defaults to http.DefaultTransport.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithUpstream overrides the Gemini API host and model. Empty values keep the defaults.
func WithUpstream(baseURL, model string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.baseURL = baseURL
		}
		if model != "" {
			o.model = model
		}
	}
}

// WithUpstreamTimeout bounds each upstream call.
func WithUpstreamTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.upstreamTimeout = timeout
	}
}

// WithMaxRequestBytes bounds inbound request bodies.
func WithMaxRequestBytes(n int64) Option {
	return func(o *options) {
		o.maxRequestBytes = n
	}
}

// WithServerTimeouts sets the http.Server read, write and idle timeouts.
// The write timeout must exceed the upstream timeout or slow answers are cut off.
func WithServerTimeouts(read, write, idle time.Duration) Option {
	return func(o *options) {
		o.readTimeout = read
		o.writeTimeout = write
		o.idleTimeout = idle
	}
}

// New creates a Proxy. The credentials are fixed for the lifetime of the Proxy.
func New(creds Credentials, readiness ReadinessChecker, opts ...Option) (*Proxy, error) {
	if readiness == nil {
		return nil, errors.New("readiness checker cannot be nil")
	}

	o := options{
		transport:       http.DefaultTransport,
		baseURL:         gemini.DefaultBaseURL,
		model:           gemini.DefaultModel,
		upstreamTimeout: gemini.DefaultTimeout,
		maxRequestBytes: DefaultMaxRequestBytes,
		readTimeout:     10 * time.Second,
		writeTimeout:    gemini.DefaultTimeout + 30*time.Second,
		idleTimeout:     120 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.maxRequestBytes <= 0 {
		return nil, fmt.Errorf("max request bytes must be positive, got %d", o.maxRequestBytes)
	}

	prompt := &PromptHandler{
		Credentials: creds,
		Client: gemini.NewClient(
			gemini.WithBaseURL(o.baseURL),
			gemini.WithModel(o.model),
			gemini.WithTimeout(o.upstreamTimeout),
		),
		Validate:  validator.New(validator.WithRequiredStructEnabled()),
		Transport: o.transport,
	}

	r := chi.NewRouter()
	// Trace extraction and ID propagation sit inside Logging so their attributes reach the access log
	r.Use(
		middleware.RequestIDGeneration,
		middleware.Logging(slog.Default()),
		middleware.TraceContextExtraction,
		middleware.RequestIDPropagation,
		Recovery,
	)

	r.Get("/health/liveness", livenessHandler())
	r.Get("/health/readiness", readinessHandler(readiness))
	// All methods are routed so the handler can answer 405 with a JSON body
	r.Handle(PromptPath, applyMiddlewares(prompt, RequestSizeLimit(o.maxRequestBytes)))

	return &Proxy{
		handler: r,
		opts:    o,
	}, nil
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Start binds addr and serves in the background. Bind errors are returned directly;
// errors after startup are delivered on the returned channel, which is closed when
// serving stops.
func (p *Proxy) Start(ctx context.Context, addr string) (<-chan error, error) {
	if p.server != nil {
		return nil, errors.New("proxy already started")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	p.server = &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           p,
		ReadHeaderTimeout: p.opts.readTimeout,
		ReadTimeout:       p.opts.readTimeout,
		WriteTimeout:      p.opts.writeTimeout,
		IdleTimeout:       p.opts.idleTimeout,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.InfoContext(ctx, "proxy listening", "addr", listener.Addr().String(), "endpoint", PromptPath)
	return errCh, nil
}

// Addr returns the bound address, or "" before Start.
func (p *Proxy) Addr() string {
	if p.server == nil {
		return ""
	}
	return p.server.Addr
}

// Shutdown gracefully stops the server, waiting for in-flight requests until ctx expires.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down proxy server: %w", err)
	}
	return nil
}
