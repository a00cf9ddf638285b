package apiclient

import (
	"log/slog"
	"net/http"

	"campusattend/internal/config"
	"campusattend/internal/metrics"
	"campusattend/internal/session"
)

// Factory produces the named client configurations of one device. The security
// boundary between them is declared by Profile.RequiresAuth: only profiles that
// require auth get an AuthInterceptor, so a kiosk client cannot send or clear a
// credential even when the device holds one.
type Factory struct {
	cfg     config.Client
	session *session.Context
	http    *http.Client
	log     *slog.Logger
	metrics metrics.Recorder
}

// Option customises a Factory.
type Option func(*Factory)

// WithHTTPClient replaces the underlying HTTP client (tests pass httptest's).
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Factory) { f.http = hc }
}

// WithLogger sets the logger used by every client.
func WithLogger(log *slog.Logger) Option {
	return func(f *Factory) { f.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(f *Factory) { f.metrics = rec }
}

// NewFactory prepares clients rooted at cfg.Endpoint(). sess may be nil for
// devices that only ever build kiosk clients.
func NewFactory(cfg config.Client, sess *session.Context, opts ...Option) *Factory {
	f := &Factory{
		cfg:     cfg,
		session: sess,
		http:    &http.Client{},
		log:     slog.Default(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Authenticated returns a client that injects the session credential.
func (f *Factory) Authenticated() *Client {
	return f.New(ProfileAuthenticated)
}

// Kiosk returns a client without any credential handling.
func (f *Factory) Kiosk() *Client {
	return f.New(ProfileKiosk)
}

// New builds a client for p. It panics if p requires auth and the factory has no session,
// since that is a wiring mistake rather than a runtime condition.
func (f *Factory) New(p Profile) *Client {
	chain := []Interceptor{RequestIDInterceptor{}, NewRateLimitInterceptor(f.cfg.RateLimitPerMin)}
	if p.RequiresAuth {
		if f.session == nil {
			panic("apiclient: profile " + p.Name + " requires auth but the factory has no session context")
		}
		chain = append(chain, NewAuthInterceptor(f.session, f.metrics, f.log))
	}
	return &Client{
		profile:        p,
		root:           f.cfg.Endpoint(),
		http:           f.http,
		interceptors:   chain,
		requestTimeout: f.cfg.RequestTimeout,
		uploadTimeout:  f.cfg.UploadTimeout,
		userAgent:      f.cfg.UserAgent,
		log:            f.log.With(slog.String("profile", p.Name)),
		metrics:        f.metrics,
	}
}
