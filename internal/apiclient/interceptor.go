package apiclient

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"campusattend/internal/metrics"
	"campusattend/internal/session"
)

// Interceptor observes every call a Client makes.
//
// Before runs in install order and may return a replacement request (for example
// one carrying extra context values). After runs in reverse order once the
// exchange finished; it sees the response or the transport error but cannot
// swallow or rewrite either.
type Interceptor interface {
	Before(req *http.Request) (*http.Request, error)
	After(req *http.Request, resp *http.Response, err error)
}

// HeaderRequestID is set on every outbound request.
const HeaderRequestID = "X-Request-ID"

type generationKey struct{}

// AuthInterceptor injects the session's bearer credential and tears the session
// down when the server rejects it.
type AuthInterceptor struct {
	session *session.Context
	metrics metrics.Recorder
	log     *slog.Logger
}

// NewAuthInterceptor binds the interceptor to a session context.
func NewAuthInterceptor(sess *session.Context, rec metrics.Recorder, log *slog.Logger) *AuthInterceptor {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthInterceptor{session: sess, metrics: rec, log: log}
}

// Before attaches "Authorization: Bearer <token>" when a credential is held.
// Without one the request passes through untouched.
func (a *AuthInterceptor) Before(req *http.Request) (*http.Request, error) {
	c, gen, ok, err := a.session.Credential(req.Context())
	if err != nil {
		a.log.Warn("credential store unreadable, sending request without credential",
			slog.String("error", err.Error()),
		)
		return req, nil
	}
	if !ok {
		return req, nil
	}
	req = req.WithContext(context.WithValue(req.Context(), generationKey{}, gen))
	req.Header.Set("Authorization", "Bearer "+c.Token)
	return req, nil
}

// After invalidates the credential the request carried when the response is a 401.
// A request that carried none still reports the failure so the session can signal it.
func (a *AuthInterceptor) After(req *http.Request, resp *http.Response, err error) {
	if err != nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return
	}
	gen, _ := req.Context().Value(generationKey{}).(uint64)
	if a.session.Invalidate(req.Context(), gen, session.ReasonUnauthorized) {
		a.metrics.RecordTeardown(session.ReasonUnauthorized)
	}
}

// RequestIDInterceptor tags each request with a random X-Request-ID unless one is set.
type RequestIDInterceptor struct{}

func (RequestIDInterceptor) Before(req *http.Request) (*http.Request, error) {
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	return req, nil
}

func (RequestIDInterceptor) After(*http.Request, *http.Response, error) {}

// RateLimitInterceptor paces outbound calls. It waits for a token and fails only
// when the request context ends first; it never retries anything.
type RateLimitInterceptor struct {
	limiter *rate.Limiter
}

// NewRateLimitInterceptor allows perMinute requests per minute with an equal burst.
func NewRateLimitInterceptor(perMinute int) *RateLimitInterceptor {
	if perMinute <= 0 {
		return &RateLimitInterceptor{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &RateLimitInterceptor{limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)}
}

func (r *RateLimitInterceptor) Before(req *http.Request) (*http.Request, error) {
	if err := r.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *RateLimitInterceptor) After(*http.Request, *http.Response, error) {}
