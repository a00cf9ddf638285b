// Package apiclient is the HTTP layer between the campus attendance backend and
// its callers: request encoding, the interceptor chain, timeouts and the error taxonomy.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campusattend/internal/metrics"
)

// Profile names a client configuration and declares whether it carries credentials.
type Profile struct {
	Name         string
	RequiresAuth bool
}

var (
	// ProfileAuthenticated is used by every signed-in operation.
	ProfileAuthenticated = Profile{Name: "authenticated", RequiresAuth: true}
	// ProfileKiosk is used by shared check-in devices. It never has an AuthInterceptor.
	ProfileKiosk = Profile{Name: "kiosk", RequiresAuth: false}
)

// Request describes one API call relative to the API root (for example "/auth/me").
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      Body
	// Timeout overrides the client's default for this call.
	Timeout time.Duration
}

// IsUpload reports whether the request carries file content.
func (r *Request) IsUpload() bool {
	_, ok := r.Body.(MultipartBody)
	return ok
}

const maxErrorBody = 64 << 10

// Client sends requests to the API root with a fixed interceptor chain.
type Client struct {
	profile        Profile
	root           string
	http           *http.Client
	interceptors   []Interceptor
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	userAgent      string
	log            *slog.Logger
	metrics        metrics.Recorder
}

// Profile returns the configuration the client was built with.
func (c *Client) Profile() Profile { return c.profile }

// Do sends req and decodes a successful JSON response into out (when out is non-nil).
// Every failure is returned as *Error.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	start := time.Now()
	status, requestID, err := c.do(ctx, req, out)
	elapsed := time.Since(start)
	c.metrics.RecordRequest(req.Operation, c.profile.Name, status, elapsed)

	attrs := []any{
		slog.String("operation", req.Operation),
		slog.Int("status", status),
		slog.String("request_id", requestID),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		c.log.Warn("api call failed", append(attrs, slog.String("error", err.Error()))...)
		return err
	}
	c.log.Debug("api call", attrs...)
	return nil
}

func (c *Client) do(ctx context.Context, req *Request, out any) (int, string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.requestTimeout
		if req.IsUpload() {
			timeout = c.uploadTimeout
		}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hreq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return 0, "", &Error{Kind: KindTransport, Operation: req.Operation, Err: err}
	}

	for _, ic := range c.interceptors {
		next, err := ic.Before(hreq)
		if err != nil {
			return 0, hreq.Header.Get(HeaderRequestID), c.transportError(ctx, req.Operation, err)
		}
		hreq = next
	}
	requestID := hreq.Header.Get(HeaderRequestID)

	resp, err := c.http.Do(hreq)
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		c.interceptors[i].After(hreq, resp, err)
	}
	if err != nil {
		return 0, requestID, c.transportError(ctx, req.Operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, requestID, &Error{
			Kind:      kindForStatus(resp.StatusCode),
			Status:    resp.StatusCode,
			Operation: req.Operation,
			Detail:    parseDetail(raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, requestID, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, requestID, c.transportError(ctx, req.Operation, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return resp.StatusCode, requestID, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, requestID, &Error{
			Kind:      KindTransport,
			Status:    resp.StatusCode,
			Operation: req.Operation,
			Detail:    "malformed response",
			Err:       err,
		}
	}
	return resp.StatusCode, requestID, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target := c.root + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body  io.Reader
		ctype = "application/json"
	)
	if req.Body != nil {
		var err error
		body, ctype, err = req.Body.Encode()
		if err != nil {
			return nil, err
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Content-Type", ctype)
	hreq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	return hreq, nil
}

func (c *Client) transportError(ctx context.Context, op string, err error) *Error {
	detail := ""
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		detail = "request timed out"
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		detail = "request cancelled"
	}
	return &Error{Kind: KindTransport, Operation: op, Detail: detail, Err: err}
}
