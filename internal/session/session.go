// Package session owns the credential lifecycle of one client instance.
//
// A Context is built once at startup and handed to the request client. Every
// credential it establishes gets a generation number; the auth interceptor
// remembers which generation it attached to a request, so a 401 can only tear
// down the credential that was actually rejected, and only once.
package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"campusattend/internal/credential"
	"campusattend/internal/events"
)

// ReasonUnauthorized is the teardown reason for a 401 response.
const ReasonUnauthorized = "unauthorized"

// Context is the explicit session-context object shared by the clients of one device.
type Context struct {
	store credential.Store
	bus   events.Bus
	log   *slog.Logger

	mu   sync.Mutex
	live uint64 // generation of the held credential, 0 when none is known
	next uint64
	held credential.Credential
	// rejected is a token the server refused that the store could not forget.
	// It is never attached again and its removal is retried on every read.
	rejected string
	// signalled is set once a teardown has been published (or the user logged
	// out) and reset when a credential is established or adopted.
	signalled bool
}

// New wires a session context over a credential store and an event bus.
func New(store credential.Store, bus events.Bus, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	return &Context{store: store, bus: bus, log: log}
}

// Credential returns the held credential with its generation. ok is false when none is held.
// A credential left in a durable store by an earlier run (or written there by another
// process) is adopted under a fresh generation.
func (s *Context) Credential(ctx context.Context) (credential.Credential, uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok, err := s.store.Get(ctx)
	if err != nil || !ok {
		return credential.Credential{}, 0, false, err
	}
	if s.rejected != "" && c.Token == s.rejected {
		if err := s.store.Clear(ctx); err != nil {
			s.log.Warn("rejected credential still in store", slog.String("error", err.Error()))
		} else {
			s.rejected = ""
		}
		return credential.Credential{}, 0, false, nil
	}
	if s.live == 0 || c.Token != s.held.Token {
		s.adopt(c)
	}
	return c, s.live, true, nil
}

// Establish stores c. It is visible to Credential before Establish returns.
func (s *Context) Establish(ctx context.Context, c credential.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, c); err != nil {
		return err
	}
	s.adopt(c)
	s.rejected = ""
	s.log.Info("session established",
		slog.String("user_id", strconv.FormatInt(c.User.ID, 10)),
		slog.String("role", string(c.User.Role)),
	)
	return nil
}

func (s *Context) adopt(c credential.Credential) {
	s.next++
	s.live = s.next
	s.held = c
	s.signalled = false
}

// End clears the credential after an explicit logout. No teardown event is published.
func (s *Context) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live = 0
	s.held = credential.Credential{}
	s.rejected = ""
	s.signalled = true
	return s.store.Clear(ctx)
}

// Invalidate handles an authorization failure observed on a request that carried
// the given generation (0 when the request carried no credential). It destroys the
// rejected credential and publishes one teardown event, and reports whether it did.
//
// A stale generation is a no-op, so a late 401 cannot end a newer session. A request
// sent without a credential signals only while nothing is held, and only once until
// the next credential is established.
func (s *Context) Invalidate(ctx context.Context, generation uint64, reason string) bool {
	s.mu.Lock()
	subject, ok := s.teardown(ctx, generation)
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.log.Warn("session torn down", slog.String("reason", reason), slog.String("user_id", subject))
	if s.bus == nil {
		return true
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.bus.Publish(pubCtx, events.NewTeardown(reason, subject)); err != nil {
		s.log.Error("failed to publish teardown", slog.String("error", err.Error()))
	}
	return true
}

// teardown runs under s.mu.
func (s *Context) teardown(ctx context.Context, generation uint64) (string, bool) {
	if s.signalled || generation != s.live {
		return "", false
	}
	if generation == 0 {
		// Nothing was attached. A credential sitting in the store was not the one
		// rejected, so it stays and there is nothing to signal.
		if _, held, err := s.store.Get(ctx); err == nil && held {
			return "", false
		}
		s.signalled = true
		return "", true
	}

	rejected := s.held
	if err := s.store.Clear(ctx); err != nil {
		s.log.Error("failed to clear rejected credential", slog.String("error", err.Error()))
		s.rejected = rejected.Token
	}
	s.live = 0
	s.held = credential.Credential{}
	s.signalled = true
	return strconv.FormatInt(rejected.User.ID, 10), true
}
