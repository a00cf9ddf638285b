package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campusattend/internal/credential"
	"campusattend/internal/events"
	"campusattend/internal/logger"
)

func newTestContext(t *testing.T) (*Context, *credential.Memory, *events.InMemory) {
	t.Helper()
	store := credential.NewMemory()
	bus := events.NewInMemory(64)
	return New(store, bus, logger.Discard()), store, bus
}

func cred(token string) credential.Credential {
	return credential.Credential{Token: token, User: credential.User{ID: 3, Role: credential.RoleStudent}}
}

func drain(bus *events.InMemory) int {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	ch, _ := bus.Consume(ctx)
	n := 0
	for range ch {
		n++
	}
	return n
}

func TestContext_EstablishIsImmediatelyVisible(t *testing.T) {
	s, _, _ := newTestContext(t)
	ctx := context.Background()

	if err := s.Establish(ctx, cred("T")); err != nil {
		t.Fatal(err)
	}
	c, gen, ok, err := s.Credential(ctx)
	if err != nil || !ok {
		t.Fatalf("Credential() ok=%v err=%v", ok, err)
	}
	if c.Token != "T" {
		t.Errorf("Token = %q, want T", c.Token)
	}
	if gen == 0 {
		t.Error("generation = 0 for a live credential")
	}
}

func TestContext_InvalidateClearsAndPublishesOnce(t *testing.T) {
	s, store, bus := newTestContext(t)
	ctx := context.Background()
	_ = s.Establish(ctx, cred("T"))
	_, gen, _, _ := s.Credential(ctx)

	if !s.Invalidate(ctx, gen, ReasonUnauthorized) {
		t.Fatal("first Invalidate() = false")
	}
	if s.Invalidate(ctx, gen, ReasonUnauthorized) {
		t.Error("second Invalidate() = true, want no-op")
	}
	if _, ok, _ := store.Get(ctx); ok {
		t.Error("store still holds the credential")
	}
	if n := drain(bus); n != 1 {
		t.Errorf("teardown events = %d, want 1", n)
	}
}

func TestContext_ConcurrentInvalidateEmitsOnce(t *testing.T) {
	s, _, bus := newTestContext(t)
	ctx := context.Background()
	_ = s.Establish(ctx, cred("T"))
	_, gen, _, _ := s.Credential(ctx)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Invalidate(ctx, gen, ReasonUnauthorized) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("Invalidate winners = %d, want 1", wins.Load())
	}
	if n := drain(bus); n != 1 {
		t.Errorf("teardown events = %d, want 1", n)
	}
}

func TestContext_StaleGenerationDoesNotTearDownNewSession(t *testing.T) {
	s, store, bus := newTestContext(t)
	ctx := context.Background()
	_ = s.Establish(ctx, cred("old"))
	_, oldGen, _, _ := s.Credential(ctx)
	_ = s.Establish(ctx, cred("new"))

	if s.Invalidate(ctx, oldGen, ReasonUnauthorized) {
		t.Error("Invalidate(stale generation) = true")
	}
	c, ok, _ := store.Get(ctx)
	if !ok || c.Token != "new" {
		t.Errorf("store = %q ok=%v, want new credential kept", c.Token, ok)
	}
	if n := drain(bus); n != 0 {
		t.Errorf("teardown events = %d, want 0", n)
	}
}

func TestContext_InvalidateWithoutCredentialSignalsOnce(t *testing.T) {
	s, _, bus := newTestContext(t)
	ctx := context.Background()

	if !s.Invalidate(ctx, 0, ReasonUnauthorized) {
		t.Error("first Invalidate(0) on an empty session = false")
	}
	if s.Invalidate(ctx, 0, ReasonUnauthorized) {
		t.Error("second Invalidate(0) = true, want no-op")
	}
	if n := drain(bus); n != 1 {
		t.Errorf("teardown events = %d, want 1", n)
	}

	// A new session re-arms the signal.
	_ = s.Establish(ctx, cred("T"))
	_, gen, _, _ := s.Credential(ctx)
	if !s.Invalidate(ctx, gen, ReasonUnauthorized) {
		t.Error("Invalidate(live generation) after re-login = false")
	}
}

func TestContext_InvalidateWithoutCredentialKeepsUnattachedOne(t *testing.T) {
	store := credential.NewMemory()
	_ = store.Set(context.Background(), cred("written-elsewhere"))
	bus := events.NewInMemory(8)
	s := New(store, bus, logger.Discard())

	if s.Invalidate(context.Background(), 0, ReasonUnauthorized) {
		t.Error("Invalidate(0) = true while the store holds a credential that was never sent")
	}
	if _, ok, _ := store.Get(context.Background()); !ok {
		t.Error("unattached credential was cleared")
	}
	if n := drain(bus); n != 0 {
		t.Errorf("teardown events = %d, want 0", n)
	}
}

// stuckStore refuses to clear while failClear is set.
type stuckStore struct {
	*credential.Memory
	failClear atomic.Bool
	clears    atomic.Int32
}

func (s *stuckStore) Clear(ctx context.Context) error {
	s.clears.Add(1)
	if s.failClear.Load() {
		return errors.New("store offline")
	}
	return s.Memory.Clear(ctx)
}

func TestContext_RejectedCredentialIsNotReattachedWhenClearFails(t *testing.T) {
	store := &stuckStore{Memory: credential.NewMemory()}
	store.failClear.Store(true)
	bus := events.NewInMemory(8)
	s := New(store, bus, logger.Discard())
	ctx := context.Background()

	_ = s.Establish(ctx, cred("T"))
	_, gen, _, _ := s.Credential(ctx)
	if !s.Invalidate(ctx, gen, ReasonUnauthorized) {
		t.Fatal("Invalidate() = false")
	}

	for i := 0; i < 3; i++ {
		if _, g, ok, _ := s.Credential(ctx); ok {
			t.Fatalf("rejected credential handed out again under generation %d", g)
		}
		if s.Invalidate(ctx, 0, ReasonUnauthorized) {
			t.Error("follow-up 401 published another teardown")
		}
	}
	if n := drain(bus); n != 1 {
		t.Errorf("teardown events = %d, want 1", n)
	}

	store.failClear.Store(false)
	before := store.clears.Load()
	if _, _, ok, _ := s.Credential(ctx); ok {
		t.Fatal("rejected credential handed out after the store recovered")
	}
	if store.clears.Load() == before {
		t.Error("clear was not retried")
	}
	if _, ok, _ := store.Memory.Get(ctx); ok {
		t.Error("rejected credential still in the store after recovery")
	}

	if err := s.Establish(ctx, cred("T2")); err != nil {
		t.Fatal(err)
	}
	if c, _, ok, _ := s.Credential(ctx); !ok || c.Token != "T2" {
		t.Errorf("Credential() after re-login = %q ok=%v", c.Token, ok)
	}
}

func TestContext_EndClearsWithoutEvent(t *testing.T) {
	s, store, bus := newTestContext(t)
	ctx := context.Background()
	_ = s.Establish(ctx, cred("T"))
	_, gen, _, _ := s.Credential(ctx)

	if err := s.End(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(ctx); ok {
		t.Error("credential survived End()")
	}
	if s.Invalidate(ctx, gen, ReasonUnauthorized) {
		t.Error("Invalidate after End() = true")
	}
	if n := drain(bus); n != 0 {
		t.Errorf("teardown events = %d, want 0", n)
	}
}

func TestContext_AdoptsPersistedCredential(t *testing.T) {
	store := credential.NewMemory()
	_ = store.Set(context.Background(), cred("from-last-run"))
	s := New(store, nil, logger.Discard())

	c, gen, ok, err := s.Credential(context.Background())
	if err != nil || !ok || c.Token != "from-last-run" {
		t.Fatalf("Credential() = %q ok=%v err=%v", c.Token, ok, err)
	}
	if gen == 0 {
		t.Fatal("persisted credential not adopted under a generation")
	}
	if !s.Invalidate(context.Background(), gen, ReasonUnauthorized) {
		t.Error("Invalidate(adopted generation) = false")
	}
}
