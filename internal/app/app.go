// Package app assembles the client runtime from configuration: credential
// backend, event bus, session context, metrics and the client factory.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"campusattend/internal/apiclient"
	"campusattend/internal/config"
	"campusattend/internal/credential"
	"campusattend/internal/events"
	"campusattend/internal/metrics"
	"campusattend/internal/session"
	"campusattend/internal/store"
)

// Runtime holds the long-lived collaborators of one client process.
type Runtime struct {
	Config   config.App
	Log      *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Store    credential.Store
	Bus      events.Bus
	Session  *session.Context
	Factory  *apiclient.Factory

	redis   *store.Redis
	db      *store.DB
	closers []func() error
}

// New validates cfg and wires the runtime. Call Close when done.
func New(ctx context.Context, cfg config.App, log *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	rt := &Runtime{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  metrics.NewCollector(reg),
	}

	var err error
	if rt.Store, err = rt.credentialStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if rt.Bus, err = rt.eventBus(); err != nil {
		rt.Close()
		return nil, err
	}
	rt.Session = session.New(rt.Store, rt.Bus, log)
	rt.Factory = apiclient.NewFactory(cfg.Client, rt.Session,
		apiclient.WithLogger(log),
		apiclient.WithMetrics(rt.Metrics),
	)
	return rt, nil
}

func (rt *Runtime) credentialStore(ctx context.Context) (credential.Store, error) {
	switch rt.Config.CredentialBackend {
	case "memory":
		return credential.NewMemory(), nil
	case "file":
		s, err := credential.NewFileStore(rt.Config.CredentialFile, rt.Config.CredentialKey)
		if err != nil {
			return nil, fmt.Errorf("credential file store: %w", err)
		}
		return s, nil
	case "redis":
		r, err := rt.redisClient()
		if err != nil {
			return nil, err
		}
		return credential.NewRedisStore(r.Client, store.Key("credential"), rt.Config.CredentialTTL), nil
	case "sql":
		db, err := store.NewDB(ctx, rt.Config.SQLDriver, rt.Config.SQLDSN)
		if err != nil {
			return nil, fmt.Errorf("credential database: %w", err)
		}
		rt.db = db
		rt.closers = append(rt.closers, db.Close)
		return credential.NewSQLStore(db.Client), nil
	}
	return nil, fmt.Errorf("unknown credential backend %q", rt.Config.CredentialBackend)
}

func (rt *Runtime) eventBus() (events.Bus, error) {
	if rt.Config.EventBackend == "redis" {
		r, err := rt.redisClient()
		if err != nil {
			return nil, err
		}
		return events.NewRedisBus(r.Client, rt.Config.EventKey), nil
	}
	return events.NewInMemory(64), nil
}

func (rt *Runtime) redisClient() (*store.Redis, error) {
	if rt.redis == nil {
		r, err := store.NewRedis(rt.Config.RedisAddr)
		if err != nil {
			return nil, err
		}
		rt.redis = r
		rt.closers = append(rt.closers, r.Close)
	}
	return rt.redis, nil
}

// WatchTeardowns calls fn for every teardown event until ctx ends. It is the
// navigation owner's side of the session: the HTTP layer only publishes.
func (rt *Runtime) WatchTeardowns(ctx context.Context, fn func(events.Event)) error {
	ch, err := rt.Bus.Consume(ctx)
	if err != nil {
		return err
	}
	go func() {
		for evt := range ch {
			if evt.Type == events.TypeTeardown {
				fn(evt)
			}
		}
	}()
	return nil
}

// Healthy reports whether the configured backing services respond.
func (rt *Runtime) Healthy(ctx context.Context) bool {
	if rt.redis != nil && !rt.redis.Healthy(ctx) {
		return false
	}
	if rt.db != nil && rt.db.Client.PingContext(ctx) != nil {
		return false
	}
	return true
}

// Close releases connections in reverse order of creation.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
