package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campusattend/internal/apiclient"
	"campusattend/internal/endpoint"
	"campusattend/internal/metrics"
	"campusattend/internal/model"
)

// ErrNoClient is returned when the device was not given a client for the selected profile.
var ErrNoClient = errors.New("no client configured for check-in profile")

const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Service runs check-ins. A kiosk device usually has only the kiosk client;
// a student device usually has only the authenticated one.
type Service struct {
	authenticated *apiclient.Client
	kiosk         *apiclient.Client
	metrics       metrics.Recorder
	log           *slog.Logger
}

// NewService wires the clients. Either may be nil.
func NewService(authenticated, kiosk *apiclient.Client, rec metrics.Recorder, log *slog.Logger) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{authenticated: authenticated, kiosk: kiosk, metrics: rec, log: log}
}

// CheckIn selects the flow for (actor, v) and sends it. A kiosk answer with
// success=false is returned as a result, not an error.
func (s *Service) CheckIn(ctx context.Context, actor Actor, v Verification, in Input) (*model.CheckInResult, error) {
	plan, err := Select(actor, v, in)
	if err != nil {
		return nil, err
	}
	client, err := s.clientFor(plan.Profile)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := endpoint.Execute(ctx, client, plan.Endpoint, plan.Args)
	attrs := []any{
		slog.String("actor", string(actor)),
		slog.String("verification", string(v)),
		slog.String("session_id", in.SessionID),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.metrics.RecordCheckIn(string(actor), string(v), outcomeFailed)
		s.log.Warn("check-in failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}

	outcome := outcomeAccepted
	if !res.Accepted() {
		outcome = outcomeRejected
	}
	s.metrics.RecordCheckIn(string(actor), string(v), outcome)
	s.log.Info("check-in "+outcome, append(attrs,
		slog.String("status", string(res.Status)),
		slog.String("message", res.Message),
	)...)
	return res, nil
}

func (s *Service) clientFor(p apiclient.Profile) (*apiclient.Client, error) {
	c := s.kiosk
	if p.RequiresAuth {
		c = s.authenticated
	}
	if c == nil || c.Profile().RequiresAuth != p.RequiresAuth {
		return nil, fmt.Errorf("%s: %w", p.Name, ErrNoClient)
	}
	return c, nil
}
