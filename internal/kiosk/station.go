// Package kiosk runs an unattended check-in device bound to one class session.
package kiosk

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"campusattend/internal/checkin"
	"campusattend/internal/model"
)

// Checker performs a check-in. *checkin.Service implements it.
type Checker interface {
	CheckIn(ctx context.Context, actor checkin.Actor, v checkin.Verification, in checkin.Input) (*model.CheckInResult, error)
}

// StatusSource reports the session state. *endpoint.Kiosk implements it.
type StatusSource interface {
	Status(ctx context.Context, sessionID string) (*model.KioskStatus, error)
}

// Counts summarises what the station has processed since start.
type Counts struct {
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Failed   int64 `json:"failed"`
}

// Station turns scanner input into kiosk check-ins.
type Station struct {
	sessionID string
	checker   Checker
	status    StatusSource
	log       *slog.Logger

	accepted atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64

	mu       sync.RWMutex
	last     *model.KioskStatus
	polledAt time.Time

	captureDir string
}

// StationOption customises a Station.
type StationOption func(*Station)

// WithCaptureDir names the directory the capture daemon writes face images to.
// Only scans naming a regular file inside it are treated as faces; without one
// every scan is a student ID.
func WithCaptureDir(dir string) StationOption {
	return func(s *Station) {
		if dir == "" {
			return
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		s.captureDir = filepath.Clean(dir)
	}
}

// NewStation binds a station to sessionID.
func NewStation(sessionID string, checker Checker, status StatusSource, log *slog.Logger, opts ...StationOption) *Station {
	if log == nil {
		log = slog.Default()
	}
	s := &Station{
		sessionID: sessionID,
		checker:   checker,
		status:    status,
		log:       log.With(slog.String("session_id", sessionID)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads one scan per line until r is exhausted or ctx ends. A line naming a
// file in the capture directory is treated as a captured face; any other line is
// a student ID from a card reader. Failed check-ins are logged and counted, never fatal.
func (s *Station) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			_, _ = s.Scan(ctx, line)
		}
	}
}

// Scan handles a single scanner input.
func (s *Station) Scan(ctx context.Context, line string) (*model.CheckInResult, error) {
	in := checkin.Input{SessionID: s.sessionID}
	verification := checkin.VerificationQR

	if path, ok := s.capturePath(line); ok {
		f, err := os.Open(path)
		if err != nil {
			s.failed.Add(1)
			s.log.Error("open capture failed", slog.String("path", path), slog.String("error", err.Error()))
			return nil, err
		}
		defer f.Close()
		verification = checkin.VerificationFace
		in.Image = f
		in.Filename = filepath.Base(path)
	} else {
		in.StudentIDNumber = line
	}

	res, err := s.checker.CheckIn(ctx, checkin.ActorKiosk, verification, in)
	switch {
	case err != nil:
		s.failed.Add(1)
	case res.Accepted():
		s.accepted.Add(1)
		s.log.Info("student checked in",
			slog.String("student", res.StudentNumber),
			slog.String("name", res.StudentName),
			slog.Bool("already_checked_in", res.AlreadyCheckedIn),
		)
	default:
		s.rejected.Add(1)
		s.log.Warn("check-in rejected",
			slog.String("message", res.Message),
			slog.Bool("show_qr_fallback", res.ShowQRFallback),
		)
	}
	return res, err
}

// capturePath resolves line against the capture directory and reports whether it
// names a regular file inside it.
func (s *Station) capturePath(line string) (string, bool) {
	if s.captureDir == "" {
		return "", false
	}
	path := line
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.captureDir, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(s.captureDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

// PollStatus refreshes the cached session status now and then every interval until ctx ends.
func (s *Station) PollStatus(ctx context.Context, interval time.Duration) {
	s.refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Station) refresh(ctx context.Context) {
	st, err := s.status.Status(ctx, s.sessionID)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("kiosk status poll failed", slog.String("error", err.Error()))
		}
		return
	}
	s.mu.Lock()
	prev := s.last
	s.last = st
	s.polledAt = time.Now()
	s.mu.Unlock()

	if prev == nil || prev.CanCheckIn != st.CanCheckIn {
		s.log.Info("check-in window changed",
			slog.String("status", string(st.Status)),
			slog.Bool("can_check_in", st.CanCheckIn),
		)
	}
}

// Status returns the last polled session status and when it was fetched. ok is
// false until a poll has succeeded.
func (s *Station) Status() (st model.KioskStatus, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.KioskStatus{}, time.Time{}, false
	}
	return *s.last, s.polledAt, true
}

// Counts returns the check-in tallies.
func (s *Station) Counts() Counts {
	return Counts{Accepted: s.accepted.Load(), Rejected: s.rejected.Load(), Failed: s.failed.Load()}
}
