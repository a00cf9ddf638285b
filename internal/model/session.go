// Package model holds the response shapes returned by the attendance backend.
package model

import "time"

// SessionStatus is the server-side state of a class session.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionPostponed  SessionStatus = "postponed"
)

// Phase is the coarse lifecycle a client reasons about.
type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseActive    Phase = "active"
	PhaseEnded     Phase = "ended"
	PhaseUnknown   Phase = ""
)

// Phase folds the server status into scheduled, active or ended.
func (s SessionStatus) Phase() Phase {
	switch s {
	case SessionScheduled, SessionPostponed:
		return PhaseScheduled
	case SessionInProgress:
		return PhaseActive
	case SessionCompleted, SessionCancelled:
		return PhaseEnded
	}
	return PhaseUnknown
}

// ClassSession is one scheduled meeting of a course section.
type ClassSession struct {
	ID                   int64         `json:"id"`
	SectionID            int64         `json:"section_id"`
	LecturerID           int64         `json:"lecturer_id"`
	SessionDate          string        `json:"session_date"`
	StartTime            Time          `json:"start_time"`
	EndTime              Time          `json:"end_time"`
	RoomNumber           string        `json:"room_number,omitempty"`
	Building             string        `json:"building,omitempty"`
	Topic                string        `json:"topic,omitempty"`
	SessionType          string        `json:"session_type"`
	Status               SessionStatus `json:"status"`
	AttendanceEnabled    bool          `json:"attendance_enabled"`
	CanCheckIn           bool          `json:"can_check_in"`
	QRCodeValid          bool          `json:"is_qr_code_valid"`
	TotalStudents        int           `json:"total_students"`
	PresentCount         int           `json:"present_count"`
	AbsentCount          int           `json:"absent_count"`
	LateCount            int           `json:"late_count"`
	AttendancePercentage float64       `json:"attendance_percentage"`
	DurationMinutes      int           `json:"duration_minutes"`
}

// QRCode is the rotating token a lecturer displays for QR check-in.
type QRCode struct {
	SessionID int64  `json:"session_id"`
	Token     string `json:"qr_code"`
	ExpiresAt Time   `json:"expires_at"`
	Valid     bool   `json:"is_valid"`
	Message   string `json:"message,omitempty"`
}

// ExpiresWithin reports whether the token expires in d or less from now.
// A code without an expiry is treated as already expired.
func (q QRCode) ExpiresWithin(d time.Duration) bool {
	if q.ExpiresAt.IsZero() {
		return true
	}
	return time.Until(q.ExpiresAt.Time) <= d
}

// CheckInWindow bounds when check-in is accepted.
type CheckInWindow struct {
	Start Time `json:"start"`
	End   Time `json:"end"`
}

// SessionTransition is returned when a lecturer starts or ends a session.
type SessionTransition struct {
	Message       string        `json:"message"`
	SessionID     int64         `json:"session_id"`
	Status        SessionStatus `json:"status"`
	CheckInWindow CheckInWindow `json:"check_in_window"`
	QRCode        string        `json:"qr_code,omitempty"`
	Stats         *SessionStats `json:"attendance_stats,omitempty"`
}

// SessionStats summarises attendance once a session ends.
type SessionStats struct {
	TotalStudents        int     `json:"total_students"`
	Present              int     `json:"present"`
	Late                 int     `json:"late"`
	Absent               int     `json:"absent"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// KioskStatus is what an unattended check-in device polls.
type KioskStatus struct {
	SessionID     int64         `json:"session_id"`
	Status        SessionStatus `json:"status"`
	CanCheckIn    bool          `json:"can_check_in"`
	CheckInWindow CheckInWindow `json:"check_in_window"`
	Statistics    struct {
		Present int `json:"present"`
		Late    int `json:"late"`
		Total   int `json:"total"`
	} `json:"statistics"`
}
