package model

// AttendanceStatus is the outcome recorded for one student in one session.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid reports whether s is a status a lecturer may set manually.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return true
	}
	return false
}

// AttendanceRecord is a stored attendance mark.
type AttendanceRecord struct {
	ID                  int64            `json:"id"`
	SessionID           int64            `json:"session_id"`
	StudentID           int64            `json:"student_id"`
	Status              AttendanceStatus `json:"status"`
	CheckInMethod       string           `json:"check_in_method,omitempty"`
	CheckInTime         Time             `json:"check_in_time"`
	IsLate              bool             `json:"is_late"`
	MinutesLate         int              `json:"minutes_late"`
	IsExcused           bool             `json:"is_excused"`
	ExcuseReason        string           `json:"excuse_reason,omitempty"`
	ManuallyMarked      bool             `json:"manually_marked"`
	FaceConfidenceScore float64          `json:"face_confidence_score,omitempty"`
	Display             string           `json:"attendance_display,omitempty"`
	MarkedAt            Time             `json:"marked_at"`
}

// CheckInResult is returned by every check-in flow.
//
// Authenticated flows report failure with an error status, so a decoded result
// always means success there. Kiosk flows answer 200 with Success=false when the
// student could not be matched; ShowQRFallback then tells the device to offer QR.
type CheckInResult struct {
	Success          bool             `json:"success"`
	Message          string           `json:"message"`
	Status           AttendanceStatus `json:"status,omitempty"`
	CheckInTime      Time             `json:"check_in_time"`
	MinutesLate      int              `json:"minutes_late"`
	Confidence       float64          `json:"confidence,omitempty"`
	Method           string           `json:"method,omitempty"`
	StudentName      string           `json:"student_name,omitempty"`
	StudentNumber    string           `json:"student_id,omitempty"`
	AlreadyCheckedIn bool             `json:"already_checked_in,omitempty"`
	PreviousCheckIn  Time             `json:"previous_check_in"`
	ShowQRFallback   bool             `json:"show_qr_fallback,omitempty"`
	Suggestion       string           `json:"suggestion,omitempty"`
}

// Accepted reports whether attendance is on record after this call.
func (r CheckInResult) Accepted() bool {
	return r.Success || r.Status != ""
}

// LiveEntry is one row of the live roster.
type LiveEntry struct {
	AttendanceRecord
	StudentName string `json:"student_name"`
}

// LiveAttendance is the lecturer's real-time view of a running session.
type LiveAttendance struct {
	SessionID  int64         `json:"session_id"`
	Status     SessionStatus `json:"status"`
	CanCheckIn bool          `json:"can_check_in"`
	Statistics struct {
		TotalStudents int     `json:"total_students"`
		Present       int     `json:"present"`
		Late          int     `json:"late"`
		Absent        int     `json:"absent"`
		Percentage    float64 `json:"percentage"`
	} `json:"statistics"`
	Attendance []LiveEntry `json:"attendance"`
}
