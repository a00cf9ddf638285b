package endpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"campusattend/internal/apiclient"
	"campusattend/internal/model"
)

// Check-in operations are exported for the mode selector.
var (
	CheckInFace    = upload("attendance.check_in_face", "/attendance/check-in/face", "session_id")
	CheckInQR      = send("attendance.check_in_qr", http.MethodPost, "/attendance/check-in/qr")
	KioskCheckIn   = kiosk(upload("kiosk.check_in", "/attendance/sessions/{session_id}/kiosk/check-in"))
	KioskQRCheckIn = kiosk(send("kiosk.qr_check_in", http.MethodPost, "/attendance/sessions/{session_id}/kiosk/qr-check-in"))
)

var (
	attendanceStart      = Endpoint{Name: "attendance.start_session", Method: http.MethodPost, Path: "/attendance/sessions/{session_id}/start", Auth: true}
	attendanceEnd        = send("attendance.end_session", http.MethodPost, "/attendance/sessions/{session_id}/end")
	attendanceQRCode     = get("attendance.qr_code", "/attendance/sessions/{session_id}/qr-code")
	attendanceRefreshQR  = Endpoint{Name: "attendance.refresh_qr", Method: http.MethodPost, Path: "/attendance/sessions/{session_id}/refresh-qr", Auth: true}
	attendanceLive       = get("attendance.live", "/attendance/sessions/{session_id}/live")
	attendanceManualMark = send("attendance.manual_mark", http.MethodPost, "/attendance/sessions/{session_id}/manual-mark")
	kioskStatus          = kiosk(get("kiosk.status", "/attendance/sessions/{session_id}/kiosk/status"))

	attendanceEndpoints = []Endpoint{
		CheckInFace, CheckInQR, attendanceStart, attendanceEnd, attendanceQRCode,
		attendanceRefreshQR, attendanceLive, attendanceManualMark,
	}
	kioskEndpoints = []Endpoint{KioskCheckIn, KioskQRCheckIn, kioskStatus}
)

// QRCheckIn is the body of an authenticated QR check-in.
type QRCheckIn struct {
	SessionID string   `json:"session_id"`
	QRToken   string   `json:"qr_token"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// KioskQR is the body of a kiosk QR check-in. It identifies the student and nothing else.
type KioskQR struct {
	StudentIDNumber string `json:"student_id_number"`
}

// ManualMark overrides one student's status.
type ManualMark struct {
	StudentID int64                  `json:"student_id"`
	Status    model.AttendanceStatus `json:"status"`
	Reason    string                 `json:"reason,omitempty"`
}

// FaceArgs builds the arguments of a face check-in upload.
func FaceArgs(filename string, image io.Reader) Args {
	return Args{Files: []apiclient.FilePart{{Field: FileFieldName, Filename: filename, Content: image}}}
}

// Attendance covers check-in and the lecturer's live session controls.
type Attendance struct {
	client *apiclient.Client
}

func NewAttendance(c *apiclient.Client) *Attendance {
	return &Attendance{client: c}
}

// CheckInFace submits a captured face for the signed-in student.
func (a *Attendance) CheckInFace(ctx context.Context, sessionID, filename string, image io.Reader) (*model.CheckInResult, error) {
	args := FaceArgs(filename, image)
	args.Query = url.Values{"session_id": {sessionID}}
	return checkIn(ctx, a.client, CheckInFace, args)
}

// CheckInQR submits a scanned session token for the signed-in student.
func (a *Attendance) CheckInQR(ctx context.Context, in QRCheckIn) (*model.CheckInResult, error) {
	return checkIn(ctx, a.client, CheckInQR, Args{Body: in})
}

// StartSession opens the check-in window and issues the first QR token.
func (a *Attendance) StartSession(ctx context.Context, sessionID string) (*model.SessionTransition, error) {
	return a.transition(ctx, attendanceStart, sessionArgs(sessionID))
}

// EndSession closes the session. With markAbsent, students without a record are marked absent.
func (a *Attendance) EndSession(ctx context.Context, sessionID string, markAbsent bool) (*model.SessionTransition, error) {
	args := sessionArgs(sessionID)
	args.Body = map[string]bool{"mark_absent": markAbsent}
	return a.transition(ctx, attendanceEnd, args)
}

func (a *Attendance) QRCode(ctx context.Context, sessionID string) (*model.QRCode, error) {
	var out model.QRCode
	if err := call(ctx, a.client, attendanceQRCode, sessionArgs(sessionID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshQR rotates the session token. The previous token stops being accepted.
func (a *Attendance) RefreshQR(ctx context.Context, sessionID string) (*model.QRCode, error) {
	var out model.QRCode
	if err := call(ctx, a.client, attendanceRefreshQR, sessionArgs(sessionID), &out); err != nil {
		return nil, err
	}
	out.Valid = true
	return &out, nil
}

func (a *Attendance) LiveAttendance(ctx context.Context, sessionID string) (*model.LiveAttendance, error) {
	var out model.LiveAttendance
	if err := call(ctx, a.client, attendanceLive, sessionArgs(sessionID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Attendance) ManualMark(ctx context.Context, sessionID string, m ManualMark) (model.Document, error) {
	if !m.Status.Valid() {
		return nil, fmt.Errorf("%s: unknown status %q: %w", attendanceManualMark.Name, m.Status, ErrInvalidArgs)
	}
	args := sessionArgs(sessionID)
	args.Body = m
	return document(ctx, a.client, attendanceManualMark, args)
}

func (a *Attendance) transition(ctx context.Context, e Endpoint, args Args) (*model.SessionTransition, error) {
	var out model.SessionTransition
	if err := call(ctx, a.client, e, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Kiosk covers the unauthenticated operations of a shared check-in device.
type Kiosk struct {
	client *apiclient.Client
}

// NewKiosk binds the group to c, which must be a client without credential handling.
func NewKiosk(c *apiclient.Client) *Kiosk {
	if c.Profile().RequiresAuth {
		panic("endpoint: kiosk operations need a client whose profile does not require auth")
	}
	return &Kiosk{client: c}
}

// CheckIn submits a face captured at the kiosk. The session is named in the path.
func (k *Kiosk) CheckIn(ctx context.Context, sessionID, filename string, image io.Reader) (*model.CheckInResult, error) {
	args := FaceArgs(filename, image)
	args.Path = map[string]string{"session_id": sessionID}
	return checkIn(ctx, k.client, KioskCheckIn, args)
}

// QRCheckIn records attendance for a scanned student ID card.
func (k *Kiosk) QRCheckIn(ctx context.Context, sessionID, studentIDNumber string) (*model.CheckInResult, error) {
	args := sessionArgs(sessionID)
	args.Body = KioskQR{StudentIDNumber: studentIDNumber}
	return checkIn(ctx, k.client, KioskQRCheckIn, args)
}

func (k *Kiosk) Status(ctx context.Context, sessionID string) (*model.KioskStatus, error) {
	var out model.KioskStatus
	if err := call(ctx, k.client, kioskStatus, sessionArgs(sessionID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Execute sends a prepared check-in on c.
func Execute(ctx context.Context, c *apiclient.Client, e Endpoint, args Args) (*model.CheckInResult, error) {
	return checkIn(ctx, c, e, args)
}

func checkIn(ctx context.Context, c *apiclient.Client, e Endpoint, args Args) (*model.CheckInResult, error) {
	var out model.CheckInResult
	if err := call(ctx, c, e, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
