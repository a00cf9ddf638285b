package endpoint

import (
	"context"
	"net/http"
	"net/url"

	"campusattend/internal/apiclient"
	"campusattend/internal/model"
)

var (
	lecturerProfile        = get("lecturer.profile", "/lecturers/profile")
	lecturerUpdateProfile  = send("lecturer.update_profile", http.MethodPut, "/lecturers/profile")
	lecturerCourses        = get("lecturer.courses", "/lecturers/courses")
	lecturerCourseStudents = get("lecturer.course_students", "/lecturers/courses/{course_id}/students")
	lecturerCreateSession  = send("lecturer.create_session", http.MethodPost, "/lecturers/sessions/create")
	lecturerSessions       = get("lecturer.sessions", "/lecturers/sessions", "date_from", "date_to", "status")
	lecturerTodaySessions  = get("lecturer.today_sessions", "/lecturers/sessions/today")
	lecturerSession        = get("lecturer.session", "/lecturers/sessions/{session_id}")
	lecturerUpdateSession  = send("lecturer.update_session", http.MethodPut, "/lecturers/sessions/{session_id}")
	lecturerCancelSession  = send("lecturer.cancel_session", http.MethodDelete, "/lecturers/sessions/{session_id}")
	lecturerSessionReport  = get("lecturer.session_report", "/lecturers/sessions/{session_id}/attendance-report")
	lecturerCourseSummary  = get("lecturer.course_summary", "/lecturers/courses/{course_id}/attendance-summary")
	lecturerEmailStudents  = send("lecturer.email_students", http.MethodPost, "/lecturers/courses/{course_id}/email-students")

	lecturerEndpoints = []Endpoint{
		lecturerProfile, lecturerUpdateProfile, lecturerCourses, lecturerCourseStudents,
		lecturerCreateSession, lecturerSessions, lecturerTodaySessions, lecturerSession,
		lecturerUpdateSession, lecturerCancelSession, lecturerSessionReport,
		lecturerCourseSummary, lecturerEmailStudents,
	}
)

// LecturerProfileUpdate carries the fields a lecturer may change.
type LecturerProfileUpdate struct {
	Phone          string `json:"phone,omitempty"`
	OfficeLocation string `json:"office_location,omitempty"`
	OfficePhone    string `json:"office_phone,omitempty"`
	OfficeHours    string `json:"office_hours,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

// NewSession schedules a class session. Date is YYYY-MM-DD, times are HH:MM.
type NewSession struct {
	SectionID   int64  `json:"section_id"`
	SessionDate string `json:"session_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	RoomNumber  string `json:"room_number,omitempty"`
	Building    string `json:"building,omitempty"`
	Topic       string `json:"topic,omitempty"`
	SessionType string `json:"session_type,omitempty"`
}

// SessionUpdate edits descriptive fields of a session.
type SessionUpdate struct {
	Topic      string `json:"topic,omitempty"`
	Notes      string `json:"notes,omitempty"`
	RoomNumber string `json:"room_number,omitempty"`
	Building   string `json:"building,omitempty"`
}

// SessionFilter narrows Sessions. Zero fields are not sent.
type SessionFilter struct {
	DateFrom string
	DateTo   string
	Status   model.SessionStatus
}

func (f SessionFilter) query() url.Values {
	q := url.Values{}
	q.Set("date_from", f.DateFrom)
	q.Set("date_to", f.DateTo)
	q.Set("status", string(f.Status))
	return q
}

// Recipients selects who receives a course email.
type Recipients string

const (
	RecipientsAll           Recipients = "all"
	RecipientsAbsent        Recipients = "absent"
	RecipientsLowAttendance Recipients = "low_attendance"
)

// Lecturer covers the operations available to a signed-in lecturer.
type Lecturer struct {
	client *apiclient.Client
}

func NewLecturer(c *apiclient.Client) *Lecturer {
	return &Lecturer{client: c}
}

func (l *Lecturer) Profile(ctx context.Context) (model.Document, error) {
	return document(ctx, l.client, lecturerProfile, Args{})
}

func (l *Lecturer) UpdateProfile(ctx context.Context, u LecturerProfileUpdate) (model.Document, error) {
	return document(ctx, l.client, lecturerUpdateProfile, Args{Body: u})
}

func (l *Lecturer) Courses(ctx context.Context) (model.Document, error) {
	return document(ctx, l.client, lecturerCourses, Args{})
}

func (l *Lecturer) CourseStudents(ctx context.Context, courseID int64) (model.Document, error) {
	return document(ctx, l.client, lecturerCourseStudents, Args{Path: map[string]string{"course_id": id(courseID)}})
}

func (l *Lecturer) CreateSession(ctx context.Context, s NewSession) (model.Document, error) {
	return document(ctx, l.client, lecturerCreateSession, Args{Body: s})
}

func (l *Lecturer) Sessions(ctx context.Context, f SessionFilter) (model.Document, error) {
	return document(ctx, l.client, lecturerSessions, Args{Query: f.query()})
}

func (l *Lecturer) TodaySessions(ctx context.Context) (model.Document, error) {
	return document(ctx, l.client, lecturerTodaySessions, Args{})
}

// SessionDetail is a session with the section and course it belongs to.
type SessionDetail struct {
	Session model.ClassSession `json:"session"`
	Section *model.Section     `json:"section"`
	Course  *model.Course      `json:"course"`
}

// Session fetches one session with its current counters.
func (l *Lecturer) Session(ctx context.Context, sessionID string) (*SessionDetail, error) {
	var out SessionDetail
	if err := call(ctx, l.client, lecturerSession, sessionArgs(sessionID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *Lecturer) UpdateSession(ctx context.Context, sessionID string, u SessionUpdate) (model.Document, error) {
	a := sessionArgs(sessionID)
	a.Body = u
	return document(ctx, l.client, lecturerUpdateSession, a)
}

// CancelSession cancels a scheduled session. reason may be empty.
func (l *Lecturer) CancelSession(ctx context.Context, sessionID, reason string) (*model.Message, error) {
	a := sessionArgs(sessionID)
	if reason != "" {
		a.Body = map[string]string{"reason": reason}
	}
	var out model.Message
	if err := call(ctx, l.client, lecturerCancelSession, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *Lecturer) SessionReport(ctx context.Context, sessionID string) (model.Document, error) {
	return document(ctx, l.client, lecturerSessionReport, sessionArgs(sessionID))
}

func (l *Lecturer) CourseSummary(ctx context.Context, courseID int64) (model.Document, error) {
	return document(ctx, l.client, lecturerCourseSummary, Args{Path: map[string]string{"course_id": id(courseID)}})
}

// EmailStudents mails the selected students of a course.
func (l *Lecturer) EmailStudents(ctx context.Context, courseID int64, subject, message string, to Recipients) (model.Document, error) {
	if to == "" {
		to = RecipientsAll
	}
	a := Args{
		Path: map[string]string{"course_id": id(courseID)},
		Body: map[string]string{"subject": subject, "message": message, "recipients": string(to)},
	}
	return document(ctx, l.client, lecturerEmailStudents, a)
}

func sessionArgs(sessionID string) Args {
	return Args{Path: map[string]string{"session_id": sessionID}}
}
