package endpoint

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"campusattend/internal/apiclient"
	"campusattend/internal/credential"
	"campusattend/internal/model"
)

var (
	adminDashboard         = get("admin.dashboard", "/admin/dashboard")
	adminSystemHealth      = get("admin.system_health", "/admin/system-health")
	adminUsers             = get("admin.users", "/admin/users", "role", "status", "search", "skip", "limit")
	adminCreateUser        = send("admin.create_user", http.MethodPost, "/admin/users/create")
	adminUpdateUser        = send("admin.update_user", http.MethodPut, "/admin/users/{user_id}")
	adminResetUserPassword = Endpoint{Name: "admin.reset_user_password", Method: http.MethodPost, Path: "/admin/users/{user_id}/reset-password", Auth: true}
	adminDeleteUser        = Endpoint{Name: "admin.delete_user", Method: http.MethodDelete, Path: "/admin/users/{user_id}", Auth: true}
	adminBulkImport        = upload("admin.bulk_import", "/admin/users/bulk-import")
	adminCreateCourse      = send("admin.create_course", http.MethodPost, "/admin/courses/create")
	adminCreateSection     = send("admin.create_section", http.MethodPost, "/admin/courses/{course_id}/sections")
	adminAssignLecturer    = send("admin.assign_lecturer", http.MethodPost, "/admin/courses/{course_id}/assign-lecturer")
	adminEnrollStudent     = send("admin.enroll_student", http.MethodPost, "/admin/courses/{course_id}/enroll-student")
	adminLowAttendance     = get("admin.low_attendance_report", "/admin/reports/low-attendance", "threshold")
	adminSystemUsage       = get("admin.system_usage_report", "/admin/reports/system-usage", "days")

	adminEndpoints = []Endpoint{
		adminDashboard, adminSystemHealth, adminUsers, adminCreateUser, adminUpdateUser,
		adminResetUserPassword, adminDeleteUser, adminBulkImport, adminCreateCourse,
		adminCreateSection, adminAssignLecturer, adminEnrollStudent, adminLowAttendance,
		adminSystemUsage,
	}
)

// UserFilter narrows the user list. Zero fields are not sent.
type UserFilter struct {
	Role   credential.Role
	Status string
	Search string
	model.Page
}

func (f UserFilter) query() url.Values {
	q := url.Values{}
	q.Set("role", string(f.Role))
	q.Set("status", f.Status)
	q.Set("search", f.Search)
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// NewUser is an account created by an administrator.
type NewUser struct {
	Email            string          `json:"email"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Role             credential.Role `json:"role"`
	Phone            string          `json:"phone,omitempty"`
	Department       string          `json:"department,omitempty"`
	SendWelcomeEmail bool            `json:"send_welcome_email"`
}

// UserUpdate changes account fields. Empty fields are left alone.
type UserUpdate struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Status    string `json:"status,omitempty"`
}

// NewCourse creates a course.
type NewCourse struct {
	Code         string `json:"course_code"`
	Name         string `json:"course_name"`
	Department   string `json:"department"`
	CreditHours  int    `json:"credit_hours"`
	Semester     string `json:"semester"`
	AcademicYear string `json:"academic_year"`
	Description  string `json:"description,omitempty"`
	MaxCapacity  int    `json:"max_capacity,omitempty"`
}

// NewSection adds a section to a course.
type NewSection struct {
	Name        string `json:"section_name"`
	RoomNumber  string `json:"room_number,omitempty"`
	Building    string `json:"building,omitempty"`
	MaxStudents int    `json:"max_students,omitempty"`
}

// BulkImport describes a CSV upload of users.
type BulkImport struct {
	Filename   string
	CSV        io.Reader
	Role       credential.Role
	SendEmails bool
}

// Admin covers the administrative operations.
type Admin struct {
	client *apiclient.Client
}

func NewAdmin(c *apiclient.Client) *Admin {
	return &Admin{client: c}
}

func (a *Admin) Dashboard(ctx context.Context) (model.Document, error) {
	return document(ctx, a.client, adminDashboard, Args{})
}

func (a *Admin) SystemHealth(ctx context.Context) (model.Document, error) {
	return document(ctx, a.client, adminSystemHealth, Args{})
}

// Users lists accounts. Filters and paging travel in the query string.
func (a *Admin) Users(ctx context.Context, f UserFilter) (model.Document, error) {
	return document(ctx, a.client, adminUsers, Args{Query: f.query()})
}

func (a *Admin) CreateUser(ctx context.Context, u NewUser) (model.Document, error) {
	return document(ctx, a.client, adminCreateUser, Args{Body: u})
}

func (a *Admin) UpdateUser(ctx context.Context, userID int64, u UserUpdate) (model.Document, error) {
	return document(ctx, a.client, adminUpdateUser, Args{Path: userPath(userID), Body: u})
}

func (a *Admin) ResetUserPassword(ctx context.Context, userID int64) (model.Document, error) {
	return document(ctx, a.client, adminResetUserPassword, Args{Path: userPath(userID)})
}

func (a *Admin) DeleteUser(ctx context.Context, userID int64) (*model.Message, error) {
	var out model.Message
	if err := call(ctx, a.client, adminDeleteUser, Args{Path: userPath(userID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BulkImport uploads a CSV of users in the "file" field.
func (a *Admin) BulkImport(ctx context.Context, in BulkImport) (model.Document, error) {
	role := in.Role
	if role == "" {
		role = credential.RoleStudent
	}
	args := Args{
		Fields: map[string]string{
			"role":        string(role),
			"send_emails": strconv.FormatBool(in.SendEmails),
		},
		Files: []apiclient.FilePart{{Field: FileFieldName, Filename: in.Filename, ContentType: "text/csv", Content: in.CSV}},
	}
	return document(ctx, a.client, adminBulkImport, args)
}

func (a *Admin) CreateCourse(ctx context.Context, c NewCourse) (model.Document, error) {
	return document(ctx, a.client, adminCreateCourse, Args{Body: c})
}

func (a *Admin) CreateSection(ctx context.Context, courseID int64, s NewSection) (model.Document, error) {
	return document(ctx, a.client, adminCreateSection, Args{Path: coursePath(courseID), Body: s})
}

// AssignLecturer makes a lecturer responsible for a section. role defaults to "primary".
func (a *Admin) AssignLecturer(ctx context.Context, courseID, lecturerID, sectionID int64, role string) (model.Document, error) {
	if role == "" {
		role = "primary"
	}
	body := map[string]any{"lecturer_id": lecturerID, "section_id": sectionID, "role": role}
	return document(ctx, a.client, adminAssignLecturer, Args{Path: coursePath(courseID), Body: body})
}

func (a *Admin) EnrollStudent(ctx context.Context, courseID, studentID int64) (model.Document, error) {
	body := map[string]int64{"student_id": studentID}
	return document(ctx, a.client, adminEnrollStudent, Args{Path: coursePath(courseID), Body: body})
}

// LowAttendanceReport lists students under threshold percent. threshold <= 0 uses the server default.
func (a *Admin) LowAttendanceReport(ctx context.Context, threshold float64) (model.Document, error) {
	q := url.Values{}
	if threshold > 0 {
		q.Set("threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	}
	return document(ctx, a.client, adminLowAttendance, Args{Query: q})
}

func (a *Admin) SystemUsageReport(ctx context.Context, days int) (model.Document, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	return document(ctx, a.client, adminSystemUsage, Args{Query: q})
}

func userPath(userID int64) map[string]string {
	return map[string]string{"user_id": id(userID)}
}

func coursePath(courseID int64) map[string]string {
	return map[string]string{"course_id": id(courseID)}
}
