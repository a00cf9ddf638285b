package endpoint

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"campusattend/internal/apiclient"
	"campusattend/internal/model"
)

var (
	studentProfile           = get("student.profile", "/students/profile")
	studentUpdateProfile     = send("student.update_profile", http.MethodPut, "/students/profile")
	studentEnrollmentStatus  = get("student.enrollment_status", "/students/face-enrollment/status")
	studentUploadFacePhoto   = upload("student.upload_face_photo", "/students/face-enrollment/upload")
	studentEnrolledPhotos    = get("student.enrolled_photos", "/students/face-enrollment/photos")
	studentDeleteFacePhoto   = Endpoint{Name: "student.delete_face_photo", Method: http.MethodDelete, Path: "/students/face-enrollment/photos/{encoding_id}", Auth: true}
	studentResetEnrollment   = Endpoint{Name: "student.reset_enrollment", Method: http.MethodDelete, Path: "/students/face-enrollment/reset", Auth: true}
	studentCourses           = get("student.courses", "/students/courses")
	studentCourseAttendance  = get("student.course_attendance", "/students/courses/{course_id}/attendance")
	studentAttendanceSummary = get("student.attendance_summary", "/students/attendance/summary")
	studentTodayAttendance   = get("student.today_attendance", "/students/attendance/today")
	studentAttendanceHistory = get("student.attendance_history", "/students/attendance/history", "days")
	studentTodaySchedule     = get("student.today_schedule", "/students/schedule/today")

	studentEndpoints = []Endpoint{
		studentProfile, studentUpdateProfile, studentEnrollmentStatus, studentUploadFacePhoto,
		studentEnrolledPhotos, studentDeleteFacePhoto, studentResetEnrollment, studentCourses,
		studentCourseAttendance, studentAttendanceSummary, studentTodayAttendance,
		studentAttendanceHistory, studentTodaySchedule,
	}
)

// FaceAngle names the pose of an enrollment photo.
type FaceAngle string

const (
	AngleFront FaceAngle = "front"
	AngleLeft  FaceAngle = "left"
	AngleRight FaceAngle = "right"
)

// StudentProfileUpdate carries the fields a student may change. Empty fields are left alone.
type StudentProfileUpdate struct {
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	ParentName  string `json:"parent_name,omitempty"`
	ParentPhone string `json:"parent_phone,omitempty"`
	ParentEmail string `json:"parent_email,omitempty"`
}

// EnrollmentUpload is the server's verdict on one enrollment photo.
type EnrollmentUpload struct {
	Message      string         `json:"message"`
	EncodingID   int64          `json:"encoding_id"`
	QualityScore float64        `json:"quality_score"`
	QualityGrade string         `json:"quality_grade"`
	Progress     model.Document `json:"progress"`
}

// CourseAttendance is a student's record in one course.
type CourseAttendance struct {
	CourseID             int64                    `json:"course_id"`
	TotalClasses         int                      `json:"total_classes"`
	ClassesAttended      int                      `json:"classes_attended"`
	AttendancePercentage float64                  `json:"attendance_percentage"`
	Records              []model.AttendanceRecord `json:"records"`
}

// Student covers the operations available to a signed-in student.
type Student struct {
	client *apiclient.Client
}

func NewStudent(c *apiclient.Client) *Student {
	return &Student{client: c}
}

func (s *Student) Profile(ctx context.Context) (model.Document, error) {
	return document(ctx, s.client, studentProfile, Args{})
}

func (s *Student) UpdateProfile(ctx context.Context, u StudentProfileUpdate) (model.Document, error) {
	return document(ctx, s.client, studentUpdateProfile, Args{Body: u})
}

func (s *Student) EnrollmentStatus(ctx context.Context) (model.Document, error) {
	return document(ctx, s.client, studentEnrollmentStatus, Args{})
}

// UploadFacePhoto sends one enrollment photo in the "file" field.
func (s *Student) UploadFacePhoto(ctx context.Context, filename string, image io.Reader, angle FaceAngle) (*EnrollmentUpload, error) {
	if angle == "" {
		angle = AngleFront
	}
	args := Args{
		Fields: map[string]string{"angle": string(angle)},
		Files:  []apiclient.FilePart{{Field: FileFieldName, Filename: filename, Content: image}},
	}
	var out EnrollmentUpload
	if err := call(ctx, s.client, studentUploadFacePhoto, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Student) EnrolledPhotos(ctx context.Context) (model.Document, error) {
	return document(ctx, s.client, studentEnrolledPhotos, Args{})
}

func (s *Student) DeleteFacePhoto(ctx context.Context, encodingID int64) (model.Document, error) {
	return document(ctx, s.client, studentDeleteFacePhoto, Args{Path: map[string]string{"encoding_id": id(encodingID)}})
}

func (s *Student) ResetEnrollment(ctx context.Context) (model.Document, error) {
	return document(ctx, s.client, studentResetEnrollment, Args{})
}

func (s *Student) Courses(ctx context.Context) (model.Document, error) {
	return document(ctx, s.client, studentCourses, Args{})
}

func (s *Student) CourseAttendance(ctx context.Context, courseID int64) (*CourseAttendance, error) {
	var out CourseAttendance
	args := Args{Path: map[string]string{"course_id": id(courseID)}}
	if err := call(ctx, s.client, studentCourseAttendance, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Student) AttendanceSummary(ctx context.Context) (model.Document, error) {
	return document(ctx, s.client, studentAttendanceSummary, Args{})
}

func (s *Student) TodayAttendance(ctx context.Context) (model.Document, error) {
	return document(ctx, s.client, studentTodayAttendance, Args{})
}

// AttendanceHistory lists the last days of attendance. days <= 0 uses the server default.
func (s *Student) AttendanceHistory(ctx context.Context, days int) (model.Document, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	return document(ctx, s.client, studentAttendanceHistory, Args{Query: q})
}

func (s *Student) TodaySchedule(ctx context.Context) (model.Document, error) {
	return document(ctx, s.client, studentTodaySchedule, Args{})
}

func document(ctx context.Context, c *apiclient.Client, e Endpoint, a Args) (model.Document, error) {
	var out model.Document
	if err := call(ctx, c, e, a, &out); err != nil {
		return nil, err
	}
	return out, nil
}
