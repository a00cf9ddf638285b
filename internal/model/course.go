package model

// Course is an academic course offering.
type Course struct {
	ID            int64  `json:"id"`
	Code          string `json:"course_code"`
	Name          string `json:"course_name"`
	Description   string `json:"description,omitempty"`
	Department    string `json:"department"`
	CreditHours   int    `json:"credit_hours"`
	Semester      string `json:"semester"`
	AcademicYear  string `json:"academic_year"`
	MaxCapacity   int    `json:"max_capacity,omitempty"`
	Status        string `json:"status"`
	TotalStudents int    `json:"total_students"`
	CreatedAt     Time   `json:"created_at"`
}

// Section is a timetabled group within a course.
type Section struct {
	ID           int64  `json:"id"`
	CourseID     int64  `json:"course_id"`
	Name         string `json:"section_name"`
	Code         string `json:"section_code,omitempty"`
	RoomNumber   string `json:"room_number,omitempty"`
	Building     string `json:"building,omitempty"`
	ScheduleDays string `json:"schedule_days,omitempty"`
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	MaxStudents  int    `json:"max_students,omitempty"`
	Active       bool   `json:"is_active"`
}

// Message is the bare acknowledgement most mutating calls return.
type Message struct {
	Message string `json:"message"`
}

// Document is a loosely shaped payload (dashboards, reports, profiles) passed
// through to the caller for display.
type Document map[string]any

// Page selects a window of a list result.
type Page struct {
	Skip  int
	Limit int
}
