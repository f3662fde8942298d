package dto

// HalqaForm is the add/edit payload of a study circle.
type HalqaForm struct {
	Name         string `schema:"name" validate:"required,max=255"`
	TeacherID    uint   `schema:"teacher_id"`
	Capacity     int    `schema:"capacity" validate:"gte=0,lte=500"`
	ScheduleDays string `schema:"schedule_days" validate:"max=128"`
	ScheduleTime string `schema:"schedule_time" validate:"max=64"`
	Location     string `schema:"location" validate:"max=255"`
	Level        string `schema:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Gender       string `schema:"gender" validate:"omitempty,oneof=male female"`
	Notes        string `schema:"notes" validate:"max=2000"`
}

// CourseForm is the add/edit payload of a course.
type CourseForm struct {
	Name        string `schema:"name" validate:"required,max=255"`
	TotalPages  int    `schema:"total_pages" validate:"gte=0,lte=10000"`
	Category    string `schema:"category" validate:"required,oneof=memorization revision tajweed tafsir"`
	Level       string `schema:"level" validate:"required,oneof=beginner intermediate advanced"`
	Description string `schema:"description" validate:"max=2000"`
}

// StudentForm is the add/edit payload of a student. Dates use YYYY-MM-DD.
type StudentForm struct {
	PersonalID    string `schema:"personal_id" validate:"required,max=32"`
	FullName      string `schema:"full_name" validate:"required,max=255"`
	BirthDate     string `schema:"birth_date"`
	Gender        string `schema:"gender" validate:"omitempty,oneof=male female"`
	Phone         string `schema:"phone" validate:"max=32"`
	GuardianName  string `schema:"guardian_name" validate:"max=255"`
	GuardianPhone string `schema:"guardian_phone" validate:"max=32"`
	Address       string `schema:"address" validate:"max=512"`
	HalqaID       uint   `schema:"halqa_id" validate:"required"`
	CourseID      uint   `schema:"course_id" validate:"required"`
	EnrolledOn    string `schema:"enrolled_on"`
	Notes         string `schema:"notes" validate:"max=2000"`
}

// StudentStatusForm moves a student along its lifecycle.
type StudentStatusForm struct {
	Status string `schema:"status" validate:"required,oneof=active inactive graduated transferred"`
}

// AttendanceBulkForm carries the shared fields of a day sheet; per-student statuses arrive as
// attendance[<student id>] and notes as notes[<student id>].
type AttendanceBulkForm struct {
	HalqaID        uint   `schema:"halqa_id" validate:"required"`
	AttendanceDate string `schema:"attendance_date" validate:"required"`
}

// AttendanceStatusForm corrects a single attendance record.
type AttendanceStatusForm struct {
	Status string `schema:"status" validate:"required,oneof=present absent late"`
	Notes  string `schema:"notes" validate:"max=512"`
}

// GradeForm is the add/edit payload of a single grade.
type GradeForm struct {
	StudentID   uint     `schema:"student_id" validate:"required"`
	GradeType   string   `schema:"grade_type" validate:"required,oneof=memorization revision tajweed recitation exam"`
	Value       *float64 `schema:"grade_value" validate:"required,gte=0"`
	MaxValue    *float64 `schema:"max_grade" validate:"omitempty,gt=0"`
	GradedOn    string   `schema:"graded_on" validate:"required"`
	Description string   `schema:"description" validate:"max=512"`
	Notes       string   `schema:"notes" validate:"max=2000"`
}

// GradeBulkForm carries the shared fields of a grade sheet; per-student values arrive as
// grades[<student id>] and notes as notes[<student id>].
type GradeBulkForm struct {
	HalqaID     uint     `schema:"halqa_id" validate:"required"`
	GradeType   string   `schema:"grade_type" validate:"required,oneof=memorization revision tajweed recitation exam"`
	MaxValue    *float64 `schema:"max_grade" validate:"omitempty,gt=0"`
	GradedOn    string   `schema:"graded_on" validate:"required"`
	Description string   `schema:"description" validate:"max=512"`
}

// UserForm is the add/edit payload of an account. Password is only required on add.
type UserForm struct {
	Role         string `schema:"role" validate:"required,oneof=programmer supervisor teacher"`
	FullName     string `schema:"full_name" validate:"required,max=255"`
	Username     string `schema:"username" validate:"omitempty,max=64,alphanum"`
	PersonalCode string `schema:"personal_code" validate:"max=32"`
	Password     string `schema:"password" sanitize:"-" validate:"omitempty,min=8,max=72"`
	Phone        string `schema:"phone" validate:"max=32"`
	Email        string `schema:"email" validate:"omitempty,email,max=255"`
}

// PasswordForm resets an account password.
type PasswordForm struct {
	Password string `schema:"password" sanitize:"-" validate:"required,min=8,max=72"`
}

// LoginForm is the sign-in payload.
type LoginForm struct {
	Identifier string `schema:"identifier" validate:"required,max=64"`
	Password   string `schema:"password" sanitize:"-" validate:"required,max=72"`
}

// ReportRequest is the body of the reports endpoint.
type ReportRequest struct {
	Action     string `schema:"action" form:"action" json:"action"`
	ReportType string `schema:"report_type" form:"report_type" json:"report_type"`
	DateFrom   string `schema:"date_from" form:"date_from" json:"date_from"`
	DateTo     string `schema:"date_to" form:"date_to" json:"date_to"`
	HalqaID    string `schema:"halqa_id" form:"halqa_id" json:"halqa_id"`
}
