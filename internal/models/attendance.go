package models

import "time"

// AttendanceStatus is the daily presence state of a student.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// Valid reports whether the status is recognised.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// Attendance stores one status per student, halqa and day.
type Attendance struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	StudentID  uint             `gorm:"not null;uniqueIndex:idx_attendance_day,priority:1" json:"student_id"`
	HalqaID    uint             `gorm:"not null;uniqueIndex:idx_attendance_day,priority:2;index" json:"halqa_id"`
	AttendedOn time.Time        `gorm:"type:date;not null;uniqueIndex:idx_attendance_day,priority:3" json:"attended_on"`
	Status     AttendanceStatus `gorm:"size:16;not null;index" json:"status"`
	Notes      string           `gorm:"size:512" json:"notes"`
	RecordedBy uint             `gorm:"not null" json:"recorded_by"`
	CreatedAt  time.Time        `json:"created_at"`
}

// TableName keeps attendance singular.
func (Attendance) TableName() string {
	return "attendance"
}
