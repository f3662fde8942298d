package models

import "time"

// Grade types recorded by teachers.
const (
	GradeTypeMemorization = "memorization"
	GradeTypeRevision     = "revision"
	GradeTypeTajweed      = "tajweed"
	GradeTypeRecitation   = "recitation"
	GradeTypeExam         = "exam"
)

// DefaultMaxGrade applies when a grade is submitted without an explicit maximum.
const DefaultMaxGrade = 100.0

// Grade is a scored evaluation of a student. Several grades of the same type and day are allowed.
type Grade struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"not null;index" json:"student_id"`
	HalqaID     uint      `gorm:"not null;index" json:"halqa_id"`
	GradeType   string    `gorm:"size:32;not null;index" json:"grade_type"`
	Value       float64   `gorm:"not null" json:"value"`
	MaxValue    float64   `gorm:"not null;default:100" json:"max_value"`
	GradedOn    time.Time `gorm:"type:date;not null;index" json:"graded_on"`
	Description string    `gorm:"size:512" json:"description"`
	Notes       string    `gorm:"type:text" json:"notes"`
	RecordedBy  uint      `gorm:"not null" json:"recorded_by"`
	Status      Status    `gorm:"size:16;not null;default:active;index" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Percent returns the grade as a percentage of its maximum.
func (g Grade) Percent() float64 {
	if g.MaxValue <= 0 {
		return 0
	}
	return g.Value / g.MaxValue * 100
}
