package models

import "time"

// Gender values used by students and halaqat.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Student represents a learner enrolled in exactly one halqa and one course.
type Student struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	PersonalID    string     `gorm:"size:32;not null;uniqueIndex" json:"personal_id"`
	FullName      string     `gorm:"size:255;not null;index" json:"full_name"`
	BirthDate     *time.Time `gorm:"type:date" json:"birth_date"`
	Gender        string     `gorm:"size:16" json:"gender"`
	Phone         string     `gorm:"size:32" json:"phone"`
	GuardianName  string     `gorm:"size:255" json:"guardian_name"`
	GuardianPhone string     `gorm:"size:32" json:"guardian_phone"`
	Address       string     `gorm:"size:512" json:"address"`
	HalqaID       uint       `gorm:"not null;index" json:"halqa_id"`
	CourseID      uint       `gorm:"not null;index" json:"course_id"`
	EnrolledOn    time.Time  `gorm:"type:date" json:"enrolled_on"`
	Status        Status     `gorm:"size:16;not null;default:active;index" json:"status"`
	Notes         string     `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
