package models

import "time"

// Halqa is a teacher-led study circle that students are enrolled into.
type Halqa struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	TeacherID    *uint     `gorm:"index" json:"teacher_id"`
	Capacity     int       `gorm:"not null;default:0" json:"capacity"`
	ScheduleDays string    `gorm:"size:128" json:"schedule_days"`
	ScheduleTime string    `gorm:"size:64" json:"schedule_time"`
	Location     string    `gorm:"size:255" json:"location"`
	Level        string    `gorm:"size:32" json:"level"`
	Gender       string    `gorm:"size:16" json:"gender"`
	Status       Status    `gorm:"size:16;not null;default:active;index" json:"status"`
	Notes        string    `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName keeps the plural the school uses for study circles.
func (Halqa) TableName() string {
	return "halaqat"
}
