package models

import "time"

// Course categories.
const (
	CourseCategoryMemorization = "memorization"
	CourseCategoryRevision     = "revision"
	CourseCategoryTajweed      = "tajweed"
	CourseCategoryTafsir       = "tafsir"
)

// Course levels, shared with halaqat.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Course is a memorisation programme students follow.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	TotalPages  int       `gorm:"not null;default:0" json:"total_pages"`
	Category    string    `gorm:"size:32;not null" json:"category"`
	Level       string    `gorm:"size:32;not null" json:"level"`
	Description string    `gorm:"type:text" json:"description"`
	Status      Status    `gorm:"size:16;not null;default:active;index" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
