package models

import "time"

// User is an account able to sign in to the school system.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     *string    `gorm:"size:64;uniqueIndex" json:"username"`
	PersonalCode *string    `gorm:"size:32;uniqueIndex" json:"personal_code"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Role         Role       `gorm:"size:16;not null;index" json:"role"`
	FullName     string     `gorm:"size:255;not null" json:"full_name"`
	Phone        string     `gorm:"size:32" json:"phone"`
	Email        string     `gorm:"size:255" json:"email"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Identifier returns the value the user signs in with.
func (u User) Identifier() string {
	if u.Role.UsesPersonalCode() && u.PersonalCode != nil {
		return *u.PersonalCode
	}
	if u.Username != nil {
		return *u.Username
	}
	return ""
}
