package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the append-only audit trail of successful mutations.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null;index" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// All lists every model the application migrates.
func All() []interface{} {
	return []interface{}{
		&User{}, &Halqa{}, &Course{}, &Student{}, &Attendance{}, &Grade{}, &ActivityLog{},
	}
}
