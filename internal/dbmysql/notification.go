package dbmysql

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is written by the delivery pipeline and only mutated when its recipient reads it.
type Notification struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	UserID    string         `gorm:"not null;index:idx_notifications_user_created;size:36" json:"user_id"`
	Type      string         `gorm:"not null;size:20" json:"type"`
	Body      string         `gorm:"type:text" json:"body"`
	Payload   datatypes.JSON `json:"payload"`
	IsRead    bool           `gorm:"column:is_read;not null;default:false" json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `gorm:"index:idx_notifications_user_created" json:"created_at"`
}
