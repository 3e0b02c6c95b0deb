package dbmysql

import (
	"time"
)

type Conversation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     *string   `gorm:"size:255" json:"title,omitempty"`
	CreatedBy string    `gorm:"not null;size:36" json:"created_by"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// Participant is a membership row. Archived is a per-user soft leave and rows are never deleted.
type Participant struct {
	ConversationID string    `gorm:"primaryKey;size:36" json:"conversation_id"`
	UserID         string    `gorm:"primaryKey;size:36;index" json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
	Archived       bool      `gorm:"not null;default:false" json:"archived"`
}

func (Participant) TableName() string {
	return "conversation_participants"
}
