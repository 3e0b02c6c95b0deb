package dbmysql

import (
	"time"
)

type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"not null;index:idx_messages_conversation_created;size:36" json:"conversation_id"`
	SenderID       string    `gorm:"not null;index;size:36" json:"sender_id"`
	Content        string    `gorm:"type:text" json:"content"`
	AttachmentType *string   `gorm:"size:20" json:"attachment_type,omitempty"`
	AttachmentPath *string   `gorm:"size:512" json:"attachment_path,omitempty"`
	IsRead         bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created" json:"created_at"`

	Sender *UserProfile `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
