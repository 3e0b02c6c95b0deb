package dbmysql

import (
	"time"
)

// UserProfile holds the public profile fields joined onto conversations and messages.
type UserProfile struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Handle      string    `gorm:"uniqueIndex;size:50;not null" json:"handle"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	AvatarPath  *string   `gorm:"size:512" json:"avatar_path,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

type UserFollow struct {
	FollowerID string    `gorm:"primaryKey;size:36" json:"follower_id"`
	FolloweeID string    `gorm:"primaryKey;size:36;index" json:"followee_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (UserFollow) TableName() string {
	return "user_follows"
}
