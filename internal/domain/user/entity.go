package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents the users table. Account management (registration, password,
// roles) lives in the forum's auth layer; the chat core reads profiles and
// mirrors presence onto is_online / last_seen_at.
type User struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username   string     `gorm:"type:varchar(64);uniqueIndex" json:"username"`
	FullName   string     `gorm:"type:varchar(128)" json:"full_name"`
	AvatarURL  string     `gorm:"type:text" json:"avatar_url"`
	Role       string     `gorm:"type:varchar(16);default:'USER'" json:"role"`
	IsOnline   bool       `gorm:"default:false" json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Profile is the projection attached to outbound messages and conversation
// listings.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Role      string    `json:"role"`
	IsOnline  bool      `json:"is_online"`
}

// ProfileOf builds the projection for u.
func ProfileOf(u User) Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		IsOnline:  u.IsOnline,
	}
}
