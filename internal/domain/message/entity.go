package message

import (
	"time"

	"github.com/google/uuid"
)

// Message represents the messages table. Rows are never physically removed;
// recall and per-user deletes only set markers so the log keeps its order for
// the other participant.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_history,priority:1" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	ReceiverID     uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_receiver" json:"receiver_id"`

	Type        Type         `gorm:"type:varchar(16);default:'TEXT';not null" json:"type"`
	Content     string       `gorm:"type:text" json:"content"`
	Attachments []Attachment `gorm:"type:jsonb;serializer:json" json:"attachments,omitempty"`

	Status           Status           `gorm:"type:varchar(16);default:'SENT';not null" json:"status"`
	AcceptanceStatus AcceptanceStatus `gorm:"type:varchar(16);default:'PENDING';not null" json:"acceptance_status"`

	IsDeleted  bool `gorm:"default:false" json:"is_deleted"`
	IsRecalled bool `gorm:"default:false" json:"is_recalled"`
	IsEdited   bool `gorm:"default:false" json:"is_edited"`

	OriginalContent *string    `gorm:"type:text" json:"original_content,omitempty"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	CreatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_messages_history,priority:2,sort:desc" json:"created_at"`

	// Relations
	Deletions []Deletion `gorm:"foreignKey:MessageID" json:"deletions,omitempty"`
}

// Deletion is a per-user soft delete marker.
type Deletion struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	DeletedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"deleted_at"`
}

// Attachment is opaque metadata; storage and processing live outside the chat
// core.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Mime string `json:"mime"`
}

func (Message) TableName() string {
	return "messages"
}

func (Deletion) TableName() string {
	return "message_deletions"
}
