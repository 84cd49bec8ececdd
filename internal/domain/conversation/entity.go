package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. Direct conversations store
// their participant pair in canonical order (UserA < UserB) so the composite
// unique index keeps at most one row per unordered pair.
type Conversation struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Type   Type      `gorm:"type:varchar(16);default:'DIRECT';not null" json:"type"`
	Status Status    `gorm:"type:varchar(16);default:'ACTIVE';not null" json:"status"`

	UserA uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair,priority:1" json:"user_a"`
	UserB uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair,priority:2" json:"user_b"`

	LastMessageID *uuid.UUID `gorm:"type:uuid" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `gorm:"index:idx_conversations_last_message,sort:desc" json:"last_message_at,omitempty"`
	MessageCount  int64      `gorm:"not null;default:0" json:"message_count"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Members []Member `gorm:"foreignKey:ConversationID" json:"members,omitempty"`
}

// Member carries the per-participant state of a conversation: the read
// watermark, acceptance settings and notification settings.
type Member struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_members_user" json:"user_id"`

	LastReadMessageID *uuid.UUID `gorm:"type:uuid" json:"last_read_message_id,omitempty"`
	LastReadAt        *time.Time `json:"last_read_at,omitempty"`

	RequireAcceptance bool      `gorm:"default:true" json:"require_acceptance"`
	AutoAcceptKnown   bool      `gorm:"default:true" json:"auto_accept_known"`
	SettingsUpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"settings_updated_at"`

	NotifyEnabled bool       `gorm:"default:true" json:"notify_enabled"`
	MutedUntil    *time.Time `json:"muted_until,omitempty"`
}

// PendingMessage marks a message as awaiting the receiver's consent.
type PendingMessage struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_pending_conversation" json:"conversation_id"`
	MessageID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"message_id"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Member) TableName() string {
	return "conversation_members"
}

func (PendingMessage) TableName() string {
	return "conversation_pending_messages"
}

// CanonicalPair orders two user ids so the same unordered pair always maps to
// the same (UserA, UserB) columns.
func CanonicalPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if x.String() <= y.String() {
		return x, y
	}
	return y, x
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.UserA == userID || c.UserB == userID
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// Participants returns both participant ids.
func (c Conversation) Participants() []uuid.UUID {
	return []uuid.UUID{c.UserA, c.UserB}
}

// MemberFor returns the member row for userID, if present.
func (c Conversation) MemberFor(userID uuid.UUID) (Member, bool) {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}
