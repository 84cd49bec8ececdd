package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"forum-chat/internal/domain/conversation"
	"forum-chat/internal/domain/message"
	"forum-chat/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool, lastSeen time.Time) error
}

type ConversationRepository interface {
	// FindOrCreateDirect returns the direct conversation between the pair,
	// creating it if needed. Idempotent under concurrent calls: a uniqueness
	// conflict retries the lookup instead of failing the caller.
	FindOrCreateDirect(ctx context.Context, userA, userB uuid.UUID) (conversation.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)
	SetStatus(ctx context.Context, conversationID uuid.UUID, status conversation.Status) error

	// UpdateLastMessage advances the last-message pointer and increments the
	// visible message count. Only called for messages that cleared acceptance.
	UpdateLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error

	// MarkRead upserts the member's read watermark. With a nil messageID only
	// last_read_at advances.
	MarkRead(ctx context.Context, userID, conversationID uuid.UUID, messageID *uuid.UUID) error

	// UnreadCount computes the receiver's unread count from the message log
	// and the read watermark; nothing is stored.
	UnreadCount(ctx context.Context, userID, conversationID uuid.UUID) (int64, error)

	UpdateAcceptanceSettings(ctx context.Context, userID, conversationID uuid.UUID, requireAcceptance, autoAcceptKnown bool) error
	UpdateNotificationSettings(ctx context.Context, userID, conversationID uuid.UUID, notifyEnabled bool, mutedUntil *time.Time) error

	AddPendingMessage(ctx context.Context, conversationID, messageID uuid.UUID) error
	RemovePendingMessage(ctx context.Context, conversationID, messageID uuid.UUID) error
	PendingMessageIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)

	// MarkAsRead and MarkAsDelivered only ever move status forward; calls
	// that would regress are no-ops.
	MarkAsRead(ctx context.Context, messageID uuid.UUID) error
	MarkAsDelivered(ctx context.Context, messageID uuid.UUID) error
	// MarkConversationRead bulk-reads every visible unread message addressed
	// to userID and returns how many were marked.
	MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)

	SoftDeleteForUser(ctx context.Context, messageID, userID uuid.UUID) error
	// DeleteAllForUserInConversation bulk soft-deletes and returns the count.
	DeleteAllForUserInConversation(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)

	// Recall marks the message recalled and deleted for both participants.
	Recall(ctx context.Context, messageID uuid.UUID, participants []uuid.UUID) error
	EditContent(ctx context.Context, messageID uuid.UUID, newContent string) error

	// Accept and Reject transition a PENDING message exactly once.
	Accept(ctx context.Context, messageID uuid.UUID) error
	Reject(ctx context.Context, messageID uuid.UUID) error

	// ListConversationMessages returns the page of messages visible to
	// userID, oldest-first within the page.
	ListConversationMessages(ctx context.Context, conversationID, userID uuid.UUID, page, limit int) ([]message.Message, error)

	UnreadCountForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	PendingCountForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// CountAccepted feeds the acceptance policy's first-contact check.
	CountAccepted(ctx context.Context, conversationID uuid.UUID) (int64, error)
}
