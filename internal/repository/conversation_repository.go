package repository

import (
	"context"
	"errors"
	"time"

	"forum-chat/internal/domain/conversation"
	"forum-chat/internal/domain/message"
	chat_errors "forum-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) FindOrCreateDirect(ctx context.Context, userA, userB uuid.UUID) (conversation.Conversation, error) {
	a, b := conversation.CanonicalPair(userA, userB)

	// Optimistic create, fall back to lookup on uniqueness conflict. Two
	// concurrent first sends between the same pair converge on one row.
	for attempt := 0; attempt < 3; attempt++ {
		existing, err := r.getByPair(ctx, a, b)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, chat_errors.ErrNotFound) {
			return conversation.Conversation{}, err
		}

		now := time.Now()
		conv := conversation.Conversation{
			ID:        uuid.New(),
			Type:      conversation.TypeDirect,
			Status:    conversation.StatusActive,
			UserA:     a,
			UserB:     b,
			CreatedAt: now,
			UpdatedAt: now,
			Members: []conversation.Member{
				newMember(a, now),
				newMember(b, now),
			},
		}
		err = r.db.WithContext(ctx).Create(&conv).Error
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return conversation.Conversation{}, err
		}
		// Lost the race; the next iteration re-fetches the winner's row.
	}
	return conversation.Conversation{}, chat_errors.ErrConflict
}

func newMember(userID uuid.UUID, now time.Time) conversation.Member {
	return conversation.Member{
		UserID:            userID,
		RequireAcceptance: true,
		AutoAcceptKnown:   true,
		NotifyEnabled:     true,
		SettingsUpdatedAt: now,
	}
}

func (r *PostgresConversationRepository) getByPair(ctx context.Context, a, b uuid.UUID) (conversation.Conversation, error) {
	var conv conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("user_a = ? AND user_b = ? AND type = ?", a, b, conversation.TypeDirect).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, chat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return conv, nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var conv conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, chat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return conv, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("(user_a = ? OR user_b = ?) AND status = ?", userID, userID, conversation.StatusActive)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := q.
		Preload("Members").
		Order("last_message_at DESC NULLS LAST").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) SetStatus(ctx context.Context, conversationID uuid.UUID, status conversation.Status) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) UpdateLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_id": messageID,
			"last_message_at": at,
			"message_count":   gorm.Expr("message_count + 1"),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) MarkRead(ctx context.Context, userID, conversationID uuid.UUID, messageID *uuid.UUID) error {
	now := time.Now()
	assignments := map[string]interface{}{"last_read_at": now}
	if messageID != nil {
		assignments["last_read_message_id"] = *messageID
	}

	member := conversation.Member{
		ConversationID:    conversationID,
		UserID:            userID,
		LastReadMessageID: messageID,
		LastReadAt:        &now,
		RequireAcceptance: true,
		AutoAcceptKnown:   true,
		NotifyEnabled:     true,
		SettingsUpdatedAt: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&member).Error
}

func (r *PostgresConversationRepository) UnreadCount(ctx context.Context, userID, conversationID uuid.UUID) (int64, error) {
	var member conversation.Member
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&member).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	// Anchor on the watermark message's timestamp when one exists; otherwise
	// every qualifying message counts.
	var anchor *time.Time
	if member.LastReadMessageID != nil {
		var watermark message.Message
		err := r.db.WithContext(ctx).
			Select("created_at").
			Where("id = ?", *member.LastReadMessageID).
			First(&watermark).Error
		if err == nil {
			anchor = &watermark.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND receiver_id = ?", conversationID, userID).
		Where("status <> ?", message.StatusRead).
		Where("is_deleted = ? AND is_recalled = ?", false, false).
		Where("acceptance_status IN ?", []message.AcceptanceStatus{message.AcceptanceAccepted, message.AcceptanceAutoAccepted}).
		Where("NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = messages.id AND d.user_id = ?)", userID)
	if anchor != nil {
		q = q.Where("created_at > ?", *anchor)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresConversationRepository) UpdateAcceptanceSettings(ctx context.Context, userID, conversationID uuid.UUID, requireAcceptance, autoAcceptKnown bool) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Member{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"require_acceptance":  requireAcceptance,
			"auto_accept_known":   autoAcceptKnown,
			"settings_updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) UpdateNotificationSettings(ctx context.Context, userID, conversationID uuid.UUID, notifyEnabled bool, mutedUntil *time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Member{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"notify_enabled":      notifyEnabled,
			"muted_until":         mutedUntil,
			"settings_updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) AddPendingMessage(ctx context.Context, conversationID, messageID uuid.UUID) error {
	pending := conversation.PendingMessage{
		ConversationID: conversationID,
		MessageID:      messageID,
		CreatedAt:      time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&pending).Error
}

func (r *PostgresConversationRepository) RemovePendingMessage(ctx context.Context, conversationID, messageID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND message_id = ?", conversationID, messageID).
		Delete(&conversation.PendingMessage{}).Error
}

func (r *PostgresConversationRepository) PendingMessageIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	var rows []conversation.PendingMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MessageID)
	}
	return ids, nil
}
