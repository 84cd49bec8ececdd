package repository

import (
	"context"
	"errors"
	"time"

	"forum-chat/internal/domain/message"
	chat_errors "forum-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Preload("Deletions").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, chat_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

// MarkAsRead sets status READ and stamps read_at once. Already-read messages
// are left untouched so retries are safe.
func (r *PostgresMessageRepository) MarkAsRead(ctx context.Context, messageID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND status <> ?", messageID, message.StatusRead).
		Updates(map[string]interface{}{
			"status":  message.StatusRead,
			"read_at": time.Now(),
		}).Error
}

// MarkAsDelivered only advances SENT rows; READ never regresses.
func (r *PostgresMessageRepository) MarkAsDelivered(ctx context.Context, messageID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND status = ?", messageID, message.StatusSent).
		Update("status", message.StatusDelivered).Error
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND receiver_id = ?", conversationID, userID).
		Where("status <> ?", message.StatusRead).
		Where("is_deleted = ? AND is_recalled = ?", false, false).
		Where("acceptance_status IN ?", visibleAcceptance()).
		Where("NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = messages.id AND d.user_id = ?)", userID).
		Updates(map[string]interface{}{
			"status":  message.StatusRead,
			"read_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) SoftDeleteForUser(ctx context.Context, messageID, userID uuid.UUID) error {
	deletion := message.Deletion{
		MessageID: messageID,
		UserID:    userID,
		DeletedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&deletion).Error
}

func (r *PostgresMessageRepository) DeleteAllForUserInConversation(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	// Insert a deletion marker for every message in the conversation the user
	// can still see.
	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO message_deletions (message_id, user_id, deleted_at)
		SELECT m.id, ?, ?
		FROM messages m
		WHERE m.conversation_id = ?
		  AND m.is_deleted = false
		  AND m.is_recalled = false
		  AND (m.acceptance_status IN (?, ?) OR m.sender_id = ?)
		  AND NOT EXISTS (
			SELECT 1 FROM message_deletions d
			WHERE d.message_id = m.id AND d.user_id = ?
		  )`,
		userID, time.Now(), conversationID,
		message.AcceptanceAccepted, message.AcceptanceAutoAccepted, userID,
		userID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) Recall(ctx context.Context, messageID uuid.UUID, participants []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&message.Message{}).
			Where("id = ? AND is_recalled = ?", messageID, false).
			Update("is_recalled", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrInvalidState
		}

		// Recall hides the message from both sides, same as a two-sided
		// delete.
		now := time.Now()
		for _, userID := range participants {
			deletion := message.Deletion{MessageID: messageID, UserID: userID, DeletedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&deletion).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresMessageRepository) EditContent(ctx context.Context, messageID uuid.UUID, newContent string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m message.Message
		if err := tx.Where("id = ?", messageID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return chat_errors.ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{
			"content":   newContent,
			"is_edited": true,
			"edited_at": time.Now(),
		}
		// The pre-edit text is captured once, on the first edit only.
		if !m.IsEdited {
			updates["original_content"] = m.Content
		}
		return tx.Model(&message.Message{}).Where("id = ?", messageID).Updates(updates).Error
	})
}

func (r *PostgresMessageRepository) Accept(ctx context.Context, messageID uuid.UUID) error {
	return r.transitionAcceptance(ctx, messageID, message.AcceptanceAccepted)
}

func (r *PostgresMessageRepository) Reject(ctx context.Context, messageID uuid.UUID) error {
	return r.transitionAcceptance(ctx, messageID, message.AcceptanceRejected)
}

// transitionAcceptance moves a PENDING message to its final state exactly
// once; the WHERE guard makes concurrent accept/reject race-safe. Recalled
// messages are frozen and never transition.
func (r *PostgresMessageRepository) transitionAcceptance(ctx context.Context, messageID uuid.UUID, to message.AcceptanceStatus) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND acceptance_status = ? AND is_recalled = ?", messageID, message.AcceptancePending, false).
		Update("acceptance_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&message.Message{}).Where("id = ?", messageID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return chat_errors.ErrNotFound
		}
		return chat_errors.ErrInvalidState
	}
	return nil
}

func (r *PostgresMessageRepository) ListConversationMessages(ctx context.Context, conversationID, userID uuid.UUID, page, limit int) ([]message.Message, error) {
	var messages []message.Message

	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Where("is_deleted = ? AND is_recalled = ?", false, false).
		Where("(acceptance_status IN ? OR sender_id = ?)", visibleAcceptance(), userID).
		Where("NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = messages.id AND d.user_id = ?)", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Newest-first pagination, oldest-first display order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *PostgresMessageRepository) UnreadCountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("receiver_id = ? AND status <> ?", userID, message.StatusRead).
		Where("is_deleted = ? AND is_recalled = ?", false, false).
		Where("acceptance_status IN ?", visibleAcceptance()).
		Where("NOT EXISTS (SELECT 1 FROM message_deletions d WHERE d.message_id = messages.id AND d.user_id = ?)", userID).
		Count(&count).Error
	return count, err
}

func (r *PostgresMessageRepository) PendingCountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("receiver_id = ? AND acceptance_status = ?", userID, message.AcceptancePending).
		Where("is_deleted = ? AND is_recalled = ?", false, false).
		Count(&count).Error
	return count, err
}

func (r *PostgresMessageRepository) CountAccepted(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ?", conversationID).
		Where("acceptance_status IN ?", visibleAcceptance()).
		Count(&count).Error
	return count, err
}

func visibleAcceptance() []message.AcceptanceStatus {
	return []message.AcceptanceStatus{message.AcceptanceAccepted, message.AcceptanceAutoAccepted}
}
