package services

import (
	"context"
	"strings"
	"time"

	"forum-chat/internal/domain/conversation"
	"forum-chat/internal/domain/message"
	"forum-chat/internal/domain/user"
	"forum-chat/internal/events"
	"forum-chat/internal/policy"
	"forum-chat/internal/repository"
	chat_errors "forum-chat/pkg/errors"
	"forum-chat/pkg/logger"

	"github.com/google/uuid"
)

// DeliveryService orchestrates every user-facing chat operation across the
// stores, the acceptance policy, the presence tracker and the realtime event
// stream. It is the only component whose side effects span more than one of
// them.
//
// Permission and state checks always run before any mutation, so a rejected
// operation leaves no partial state behind. Event emission is best-effort:
// a receiver that misses a push catches up from the stores on reconnect.
type DeliveryService struct {
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	userRepo  repository.UserRepository
	policy    *policy.AcceptanceEngine
	presence  PresenceView
	publisher events.Publisher
	log       *logger.Logger
	cfg       DeliveryConfig

	now func() time.Time
}

type DeliveryConfig struct {
	RecallWindow     time.Duration
	MaxContentLength int
	DefaultPageSize  int
	MaxPageSize      int
}

func NewDeliveryService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	engine *policy.AcceptanceEngine,
	presence PresenceView,
	publisher events.Publisher,
	log *logger.Logger,
	cfg DeliveryConfig,
) *DeliveryService {
	if cfg.RecallWindow == 0 {
		cfg.RecallWindow = 5 * time.Minute
	}
	if cfg.MaxContentLength == 0 {
		cfg.MaxContentLength = 2000
	}
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize == 0 {
		cfg.MaxPageSize = 100
	}
	return &DeliveryService{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		userRepo:  userRepo,
		policy:    engine,
		presence:  presence,
		publisher: publisher,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// MessageView is a message with the sender/receiver directory projections
// attached.
type MessageView struct {
	message.Message
	Sender   user.Profile `json:"sender"`
	Receiver user.Profile `json:"receiver"`
}

// ConversationView is a conversation as one participant sees it.
type ConversationView struct {
	conversation.Conversation
	Other       user.Profile `json:"other_participant"`
	UnreadCount int64        `json:"unread_count"`
}

type SendInput struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Content     string
	Type        message.Type
	Attachments []message.Attachment
}

// Send runs the full delivery path: validate, find-or-create the
// conversation, decide acceptance, persist, then either deliver immediately
// or park the message as pending.
func (s *DeliveryService) Send(ctx context.Context, in SendInput) (MessageView, error) {
	if err := s.validateSend(&in); err != nil {
		return MessageView{}, err
	}

	sender, err := s.userRepo.GetByID(ctx, in.SenderID)
	if err != nil {
		return MessageView{}, err
	}
	receiver, err := s.userRepo.GetByID(ctx, in.ReceiverID)
	if err != nil {
		return MessageView{}, err
	}

	conv, err := s.convRepo.FindOrCreateDirect(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return MessageView{}, err
	}
	if conv.Status == conversation.StatusBlocked {
		return MessageView{}, chat_errors.ErrPermissionDenied
	}

	settings := s.receiverSettings(conv, in.ReceiverID)
	acceptedCount, err := s.msgRepo.CountAccepted(ctx, conv.ID)
	if err != nil {
		return MessageView{}, err
	}
	decision := s.policy.Decide(settings, acceptedCount)

	msg := &message.Message{
		ID:               uuid.New(),
		ConversationID:   conv.ID,
		SenderID:         in.SenderID,
		ReceiverID:       in.ReceiverID,
		Type:             in.Type,
		Content:          in.Content,
		Attachments:      in.Attachments,
		Status:           message.StatusSent,
		AcceptanceStatus: decision,
		CreatedAt:        s.now(),
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return MessageView{}, err
	}

	if message.IsVisibleAcceptance(decision) {
		if err := s.deliverVisible(ctx, conv, msg); err != nil {
			return MessageView{}, err
		}
	} else {
		if err := s.convRepo.AddPendingMessage(ctx, conv.ID, msg.ID); err != nil {
			return MessageView{}, err
		}
		// The receiver gets a consent prompt; the sender sees nothing
		// special since the message already sits in their own log.
		s.emitToUser(ctx, in.ReceiverID, events.New(events.EventPendingMessage, events.AggregateMessage, msg.ID.String(), map[string]interface{}{
			"message_id":      msg.ID,
			"conversation_id": conv.ID,
			"sender_id":       sender.ID,
			"sender_name":     sender.FullName,
			"content":         msg.Content,
			"timestamp":       msg.CreatedAt.UTC(),
		}))
	}

	return s.view(*msg, sender, receiver), nil
}

// deliverVisible applies the post-acceptance side effects shared by
// auto-accepted sends and explicit accepts.
func (s *DeliveryService) deliverVisible(ctx context.Context, conv conversation.Conversation, msg *message.Message) error {
	if err := s.convRepo.UpdateLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		return err
	}
	// The sender's own copy is implicitly read by them.
	if err := s.convRepo.MarkRead(ctx, msg.SenderID, conv.ID, &msg.ID); err != nil {
		return err
	}
	if s.presence != nil && s.presence.IsOnline(msg.ReceiverID) {
		if err := s.msgRepo.MarkAsDelivered(ctx, msg.ID); err != nil {
			return err
		}
		msg.Status = message.StatusDelivered
	}

	newMsg := events.New(events.EventNewMessage, events.AggregateMessage, msg.ID.String(), msg)
	update := events.New(events.EventConversationUpdate, events.AggregateConversation, conv.ID.String(), map[string]interface{}{
		"conversation_id": conv.ID,
		"last_message":    msg,
		"last_message_at": msg.CreatedAt.UTC(),
		"sender_id":       msg.SenderID,
	})
	s.emitToUser(ctx, msg.SenderID, newMsg)
	s.emitToUser(ctx, msg.ReceiverID, newMsg)
	s.emitToUser(ctx, msg.SenderID, update)
	s.emitToUser(ctx, msg.ReceiverID, update)
	return nil
}

// MarkMessageRead transitions one message to read; only the receiver may do
// this. Re-reading an already-read message is a safe no-op.
func (s *DeliveryService) MarkMessageRead(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != userID {
		return chat_errors.ErrPermissionDenied
	}
	if !message.CanAdvance(msg.Status, message.StatusRead) {
		return nil
	}

	if err := s.msgRepo.MarkAsRead(ctx, messageID); err != nil {
		return err
	}
	if err := s.convRepo.MarkRead(ctx, userID, msg.ConversationID, &messageID); err != nil {
		return err
	}

	if s.presence != nil && s.presence.IsOnline(msg.SenderID) {
		s.emitToUser(ctx, msg.SenderID, events.New(events.EventMessageRead, events.AggregateMessage, messageID.String(), map[string]interface{}{
			"message_id": messageID,
			"read_by":    userID,
			"read_at":    s.now().UTC(),
		}))
	}
	return nil
}

// MarkConversationRead bulk-reads everything unread addressed to userID and
// anchors the read watermark to the conversation's latest message.
func (s *DeliveryService) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(userID) {
		return 0, chat_errors.ErrPermissionDenied
	}

	count, err := s.msgRepo.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if err := s.convRepo.MarkRead(ctx, userID, conversationID, conv.LastMessageID); err != nil {
		return 0, err
	}

	s.emitToUser(ctx, conv.OtherParticipant(userID), events.New(events.EventConversationRead, events.AggregateConversation, conversationID.String(), map[string]interface{}{
		"conversation_id": conversationID,
		"read_by":         userID,
		"marked_count":    count,
	}))
	return count, nil
}

// AcceptMessage promotes a pending message; only the receiver may call it.
// The pending marker is removed only after the transition succeeds.
func (s *DeliveryService) AcceptMessage(ctx context.Context, messageID, userID uuid.UUID) (MessageView, error) {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return MessageView{}, err
	}
	if msg.ReceiverID != userID {
		return MessageView{}, chat_errors.ErrPermissionDenied
	}
	if msg.IsRecalled {
		return MessageView{}, chat_errors.ErrInvalidState
	}

	if err := s.msgRepo.Accept(ctx, messageID); err != nil {
		return MessageView{}, err
	}
	msg.AcceptanceStatus = message.AcceptanceAccepted

	if err := s.convRepo.RemovePendingMessage(ctx, msg.ConversationID, messageID); err != nil {
		return MessageView{}, err
	}

	conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return MessageView{}, err
	}
	if err := s.deliverVisible(ctx, conv, &msg); err != nil {
		return MessageView{}, err
	}

	accepted := events.New(events.EventMessageAccepted, events.AggregateMessage, messageID.String(), map[string]interface{}{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
	})
	s.emitToUser(ctx, msg.SenderID, accepted)
	s.emitToUser(ctx, msg.ReceiverID, accepted)

	return s.viewWithProfiles(ctx, msg)
}

// RejectMessage declines a pending message. Nothing enters the receiver's
// log; the sender is told their message was rejected.
func (s *DeliveryService) RejectMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != userID {
		return chat_errors.ErrPermissionDenied
	}
	if msg.IsRecalled {
		return chat_errors.ErrInvalidState
	}

	if err := s.msgRepo.Reject(ctx, messageID); err != nil {
		return err
	}
	if err := s.convRepo.RemovePendingMessage(ctx, msg.ConversationID, messageID); err != nil {
		return err
	}

	s.emitToUser(ctx, msg.SenderID, events.New(events.EventMessageRejected, events.AggregateMessage, messageID.String(), map[string]interface{}{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
	}))
	return nil
}

// RecallMessage retracts a message within the recall window, removing it from
// both participants' views.
func (s *DeliveryService) RecallMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return chat_errors.ErrPermissionDenied
	}
	if msg.IsRecalled {
		return chat_errors.ErrInvalidState
	}
	if !message.RecallWindowOpen(msg.CreatedAt, s.now(), s.cfg.RecallWindow) {
		return chat_errors.ErrInvalidState
	}

	conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if err := s.msgRepo.Recall(ctx, messageID, conv.Participants()); err != nil {
		return err
	}

	// A message recalled while still awaiting consent must also leave the
	// pending queue, or a later accept would deliver an invisible message.
	if msg.AcceptanceStatus == message.AcceptancePending {
		if err := s.convRepo.RemovePendingMessage(ctx, msg.ConversationID, messageID); err != nil {
			return err
		}
	}

	recalled := events.New(events.EventMessageRecalled, events.AggregateMessage, messageID.String(), map[string]interface{}{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
		"recalled_by":     userID,
	})
	for _, participant := range conv.Participants() {
		s.emitToUser(ctx, participant, recalled)
	}
	return nil
}

// EditMessage rewrites content in place, keeping the pre-edit text once.
func (s *DeliveryService) EditMessage(ctx context.Context, messageID, userID uuid.UUID, newContent string) (MessageView, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" || len(newContent) > s.cfg.MaxContentLength {
		return MessageView{}, chat_errors.ErrValidation
	}

	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return MessageView{}, err
	}
	if msg.SenderID != userID {
		return MessageView{}, chat_errors.ErrPermissionDenied
	}
	if msg.IsRecalled || msg.AcceptanceStatus == message.AcceptanceRejected {
		return MessageView{}, chat_errors.ErrInvalidState
	}

	if err := s.msgRepo.EditContent(ctx, messageID, newContent); err != nil {
		return MessageView{}, err
	}
	if !msg.IsEdited {
		original := msg.Content
		msg.OriginalContent = &original
	}
	msg.Content = newContent
	msg.IsEdited = true
	now := s.now()
	msg.EditedAt = &now

	edited := events.New(events.EventMessageEdited, events.AggregateMessage, messageID.String(), map[string]interface{}{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
		"content":         newContent,
		"edited_at":       now.UTC(),
	})
	s.emitToUser(ctx, msg.SenderID, edited)
	s.emitToUser(ctx, msg.ReceiverID, edited)

	return s.viewWithProfiles(ctx, msg)
}

// DeleteMessage hides a message for the calling participant only.
func (s *DeliveryService) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID && msg.ReceiverID != userID {
		return chat_errors.ErrPermissionDenied
	}

	if err := s.msgRepo.SoftDeleteForUser(ctx, messageID, userID); err != nil {
		return err
	}

	// Only the deleting user's own sessions hear about this.
	s.emitToUser(ctx, userID, events.New(events.EventMessageDeleted, events.AggregateMessage, messageID.String(), map[string]interface{}{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
	}))
	return nil
}

// DeleteAllMessagesForUser clears the whole thread for one side.
func (s *DeliveryService) DeleteAllMessagesForUser(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(userID) {
		return 0, chat_errors.ErrPermissionDenied
	}

	count, err := s.msgRepo.DeleteAllForUserInConversation(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}

	s.emitToUser(ctx, userID, events.New(events.EventAllMessagesDeleted, events.AggregateConversation, conversationID.String(), map[string]interface{}{
		"conversation_id": conversationID,
		"deleted_count":   count,
	}))
	return count, nil
}

// FindOrCreateConversation is the create-or-get surface for the UI.
func (s *DeliveryService) FindOrCreateConversation(ctx context.Context, userID, otherID uuid.UUID) (ConversationView, error) {
	if userID == otherID {
		return ConversationView{}, chat_errors.ErrValidation
	}
	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return ConversationView{}, err
	}

	conv, err := s.convRepo.FindOrCreateDirect(ctx, userID, otherID)
	if err != nil {
		return ConversationView{}, err
	}
	return s.conversationView(ctx, conv, userID)
}

func (s *DeliveryService) ListConversations(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]ConversationView, int64, error) {
	page, pageSize = s.normalizePage(page, pageSize)
	conversations, total, err := s.convRepo.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	views := make([]ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		view, err := s.conversationView(ctx, conv, userID)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, view)
	}
	return views, total, nil
}

func (s *DeliveryService) ListMessages(ctx context.Context, conversationID, userID uuid.UUID, page, pageSize int) ([]MessageView, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, chat_errors.ErrPermissionDenied
	}

	page, pageSize = s.normalizePage(page, pageSize)
	messages, err := s.msgRepo.ListConversationMessages(ctx, conversationID, userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	profiles, err := s.profiles(ctx, conv.UserA, conv.UserB)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, MessageView{
			Message:  msg,
			Sender:   profiles[msg.SenderID],
			Receiver: profiles[msg.ReceiverID],
		})
	}
	return views, nil
}

func (s *DeliveryService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.msgRepo.UnreadCountForUser(ctx, userID)
}

func (s *DeliveryService) PendingCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.msgRepo.PendingCountForUser(ctx, userID)
}

func (s *DeliveryService) UpdateAcceptanceSettings(ctx context.Context, conversationID, userID uuid.UUID, requireAcceptance, autoAcceptKnown bool) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return chat_errors.ErrPermissionDenied
	}
	return s.convRepo.UpdateAcceptanceSettings(ctx, userID, conversationID, requireAcceptance, autoAcceptKnown)
}

// SetConversationStatus archives, blocks or reactivates a conversation.
// Either participant may change it; BLOCKED stops sends in both directions.
func (s *DeliveryService) SetConversationStatus(ctx context.Context, conversationID, userID uuid.UUID, status conversation.Status) error {
	switch status {
	case conversation.StatusActive, conversation.StatusArchived, conversation.StatusBlocked:
	default:
		return chat_errors.ErrValidation
	}
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return chat_errors.ErrPermissionDenied
	}
	return s.convRepo.SetStatus(ctx, conversationID, status)
}

func (s *DeliveryService) UpdateNotificationSettings(ctx context.Context, conversationID, userID uuid.UUID, notifyEnabled bool, mutedUntil *time.Time) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return chat_errors.ErrPermissionDenied
	}
	return s.convRepo.UpdateNotificationSettings(ctx, userID, conversationID, notifyEnabled, mutedUntil)
}

// CanAccessConversation gates websocket room joins.
func (s *DeliveryService) CanAccessConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return chat_errors.ErrPermissionDenied
	}
	return nil
}

func (s *DeliveryService) validateSend(in *SendInput) error {
	if in.SenderID == uuid.Nil || in.ReceiverID == uuid.Nil || in.SenderID == in.ReceiverID {
		return chat_errors.ErrValidation
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && len(in.Attachments) == 0 {
		return chat_errors.ErrValidation
	}
	if len(in.Content) > s.cfg.MaxContentLength {
		return chat_errors.ErrValidation
	}
	if in.Type == "" {
		in.Type = message.TypeText
	}
	switch in.Type {
	case message.TypeText, message.TypeImage, message.TypeFile, message.TypeSystem:
	default:
		return chat_errors.ErrValidation
	}
	return nil
}

func (s *DeliveryService) receiverSettings(conv conversation.Conversation, receiverID uuid.UUID) conversation.Member {
	if member, ok := conv.MemberFor(receiverID); ok {
		return member
	}
	// Missing member rows fall back to the gated defaults.
	return conversation.Member{RequireAcceptance: true, AutoAcceptKnown: true}
}

func (s *DeliveryService) normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	return page, pageSize
}

func (s *DeliveryService) conversationView(ctx context.Context, conv conversation.Conversation, userID uuid.UUID) (ConversationView, error) {
	otherID := conv.OtherParticipant(userID)
	profiles, err := s.profiles(ctx, otherID)
	if err != nil {
		return ConversationView{}, err
	}
	unread, err := s.convRepo.UnreadCount(ctx, userID, conv.ID)
	if err != nil {
		return ConversationView{}, err
	}
	return ConversationView{
		Conversation: conv,
		Other:        profiles[otherID],
		UnreadCount:  unread,
	}, nil
}

func (s *DeliveryService) viewWithProfiles(ctx context.Context, msg message.Message) (MessageView, error) {
	profiles, err := s.profiles(ctx, msg.SenderID, msg.ReceiverID)
	if err != nil {
		return MessageView{}, err
	}
	return MessageView{
		Message:  msg,
		Sender:   profiles[msg.SenderID],
		Receiver: profiles[msg.ReceiverID],
	}, nil
}

func (s *DeliveryService) view(msg message.Message, sender, receiver user.User) MessageView {
	senderProfile := user.ProfileOf(sender)
	receiverProfile := user.ProfileOf(receiver)
	if s.presence != nil {
		senderProfile.IsOnline = s.presence.IsOnline(sender.ID)
		receiverProfile.IsOnline = s.presence.IsOnline(receiver.ID)
	}
	return MessageView{Message: msg, Sender: senderProfile, Receiver: receiverProfile}
}

func (s *DeliveryService) profiles(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]user.Profile, error) {
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]user.Profile, len(users))
	for _, u := range users {
		p := user.ProfileOf(u)
		if s.presence != nil {
			p.IsOnline = s.presence.IsOnline(u.ID)
		}
		out[u.ID] = p
	}
	return out, nil
}

// emitToUser pushes one event onto the user's route. Failures are logged and
// swallowed; persisted state is the source of truth and realtime delivery is
// best-effort.
func (s *DeliveryService) emitToUser(ctx context.Context, userID uuid.UUID, env events.Envelope) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishToUser(ctx, userID, env); err != nil && s.log != nil {
		s.log.ErrorfCtx(ctx, "delivery: emit %s to %s failed: %v", env.EventType, userID, err)
	}
}
