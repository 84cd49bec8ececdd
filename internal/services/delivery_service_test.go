package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"forum-chat/internal/domain/conversation"
	"forum-chat/internal/domain/message"
	"forum-chat/internal/domain/user"
	"forum-chat/internal/events"
	"forum-chat/internal/policy"
	chat_errors "forum-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory doubles for the three stores. They mirror the repository
// contracts closely enough to exercise the coordinator's sequencing:
// guarded state transitions, visibility filtering, pending markers.

type memUserRepo struct {
	users map[uuid.UUID]user.User
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return user.User{}, chat_errors.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]user.User, error) {
	out := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (user.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, chat_errors.ErrNotFound
}

func (r *memUserRepo) UpdateOnlineStatus(_ context.Context, userID uuid.UUID, isOnline bool, lastSeen time.Time) error {
	u, ok := r.users[userID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	u.IsOnline = isOnline
	u.LastSeenAt = &lastSeen
	r.users[userID] = u
	return nil
}

type memConvRepo struct {
	conversations map[uuid.UUID]*conversation.Conversation
	pending       map[uuid.UUID][]uuid.UUID
	messages      *memMsgRepo
}

func (r *memConvRepo) FindOrCreateDirect(_ context.Context, x, y uuid.UUID) (conversation.Conversation, error) {
	a, b := conversation.CanonicalPair(x, y)
	for _, c := range r.conversations {
		if c.UserA == a && c.UserB == b {
			return *c, nil
		}
	}
	c := &conversation.Conversation{
		ID:     uuid.New(),
		Type:   conversation.TypeDirect,
		Status: conversation.StatusActive,
		UserA:  a,
		UserB:  b,
		Members: []conversation.Member{
			{UserID: a, RequireAcceptance: true, AutoAcceptKnown: true, NotifyEnabled: true},
			{UserID: b, RequireAcceptance: true, AutoAcceptKnown: true, NotifyEnabled: true},
		},
	}
	c.Members[0].ConversationID = c.ID
	c.Members[1].ConversationID = c.ID
	r.conversations[c.ID] = c
	return *c, nil
}

func (r *memConvRepo) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	c, ok := r.conversations[id]
	if !ok {
		return conversation.Conversation{}, chat_errors.ErrNotFound
	}
	return *c, nil
}

func (r *memConvRepo) ListForUser(_ context.Context, userID uuid.UUID, _, _ int) ([]conversation.Conversation, int64, error) {
	var out []conversation.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memConvRepo) SetStatus(_ context.Context, id uuid.UUID, status conversation.Status) error {
	c, ok := r.conversations[id]
	if !ok {
		return chat_errors.ErrNotFound
	}
	c.Status = status
	return nil
}

func (r *memConvRepo) UpdateLastMessage(_ context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	id := messageID
	ts := at
	c.LastMessageID = &id
	c.LastMessageAt = &ts
	c.MessageCount++
	return nil
}

func (r *memConvRepo) MarkRead(_ context.Context, userID, conversationID uuid.UUID, messageID *uuid.UUID) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	now := time.Now()
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			if messageID != nil {
				id := *messageID
				c.Members[i].LastReadMessageID = &id
			}
			c.Members[i].LastReadAt = &now
		}
	}
	return nil
}

func (r *memConvRepo) UnreadCount(_ context.Context, userID, conversationID uuid.UUID) (int64, error) {
	var n int64
	for _, m := range r.messages.order {
		msg := r.messages.byID[m]
		if msg.ConversationID == conversationID && msg.ReceiverID == userID &&
			msg.Status != message.StatusRead && msg.VisibleTo(userID) {
			n++
		}
	}
	return n, nil
}

func (r *memConvRepo) UpdateAcceptanceSettings(_ context.Context, userID, conversationID uuid.UUID, requireAcceptance, autoAcceptKnown bool) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			c.Members[i].RequireAcceptance = requireAcceptance
			c.Members[i].AutoAcceptKnown = autoAcceptKnown
			c.Members[i].SettingsUpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *memConvRepo) UpdateNotificationSettings(_ context.Context, userID, conversationID uuid.UUID, notifyEnabled bool, mutedUntil *time.Time) error {
	c, ok := r.conversations[conversationID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			c.Members[i].NotifyEnabled = notifyEnabled
			c.Members[i].MutedUntil = mutedUntil
		}
	}
	return nil
}

func (r *memConvRepo) AddPendingMessage(_ context.Context, conversationID, messageID uuid.UUID) error {
	r.pending[conversationID] = append(r.pending[conversationID], messageID)
	return nil
}

func (r *memConvRepo) RemovePendingMessage(_ context.Context, conversationID, messageID uuid.UUID) error {
	ids := r.pending[conversationID]
	for i, id := range ids {
		if id == messageID {
			r.pending[conversationID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memConvRepo) PendingMessageIDs(_ context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	return r.pending[conversationID], nil
}

type memMsgRepo struct {
	byID  map[uuid.UUID]*message.Message
	order []uuid.UUID
}

func (r *memMsgRepo) Create(_ context.Context, m *message.Message) error {
	cp := *m
	r.byID[m.ID] = &cp
	r.order = append(r.order, m.ID)
	return nil
}

func (r *memMsgRepo) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	m, ok := r.byID[id]
	if !ok {
		return message.Message{}, chat_errors.ErrNotFound
	}
	return *m, nil
}

func (r *memMsgRepo) MarkAsRead(_ context.Context, id uuid.UUID) error {
	m, ok := r.byID[id]
	if !ok {
		return chat_errors.ErrNotFound
	}
	if message.CanAdvance(m.Status, message.StatusRead) {
		m.Status = message.StatusRead
		now := time.Now()
		m.ReadAt = &now
	}
	return nil
}

func (r *memMsgRepo) MarkAsDelivered(_ context.Context, id uuid.UUID) error {
	m, ok := r.byID[id]
	if !ok {
		return chat_errors.ErrNotFound
	}
	if message.CanAdvance(m.Status, message.StatusDelivered) {
		m.Status = message.StatusDelivered
	}
	return nil
}

func (r *memMsgRepo) MarkConversationRead(_ context.Context, conversationID, userID uuid.UUID) (int64, error) {
	var n int64
	for _, id := range r.order {
		m := r.byID[id]
		if m.ConversationID == conversationID && m.ReceiverID == userID &&
			m.Status != message.StatusRead && m.VisibleTo(userID) {
			m.Status = message.StatusRead
			now := time.Now()
			m.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) SoftDeleteForUser(_ context.Context, messageID, userID uuid.UUID) error {
	m, ok := r.byID[messageID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	m.Deletions = append(m.Deletions, message.Deletion{MessageID: messageID, UserID: userID, DeletedAt: time.Now()})
	return nil
}

func (r *memMsgRepo) DeleteAllForUserInConversation(_ context.Context, conversationID, userID uuid.UUID) (int64, error) {
	var n int64
	for _, id := range r.order {
		m := r.byID[id]
		if m.ConversationID == conversationID && m.VisibleTo(userID) {
			m.Deletions = append(m.Deletions, message.Deletion{MessageID: id, UserID: userID, DeletedAt: time.Now()})
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) Recall(_ context.Context, messageID uuid.UUID, participants []uuid.UUID) error {
	m, ok := r.byID[messageID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	if m.IsRecalled {
		return chat_errors.ErrInvalidState
	}
	m.IsRecalled = true
	for _, p := range participants {
		m.Deletions = append(m.Deletions, message.Deletion{MessageID: messageID, UserID: p, DeletedAt: time.Now()})
	}
	return nil
}

func (r *memMsgRepo) EditContent(_ context.Context, messageID uuid.UUID, newContent string) error {
	m, ok := r.byID[messageID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	if !m.IsEdited {
		original := m.Content
		m.OriginalContent = &original
	}
	m.Content = newContent
	m.IsEdited = true
	now := time.Now()
	m.EditedAt = &now
	return nil
}

func (r *memMsgRepo) Accept(_ context.Context, messageID uuid.UUID) error {
	return r.transition(messageID, message.AcceptanceAccepted)
}

func (r *memMsgRepo) Reject(_ context.Context, messageID uuid.UUID) error {
	return r.transition(messageID, message.AcceptanceRejected)
}

func (r *memMsgRepo) transition(messageID uuid.UUID, next message.AcceptanceStatus) error {
	m, ok := r.byID[messageID]
	if !ok {
		return chat_errors.ErrNotFound
	}
	if m.AcceptanceStatus != message.AcceptancePending || m.IsRecalled {
		return chat_errors.ErrInvalidState
	}
	m.AcceptanceStatus = next
	return nil
}

func (r *memMsgRepo) ListConversationMessages(_ context.Context, conversationID, userID uuid.UUID, _, _ int) ([]message.Message, error) {
	var out []message.Message
	for _, id := range r.order {
		m := r.byID[id]
		if m.ConversationID == conversationID && m.VisibleTo(userID) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMsgRepo) UnreadCountForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, id := range r.order {
		m := r.byID[id]
		if m.ReceiverID == userID && m.Status != message.StatusRead && m.VisibleTo(userID) {
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) PendingCountForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, id := range r.order {
		m := r.byID[id]
		if m.ReceiverID == userID && m.AcceptanceStatus == message.AcceptancePending && !m.IsRecalled {
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) CountAccepted(_ context.Context, conversationID uuid.UUID) (int64, error) {
	var n int64
	for _, id := range r.order {
		m := r.byID[id]
		if m.ConversationID == conversationID && message.IsVisibleAcceptance(m.AcceptanceStatus) {
			n++
		}
	}
	return n, nil
}

type recordedEvent struct {
	userID uuid.UUID
	env    events.Envelope
}

type recordPublisher struct {
	toUser []recordedEvent
}

func (p *recordPublisher) PublishToUser(_ context.Context, userID uuid.UUID, env events.Envelope) error {
	p.toUser = append(p.toUser, recordedEvent{userID: userID, env: env})
	return nil
}

func (p *recordPublisher) PublishToConversation(context.Context, uuid.UUID, events.Envelope) error {
	return nil
}

func (p *recordPublisher) Broadcast(context.Context, events.Envelope) error {
	return nil
}

func (p *recordPublisher) eventsFor(userID uuid.UUID, eventType string) []recordedEvent {
	var out []recordedEvent
	for _, e := range p.toUser {
		if e.userID == userID && e.env.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type stubPresence struct {
	online map[uuid.UUID]bool
}

func (p *stubPresence) IsOnline(userID uuid.UUID) bool { return p.online[userID] }

func (p *stubPresence) ListOnline() []uuid.UUID {
	var out []uuid.UUID
	for id, on := range p.online {
		if on {
			out = append(out, id)
		}
	}
	return out
}

type deliveryFixture struct {
	svc       *DeliveryService
	users     *memUserRepo
	convs     *memConvRepo
	msgs      *memMsgRepo
	presence  *stubPresence
	publisher *recordPublisher
	alice     uuid.UUID
	bob       uuid.UUID
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	msgs := &memMsgRepo{byID: map[uuid.UUID]*message.Message{}}
	convs := &memConvRepo{
		conversations: map[uuid.UUID]*conversation.Conversation{},
		pending:       map[uuid.UUID][]uuid.UUID{},
		messages:      msgs,
	}
	users := &memUserRepo{users: map[uuid.UUID]user.User{}}
	presence := &stubPresence{online: map[uuid.UUID]bool{}}
	publisher := &recordPublisher{}

	alice := uuid.New()
	bob := uuid.New()
	users.users[alice] = user.User{ID: alice, Username: "alice", FullName: "Alice A"}
	users.users[bob] = user.User{ID: bob, Username: "bob", FullName: "Bob B"}

	svc := NewDeliveryService(convs, msgs, users, policy.NewAcceptanceEngine(), presence, publisher, nil, DeliveryConfig{
		RecallWindow:     5 * time.Minute,
		MaxContentLength: 2000,
	})
	return &deliveryFixture{
		svc: svc, users: users, convs: convs, msgs: msgs,
		presence: presence, publisher: publisher,
		alice: alice, bob: bob,
	}
}

func (f *deliveryFixture) send(t *testing.T, from, to uuid.UUID, content string) MessageView {
	t.Helper()
	view, err := f.svc.Send(context.Background(), SendInput{SenderID: from, ReceiverID: to, Content: content})
	require.NoError(t, err)
	return view
}

func (f *deliveryFixture) disableAcceptance(t *testing.T, userID, otherID uuid.UUID) uuid.UUID {
	t.Helper()
	conv, err := f.convs.FindOrCreateDirect(context.Background(), userID, otherID)
	require.NoError(t, err)
	require.NoError(t, f.convs.UpdateAcceptanceSettings(context.Background(), userID, conv.ID, false, true))
	return conv.ID
}

func TestSendFirstContactHeldPending(t *testing.T) {
	f := newDeliveryFixture(t)

	view := f.send(t, f.alice, f.bob, "hey, question about the assignment")

	assert.Equal(t, message.AcceptancePending, view.AcceptanceStatus)
	assert.Equal(t, message.StatusSent, view.Status)

	conv, err := f.convs.GetByID(context.Background(), view.ConversationID)
	require.NoError(t, err)
	assert.Nil(t, conv.LastMessageID, "pending messages must not advance the last-message pointer")
	assert.EqualValues(t, 0, conv.MessageCount)

	pending, err := f.convs.PendingMessageIDs(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{view.ID}, pending)

	assert.Len(t, f.publisher.eventsFor(f.bob, events.EventPendingMessage), 1)
	assert.Empty(t, f.publisher.eventsFor(f.bob, events.EventNewMessage))
	assert.Empty(t, f.publisher.eventsFor(f.alice, events.EventPendingMessage))

	// The sender still sees their own message; the receiver sees nothing.
	senderView, err := f.svc.ListMessages(context.Background(), conv.ID, f.alice, 1, 20)
	require.NoError(t, err)
	assert.Len(t, senderView, 1)
	receiverView, err := f.svc.ListMessages(context.Background(), conv.ID, f.bob, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, receiverView)
}

func TestAcceptDeliversAndUnlocksConversation(t *testing.T) {
	f := newDeliveryFixture(t)

	first := f.send(t, f.alice, f.bob, "hello")
	accepted, err := f.svc.AcceptMessage(context.Background(), first.ID, f.bob)
	require.NoError(t, err)
	assert.Equal(t, message.AcceptanceAccepted, accepted.AcceptanceStatus)

	conv, err := f.convs.GetByID(context.Background(), first.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessageID)
	assert.Equal(t, first.ID, *conv.LastMessageID)
	assert.EqualValues(t, 1, conv.MessageCount)

	pending, err := f.convs.PendingMessageIDs(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Len(t, f.publisher.eventsFor(f.alice, events.EventMessageAccepted), 1)
	assert.Len(t, f.publisher.eventsFor(f.bob, events.EventNewMessage), 1)

	// Alice is now a known sender, so the next message skips the gate.
	second := f.send(t, f.alice, f.bob, "thanks for accepting")
	assert.Equal(t, message.AcceptanceAutoAccepted, second.AcceptanceStatus)
}

func TestAcceptOnlyReceiverAndOnlyOnce(t *testing.T) {
	f := newDeliveryFixture(t)

	msg := f.send(t, f.alice, f.bob, "hello")

	_, err := f.svc.AcceptMessage(context.Background(), msg.ID, f.alice)
	assert.ErrorIs(t, err, chat_errors.ErrPermissionDenied)

	_, err = f.svc.AcceptMessage(context.Background(), msg.ID, f.bob)
	require.NoError(t, err)
	_, err = f.svc.AcceptMessage(context.Background(), msg.ID, f.bob)
	assert.ErrorIs(t, err, chat_errors.ErrInvalidState)
}

func TestRejectKeepsMessageHidden(t *testing.T) {
	f := newDeliveryFixture(t)

	msg := f.send(t, f.alice, f.bob, "buy my notes")
	require.NoError(t, f.svc.RejectMessage(context.Background(), msg.ID, f.bob))

	stored, err := f.msgs.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, message.AcceptanceRejected, stored.AcceptanceStatus)
	assert.False(t, stored.VisibleTo(f.bob))
	assert.True(t, stored.VisibleTo(f.alice), "the sender keeps their copy")

	pending, err := f.convs.PendingMessageIDs(context.Background(), msg.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Len(t, f.publisher.eventsFor(f.alice, events.EventMessageRejected), 1)

	// A later message from the same sender is still gated: nothing was
	// ever accepted.
	next := f.send(t, f.alice, f.bob, "please?")
	assert.Equal(t, message.AcceptancePending, next.AcceptanceStatus)
}

func TestSendAutoAcceptsWhenReceiverDisablesGate(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)
	f.presence.online[f.bob] = true

	view := f.send(t, f.alice, f.bob, "hello")

	assert.Equal(t, message.AcceptanceAutoAccepted, view.AcceptanceStatus)
	assert.Equal(t, message.StatusDelivered, view.Status, "online receiver gets an immediate delivery tick")
	assert.Len(t, f.publisher.eventsFor(f.bob, events.EventNewMessage), 1)
	assert.Len(t, f.publisher.eventsFor(f.bob, events.EventConversationUpdate), 1)
}

func TestSendOfflineReceiverStaysSent(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	view := f.send(t, f.alice, f.bob, "hello")
	assert.Equal(t, message.StatusSent, view.Status)
}

func TestSendValidation(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, SendInput{SenderID: f.alice, ReceiverID: f.bob, Content: "   "})
	assert.ErrorIs(t, err, chat_errors.ErrValidation)

	_, err = f.svc.Send(ctx, SendInput{SenderID: f.alice, ReceiverID: f.alice, Content: "hi"})
	assert.ErrorIs(t, err, chat_errors.ErrValidation)

	_, err = f.svc.Send(ctx, SendInput{SenderID: f.alice, ReceiverID: f.bob, Content: strings.Repeat("x", 2001)})
	assert.ErrorIs(t, err, chat_errors.ErrValidation)

	_, err = f.svc.Send(ctx, SendInput{SenderID: f.alice, ReceiverID: uuid.New(), Content: "hi"})
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestSendBlockedConversation(t *testing.T) {
	f := newDeliveryFixture(t)
	conv, err := f.convs.FindOrCreateDirect(context.Background(), f.alice, f.bob)
	require.NoError(t, err)
	require.NoError(t, f.convs.SetStatus(context.Background(), conv.ID, conversation.StatusBlocked))

	_, err = f.svc.Send(context.Background(), SendInput{SenderID: f.alice, ReceiverID: f.bob, Content: "hi"})
	assert.ErrorIs(t, err, chat_errors.ErrPermissionDenied)
}

func TestRecallWithinWindow(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	view := f.send(t, f.alice, f.bob, "typo everywhere")
	require.NoError(t, f.svc.RecallMessage(context.Background(), view.ID, f.alice))

	stored, err := f.msgs.GetByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRecalled)
	assert.False(t, stored.VisibleTo(f.alice))
	assert.False(t, stored.VisibleTo(f.bob))

	assert.Len(t, f.publisher.eventsFor(f.alice, events.EventMessageRecalled), 1)
	assert.Len(t, f.publisher.eventsFor(f.bob, events.EventMessageRecalled), 1)

	// Recalling again reports the bad state.
	assert.ErrorIs(t, f.svc.RecallMessage(context.Background(), view.ID, f.alice), chat_errors.ErrInvalidState)
}

func TestRecallWindowExpired(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	view := f.send(t, f.alice, f.bob, "old message")

	f.svc.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	assert.ErrorIs(t, f.svc.RecallMessage(context.Background(), view.ID, f.alice), chat_errors.ErrInvalidState)
}

func TestRecallPendingMessageLeavesQueueAndFreezes(t *testing.T) {
	f := newDeliveryFixture(t)

	// First contact is held pending; the sender recalls before any consent.
	view := f.send(t, f.alice, f.bob, "meant for someone else")
	require.Equal(t, message.AcceptancePending, view.AcceptanceStatus)
	require.NoError(t, f.svc.RecallMessage(context.Background(), view.ID, f.alice))

	pending, err := f.convs.PendingMessageIDs(context.Background(), view.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, pending, "a recalled message must not linger as a consent prompt")

	// Neither accept nor reject may resurrect it.
	_, err = f.svc.AcceptMessage(context.Background(), view.ID, f.bob)
	assert.ErrorIs(t, err, chat_errors.ErrInvalidState)
	assert.ErrorIs(t, f.svc.RejectMessage(context.Background(), view.ID, f.bob), chat_errors.ErrInvalidState)

	// The conversation never saw a visible message.
	conv, err := f.convs.GetByID(context.Background(), view.ConversationID)
	require.NoError(t, err)
	assert.Nil(t, conv.LastMessageID)
	assert.EqualValues(t, 0, conv.MessageCount)
	assert.Empty(t, f.publisher.eventsFor(f.bob, events.EventNewMessage))
}

func TestRecallOnlySender(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	view := f.send(t, f.alice, f.bob, "mine")
	assert.ErrorIs(t, f.svc.RecallMessage(context.Background(), view.ID, f.bob), chat_errors.ErrPermissionDenied)
}

func TestMarkMessageRead(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)
	f.presence.online[f.alice] = true

	view := f.send(t, f.alice, f.bob, "read me")

	assert.ErrorIs(t, f.svc.MarkMessageRead(context.Background(), view.ID, f.alice), chat_errors.ErrPermissionDenied)

	require.NoError(t, f.svc.MarkMessageRead(context.Background(), view.ID, f.bob))
	stored, err := f.msgs.GetByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, message.StatusRead, stored.Status)
	require.NotNil(t, stored.ReadAt)

	assert.Len(t, f.publisher.eventsFor(f.alice, events.EventMessageRead), 1)

	// A second read is a no-op and emits nothing new.
	require.NoError(t, f.svc.MarkMessageRead(context.Background(), view.ID, f.bob))
	assert.Len(t, f.publisher.eventsFor(f.alice, events.EventMessageRead), 1)
}

func TestMarkConversationRead(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	f.send(t, f.alice, f.bob, "one")
	f.send(t, f.alice, f.bob, "two")
	last := f.send(t, f.alice, f.bob, "three")

	unread, err := f.svc.UnreadCount(context.Background(), f.bob)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	count, err := f.svc.MarkConversationRead(context.Background(), last.ConversationID, f.bob)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	unread, err = f.svc.UnreadCount(context.Background(), f.bob)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)

	assert.Len(t, f.publisher.eventsFor(f.alice, events.EventConversationRead), 1)

	_, err = f.svc.MarkConversationRead(context.Background(), last.ConversationID, uuid.New())
	assert.ErrorIs(t, err, chat_errors.ErrPermissionDenied)
}

func TestEditMessage(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	view := f.send(t, f.alice, f.bob, "first draft")

	edited, err := f.svc.EditMessage(context.Background(), view.ID, f.alice, "second draft")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "second draft", edited.Content)
	require.NotNil(t, edited.OriginalContent)
	assert.Equal(t, "first draft", *edited.OriginalContent)

	// A second edit keeps the first original, not the intermediate text.
	again, err := f.svc.EditMessage(context.Background(), view.ID, f.alice, "third draft")
	require.NoError(t, err)
	require.NotNil(t, again.OriginalContent)
	assert.Equal(t, "first draft", *again.OriginalContent)

	_, err = f.svc.EditMessage(context.Background(), view.ID, f.bob, "hijack")
	assert.ErrorIs(t, err, chat_errors.ErrPermissionDenied)

	_, err = f.svc.EditMessage(context.Background(), view.ID, f.alice, "")
	assert.ErrorIs(t, err, chat_errors.ErrValidation)
}

func TestDeleteMessagePerUser(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	view := f.send(t, f.alice, f.bob, "only bob deletes this")
	require.NoError(t, f.svc.DeleteMessage(context.Background(), view.ID, f.bob))

	stored, err := f.msgs.GetByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.False(t, stored.VisibleTo(f.bob))
	assert.True(t, stored.VisibleTo(f.alice))

	assert.ErrorIs(t, f.svc.DeleteMessage(context.Background(), view.ID, uuid.New()), chat_errors.ErrPermissionDenied)
}

func TestDeleteAllMessagesForUser(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	f.send(t, f.alice, f.bob, "one")
	f.send(t, f.bob, f.alice, "two")
	last := f.send(t, f.alice, f.bob, "three")

	count, err := f.svc.DeleteAllMessagesForUser(context.Background(), last.ConversationID, f.bob)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	bobView, err := f.svc.ListMessages(context.Background(), last.ConversationID, f.bob, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, bobView)

	aliceView, err := f.svc.ListMessages(context.Background(), last.ConversationID, f.alice, 1, 20)
	require.NoError(t, err)
	assert.Len(t, aliceView, 3)
}

func TestFindOrCreateConversationIdempotent(t *testing.T) {
	f := newDeliveryFixture(t)

	first, err := f.svc.FindOrCreateConversation(context.Background(), f.alice, f.bob)
	require.NoError(t, err)
	second, err := f.svc.FindOrCreateConversation(context.Background(), f.bob, f.alice)
	require.NoError(t, err)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)

	assert.Equal(t, f.bob, first.Other.ID)
	assert.Equal(t, f.alice, second.Other.ID)

	_, err = f.svc.FindOrCreateConversation(context.Background(), f.alice, f.alice)
	assert.ErrorIs(t, err, chat_errors.ErrValidation)

	_, err = f.svc.FindOrCreateConversation(context.Background(), f.alice, uuid.New())
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestPendingCount(t *testing.T) {
	f := newDeliveryFixture(t)

	first := f.send(t, f.alice, f.bob, "one")
	f.send(t, f.alice, f.bob, "two")

	count, err := f.svc.PendingCount(context.Background(), f.bob)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = f.svc.AcceptMessage(context.Background(), first.ID, f.bob)
	require.NoError(t, err)

	count, err = f.svc.PendingCount(context.Background(), f.bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestListMessagesRequiresMembership(t *testing.T) {
	f := newDeliveryFixture(t)
	f.disableAcceptance(t, f.bob, f.alice)

	view := f.send(t, f.alice, f.bob, "private")
	_, err := f.svc.ListMessages(context.Background(), view.ConversationID, uuid.New(), 1, 20)
	assert.ErrorIs(t, err, chat_errors.ErrPermissionDenied)
}

func TestSetConversationStatus(t *testing.T) {
	f := newDeliveryFixture(t)
	conv, err := f.convs.FindOrCreateDirect(context.Background(), f.alice, f.bob)
	require.NoError(t, err)

	require.NoError(t, f.svc.SetConversationStatus(context.Background(), conv.ID, f.bob, conversation.StatusBlocked))

	_, err = f.svc.Send(context.Background(), SendInput{SenderID: f.alice, ReceiverID: f.bob, Content: "hi"})
	assert.ErrorIs(t, err, chat_errors.ErrPermissionDenied)

	require.NoError(t, f.svc.SetConversationStatus(context.Background(), conv.ID, f.bob, conversation.StatusActive))
	_, err = f.svc.Send(context.Background(), SendInput{SenderID: f.alice, ReceiverID: f.bob, Content: "hi again"})
	require.NoError(t, err)

	assert.ErrorIs(t,
		f.svc.SetConversationStatus(context.Background(), conv.ID, f.alice, conversation.Status("NONSENSE")),
		chat_errors.ErrValidation)
	assert.ErrorIs(t,
		f.svc.SetConversationStatus(context.Background(), conv.ID, uuid.New(), conversation.StatusArchived),
		chat_errors.ErrPermissionDenied)
}

func TestUpdateAcceptanceSettings(t *testing.T) {
	f := newDeliveryFixture(t)
	conv, err := f.convs.FindOrCreateDirect(context.Background(), f.alice, f.bob)
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateAcceptanceSettings(context.Background(), conv.ID, f.bob, false, false))

	got, err := f.convs.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	member, ok := got.MemberFor(f.bob)
	require.True(t, ok)
	assert.False(t, member.RequireAcceptance)

	assert.ErrorIs(t,
		f.svc.UpdateAcceptanceSettings(context.Background(), conv.ID, uuid.New(), false, false),
		chat_errors.ErrPermissionDenied)
}
