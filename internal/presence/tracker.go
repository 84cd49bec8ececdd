// Package presence keeps the process-local registry of connected users.
// State is ephemeral: a restart loses it and clients re-register on
// reconnect. Broadcasts leave through the events publisher, which is the seam
// a distributed presence backend would plug into.
package presence

import (
	"context"
	"sync"
	"time"

	"forum-chat/internal/events"
	"forum-chat/pkg/logger"

	"github.com/google/uuid"
)

// Session is a live realtime connection that the tracker can terminate when
// the single-session policy or the heartbeat sweep demands it.
type Session interface {
	ID() string
	Terminate()
}

// StatusMirror receives best-effort copies of online/offline transitions so
// the forum's user directory can show them.
type StatusMirror interface {
	UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool, lastSeen time.Time) error
}

type Config struct {
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	TypingTTL        time.Duration
}

type entry struct {
	session       Session
	connID        string
	lastSeen      time.Time
	lastHeartbeat time.Time
}

type typingKey struct {
	userID         uuid.UUID
	conversationID uuid.UUID
}

type Tracker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	conns   map[string]uuid.UUID
	typing  map[typingKey]*time.Timer

	publisher events.Publisher
	mirror    StatusMirror
	log       *logger.Logger
	cfg       Config

	now func() time.Time
}

func NewTracker(publisher events.Publisher, mirror StatusMirror, log *logger.Logger, cfg Config) *Tracker {
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = 60 * time.Second
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.TypingTTL == 0 {
		cfg.TypingTTL = 3 * time.Second
	}
	return &Tracker{
		entries:   make(map[uuid.UUID]*entry),
		conns:     make(map[string]uuid.UUID),
		typing:    make(map[typingKey]*time.Timer),
		publisher: publisher,
		mirror:    mirror,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Connect registers a live connection for userID. A user keeps a single
// active session: an earlier live connection is terminated before the new one
// is registered.
func (t *Tracker) Connect(ctx context.Context, userID uuid.UUID, session Session) {
	now := t.now()

	t.mu.Lock()
	var stale Session
	if old, ok := t.entries[userID]; ok && old.connID != session.ID() {
		delete(t.conns, old.connID)
		stale = old.session
	}
	t.entries[userID] = &entry{
		session:       session,
		connID:        session.ID(),
		lastSeen:      now,
		lastHeartbeat: now,
	}
	t.conns[session.ID()] = userID
	t.mu.Unlock()

	if stale != nil {
		stale.Terminate()
	}

	t.mirrorStatus(ctx, userID, true, now)
	t.emitBroadcast(events.New(events.EventUserOnline, events.AggregatePresence, userID.String(), map[string]interface{}{
		"user_id":   userID,
		"is_online": true,
		"timestamp": now.UTC(),
	}))
}

// Disconnect drops the connection if it still owns the user's entry. Stale
// disconnects from an already-replaced session are ignored.
func (t *Tracker) Disconnect(ctx context.Context, connID string) {
	t.mu.Lock()
	userID, ok := t.conns[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	e := t.entries[userID]
	if e == nil || e.connID != connID {
		delete(t.conns, connID)
		t.mu.Unlock()
		return
	}
	lastSeen := e.lastSeen
	delete(t.conns, connID)
	delete(t.entries, userID)
	cleared := t.clearTypingLocked(userID)
	t.mu.Unlock()

	for _, conversationID := range cleared {
		t.emitTyping(userID, conversationID, false)
	}

	t.mirrorStatus(ctx, userID, false, lastSeen)
	t.emitBroadcast(events.New(events.EventUserOffline, events.AggregatePresence, userID.String(), map[string]interface{}{
		"user_id":   userID,
		"is_online": false,
		"last_seen": lastSeen.UTC(),
	}))
}

// Heartbeat refreshes liveness without broadcasting.
func (t *Tracker) Heartbeat(userID uuid.UUID) {
	now := t.now()
	t.mu.Lock()
	if e, ok := t.entries[userID]; ok {
		e.lastHeartbeat = now
		e.lastSeen = now
	}
	t.mu.Unlock()
}

func (t *Tracker) IsOnline(userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[userID]
	return ok
}

func (t *Tracker) ListOnline() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}

// Run sweeps for dead connections until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Sweep force-disconnects every entry whose heartbeat is older than the
// timeout. The timestamp is read under the lock at removal time, so a
// heartbeat racing the sweep is never overwritten by a stale offline mark.
func (t *Tracker) Sweep(ctx context.Context) {
	now := t.now()

	type expired struct {
		userID   uuid.UUID
		session  Session
		lastSeen time.Time
		typing   []uuid.UUID
	}

	t.mu.Lock()
	var dead []expired
	for userID, e := range t.entries {
		if now.Sub(e.lastHeartbeat) <= t.cfg.HeartbeatTimeout {
			continue
		}
		delete(t.conns, e.connID)
		delete(t.entries, userID)
		dead = append(dead, expired{
			userID:   userID,
			session:  e.session,
			lastSeen: e.lastSeen,
			typing:   t.clearTypingLocked(userID),
		})
	}
	t.mu.Unlock()

	for _, d := range dead {
		if t.log != nil {
			t.log.Infof("presence sweep: disconnecting silent user %s", d.userID)
		}
		d.session.Terminate()
		for _, conversationID := range d.typing {
			t.emitTyping(d.userID, conversationID, false)
		}
		t.mirrorStatus(ctx, d.userID, false, d.lastSeen)
		t.emitBroadcast(events.New(events.EventUserOffline, events.AggregatePresence, d.userID.String(), map[string]interface{}{
			"user_id":   d.userID,
			"is_online": false,
			"last_seen": d.lastSeen.UTC(),
		}))
	}
}

// StartTyping broadcasts a typing indicator to the conversation room and arms
// the auto-expiry; a repeat call while typing re-arms it.
func (t *Tracker) StartTyping(userID, conversationID uuid.UUID) {
	key := typingKey{userID: userID, conversationID: conversationID}

	t.mu.Lock()
	if timer, ok := t.typing[key]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(t.cfg.TypingTTL, func() {
		t.mu.Lock()
		// A stale callback can fire after a re-arm replaced it; only the
		// timer that still owns the entry may expire the indicator.
		if t.typing[key] != timer {
			t.mu.Unlock()
			return
		}
		delete(t.typing, key)
		t.mu.Unlock()
		t.emitTyping(userID, conversationID, false)
	})
	t.typing[key] = timer
	t.mu.Unlock()

	t.emitTyping(userID, conversationID, true)
}

// StopTyping cancels the indicator early.
func (t *Tracker) StopTyping(userID, conversationID uuid.UUID) {
	key := typingKey{userID: userID, conversationID: conversationID}

	t.mu.Lock()
	timer, ok := t.typing[key]
	if ok {
		timer.Stop()
		delete(t.typing, key)
	}
	t.mu.Unlock()

	if ok {
		t.emitTyping(userID, conversationID, false)
	}
}

// clearTypingLocked stops all of the user's typing timers; caller holds the
// lock. Returns the conversations that need a typing=false broadcast.
func (t *Tracker) clearTypingLocked(userID uuid.UUID) []uuid.UUID {
	var cleared []uuid.UUID
	for key, timer := range t.typing {
		if key.userID != userID {
			continue
		}
		timer.Stop()
		delete(t.typing, key)
		cleared = append(cleared, key.conversationID)
	}
	return cleared
}

func (t *Tracker) emitTyping(userID, conversationID uuid.UUID, isTyping bool) {
	if t.publisher == nil {
		return
	}
	env := events.New(events.EventUserTyping, events.AggregatePresence, userID.String(), map[string]interface{}{
		"user_id":         userID,
		"conversation_id": conversationID,
		"is_typing":       isTyping,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.publisher.PublishToConversation(ctx, conversationID, env); err != nil && t.log != nil {
		t.log.Errorf("presence: typing broadcast failed: %v", err)
	}
}

func (t *Tracker) emitBroadcast(env events.Envelope) {
	if t.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.publisher.Broadcast(ctx, env); err != nil && t.log != nil {
		t.log.Errorf("presence: broadcast failed: %v", err)
	}
}

func (t *Tracker) mirrorStatus(ctx context.Context, userID uuid.UUID, isOnline bool, lastSeen time.Time) {
	if t.mirror == nil {
		return
	}
	if err := t.mirror.UpdateOnlineStatus(ctx, userID, isOnline, lastSeen); err != nil && t.log != nil {
		t.log.Errorf("presence: status mirror failed for %s: %v", userID, err)
	}
}
