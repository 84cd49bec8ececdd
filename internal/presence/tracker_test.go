package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"forum-chat/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id         string
	mu         sync.Mutex
	terminated bool
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Terminate() {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
}

func (s *fakeSession) isTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *capturePublisher) PublishToUser(_ context.Context, _ uuid.UUID, env events.Envelope) error {
	return p.record(env)
}

func (p *capturePublisher) PublishToConversation(_ context.Context, _ uuid.UUID, env events.Envelope) error {
	return p.record(env)
}

func (p *capturePublisher) Broadcast(_ context.Context, env events.Envelope) error {
	return p.record(env)
}

func (p *capturePublisher) record(env events.Envelope) error {
	p.mu.Lock()
	p.events = append(p.events, env)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) typesSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTestTracker(pub events.Publisher) *Tracker {
	return NewTracker(pub, nil, nil, Config{
		HeartbeatTimeout: 60 * time.Second,
		SweepInterval:    30 * time.Second,
		TypingTTL:        50 * time.Millisecond,
	})
}

func TestConnectAndOnlineQueries(t *testing.T) {
	pub := &capturePublisher{}
	tracker := newTestTracker(pub)
	userID := uuid.New()

	assert.False(t, tracker.IsOnline(userID))

	tracker.Connect(context.Background(), userID, &fakeSession{id: "c1"})

	assert.True(t, tracker.IsOnline(userID))
	assert.Contains(t, tracker.ListOnline(), userID)
	assert.Contains(t, pub.typesSeen(), events.EventUserOnline)
}

func TestSingleSessionPolicy(t *testing.T) {
	tracker := newTestTracker(&capturePublisher{})
	userID := uuid.New()

	c1 := &fakeSession{id: "c1"}
	c2 := &fakeSession{id: "c2"}

	tracker.Connect(context.Background(), userID, c1)
	tracker.Connect(context.Background(), userID, c2)

	assert.True(t, c1.isTerminated(), "old connection must be terminated")
	assert.False(t, c2.isTerminated())
	assert.True(t, tracker.IsOnline(userID))

	// The replaced connection's late disconnect must not knock the user
	// offline.
	tracker.Disconnect(context.Background(), "c1")
	assert.True(t, tracker.IsOnline(userID))

	tracker.Disconnect(context.Background(), "c2")
	assert.False(t, tracker.IsOnline(userID))
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	pub := &capturePublisher{}
	tracker := newTestTracker(pub)
	userID := uuid.New()

	tracker.Connect(context.Background(), userID, &fakeSession{id: "c1"})
	tracker.Disconnect(context.Background(), "c1")

	assert.False(t, tracker.IsOnline(userID))
	assert.Contains(t, pub.typesSeen(), events.EventUserOffline)
}

func TestSweepExpiresSilentConnections(t *testing.T) {
	pub := &capturePublisher{}
	tracker := newTestTracker(pub)
	userID := uuid.New()
	session := &fakeSession{id: "c1"}

	base := time.Now()
	tracker.now = func() time.Time { return base }
	tracker.Connect(context.Background(), userID, session)

	// Heartbeat still fresh: sweep keeps the entry.
	tracker.now = func() time.Time { return base.Add(30 * time.Second) }
	tracker.Sweep(context.Background())
	assert.True(t, tracker.IsOnline(userID))

	// A heartbeat arriving just before the sweep must survive it.
	tracker.Heartbeat(userID)
	tracker.now = func() time.Time { return base.Add(80 * time.Second) }
	tracker.Sweep(context.Background())
	assert.True(t, tracker.IsOnline(userID), "refreshed heartbeat must not be swept")

	// No heartbeat past the timeout: swept and terminated.
	tracker.now = func() time.Time { return base.Add(3 * time.Minute) }
	tracker.Sweep(context.Background())
	assert.False(t, tracker.IsOnline(userID))
	assert.True(t, session.isTerminated())
	assert.Contains(t, pub.typesSeen(), events.EventUserOffline)
}

func TestTypingAutoExpires(t *testing.T) {
	pub := &capturePublisher{}
	tracker := newTestTracker(pub)
	userID := uuid.New()
	conversationID := uuid.New()

	tracker.StartTyping(userID, conversationID)

	require.Eventually(t, func() bool {
		count := 0
		for _, typ := range pub.typesSeen() {
			if typ == events.EventUserTyping {
				count++
			}
		}
		return count >= 2 // typing=true then the expiry's typing=false
	}, time.Second, 10*time.Millisecond)
}

func TestTypingExpiryIgnoresReplacedTimer(t *testing.T) {
	pub := &capturePublisher{}
	tracker := NewTracker(pub, nil, nil, Config{TypingTTL: 20 * time.Millisecond})
	userID := uuid.New()
	conversationID := uuid.New()
	key := typingKey{userID: userID, conversationID: conversationID}

	tracker.StartTyping(userID, conversationID)

	// Hold the lock past the TTL so the expiry callback fires but blocks,
	// then swap in a fresh timer the way a re-arm would.
	tracker.mu.Lock()
	time.Sleep(60 * time.Millisecond)
	tracker.typing[key].Stop()
	replacement := time.AfterFunc(time.Hour, func() {})
	defer replacement.Stop()
	tracker.typing[key] = replacement
	tracker.mu.Unlock()

	// Give the blocked callback time to run; it must leave the fresh
	// indicator in place and emit no typing=false.
	time.Sleep(50 * time.Millisecond)
	tracker.mu.Lock()
	current := tracker.typing[key]
	tracker.mu.Unlock()
	assert.Same(t, replacement, current, "stale expiry removed the re-armed indicator")
	assert.Zero(t, countTypingStops(t, pub))
}

func countTypingStops(t *testing.T, pub *capturePublisher) int {
	t.Helper()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	stops := 0
	for _, e := range pub.events {
		if e.EventType != events.EventUserTyping {
			continue
		}
		var p struct {
			IsTyping bool `json:"is_typing"`
		}
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		if !p.IsTyping {
			stops++
		}
	}
	return stops
}

func TestStopTypingCancelsEarly(t *testing.T) {
	pub := &capturePublisher{}
	tracker := NewTracker(pub, nil, nil, Config{TypingTTL: time.Hour})
	userID := uuid.New()
	conversationID := uuid.New()

	tracker.StartTyping(userID, conversationID)
	tracker.StopTyping(userID, conversationID)

	types := pub.typesSeen()
	count := 0
	for _, typ := range types {
		if typ == events.EventUserTyping {
			count++
		}
	}
	assert.Equal(t, 2, count)

	// A second stop with no indicator armed emits nothing.
	tracker.StopTyping(userID, conversationID)
	assert.Len(t, pub.typesSeen(), count)
}

func TestDisconnectClearsTyping(t *testing.T) {
	pub := &capturePublisher{}
	tracker := NewTracker(pub, nil, nil, Config{TypingTTL: time.Hour})
	userID := uuid.New()
	conversationID := uuid.New()

	tracker.Connect(context.Background(), userID, &fakeSession{id: "c1"})
	tracker.StartTyping(userID, conversationID)
	tracker.Disconnect(context.Background(), "c1")

	typingEvents := 0
	for _, typ := range pub.typesSeen() {
		if typ == events.EventUserTyping {
			typingEvents++
		}
	}
	// typing=true from start, typing=false from the disconnect cleanup.
	assert.Equal(t, 2, typingEvents)
}
