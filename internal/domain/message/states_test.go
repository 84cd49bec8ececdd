package message

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanAdvance(t *testing.T) {
	assert.True(t, CanAdvance(StatusSent, StatusDelivered))
	assert.True(t, CanAdvance(StatusSent, StatusRead))
	assert.True(t, CanAdvance(StatusDelivered, StatusRead))

	// Backward or same-state moves are never allowed.
	assert.False(t, CanAdvance(StatusRead, StatusDelivered))
	assert.False(t, CanAdvance(StatusRead, StatusSent))
	assert.False(t, CanAdvance(StatusDelivered, StatusSent))
	assert.False(t, CanAdvance(StatusSent, StatusSent))
	assert.False(t, CanAdvance(StatusRead, StatusRead))
}

func TestVisibleTo(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()

	base := Message{
		ID:               uuid.New(),
		SenderID:         sender,
		ReceiverID:       receiver,
		Content:          "hello",
		AcceptanceStatus: AcceptanceAutoAccepted,
	}

	t.Run("accepted message visible to both", func(t *testing.T) {
		assert.True(t, base.VisibleTo(sender))
		assert.True(t, base.VisibleTo(receiver))
	})

	t.Run("pending message visible to sender only", func(t *testing.T) {
		m := base
		m.AcceptanceStatus = AcceptancePending
		assert.True(t, m.VisibleTo(sender))
		assert.False(t, m.VisibleTo(receiver))
	})

	t.Run("rejected message visible to sender only", func(t *testing.T) {
		m := base
		m.AcceptanceStatus = AcceptanceRejected
		assert.True(t, m.VisibleTo(sender))
		assert.False(t, m.VisibleTo(receiver))
	})

	t.Run("recalled message visible to nobody", func(t *testing.T) {
		m := base
		m.IsRecalled = true
		assert.False(t, m.VisibleTo(sender))
		assert.False(t, m.VisibleTo(receiver))
	})

	t.Run("hard delete hides from both", func(t *testing.T) {
		m := base
		m.IsDeleted = true
		assert.False(t, m.VisibleTo(sender))
		assert.False(t, m.VisibleTo(receiver))
	})

	t.Run("per-user delete hides only for that user", func(t *testing.T) {
		m := base
		m.Deletions = []Deletion{{MessageID: m.ID, UserID: receiver, DeletedAt: time.Now()}}
		assert.True(t, m.VisibleTo(sender))
		assert.False(t, m.VisibleTo(receiver))
	})
}

func TestRecallWindowOpen(t *testing.T) {
	window := 5 * time.Minute
	created := time.Now()

	assert.True(t, RecallWindowOpen(created, created.Add(time.Minute), window))
	assert.True(t, RecallWindowOpen(created, created.Add(5*time.Minute), window))
	assert.False(t, RecallWindowOpen(created, created.Add(5*time.Minute+time.Second), window))
	assert.False(t, RecallWindowOpen(created, created.Add(10*time.Minute), window))
}
