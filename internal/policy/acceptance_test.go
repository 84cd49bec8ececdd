package policy

import (
	"testing"

	"forum-chat/internal/domain/conversation"
	"forum-chat/internal/domain/message"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	engine := NewAcceptanceEngine()

	tests := []struct {
		name          string
		require       bool
		autoKnown     bool
		acceptedCount int64
		want          message.AcceptanceStatus
	}{
		{"acceptance disabled", false, false, 0, message.AcceptanceAutoAccepted},
		{"acceptance disabled with history", false, true, 10, message.AcceptanceAutoAccepted},
		{"first contact is always gated", true, true, 0, message.AcceptancePending},
		{"known sender auto-accepted", true, true, 1, message.AcceptanceAutoAccepted},
		{"known sender still gated without auto-accept", true, false, 5, message.AcceptancePending},
		{"strict gating on first contact", true, false, 0, message.AcceptancePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := conversation.Member{
				RequireAcceptance: tt.require,
				AutoAcceptKnown:   tt.autoKnown,
			}
			assert.Equal(t, tt.want, engine.Decide(settings, tt.acceptedCount))
		})
	}
}

// The first message between a pair is held; once it is accepted the next one
// from the same sender goes straight through.
func TestDecideFirstContactThenKnown(t *testing.T) {
	engine := NewAcceptanceEngine()
	settings := conversation.Member{RequireAcceptance: true, AutoAcceptKnown: true}

	first := engine.Decide(settings, 0)
	assert.Equal(t, message.AcceptancePending, first)

	// Receiver accepts the first message, so one accepted message now exists.
	second := engine.Decide(settings, 1)
	assert.Equal(t, message.AcceptanceAutoAccepted, second)
}
