package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNaming(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	assert.Equal(t, "channel:user:11111111-2222-3333-4444-555555555555", UserChannel(id))
	assert.Equal(t, "channel:conversation:11111111-2222-3333-4444-555555555555", ConversationChannel(id))
}

func TestEnvelope(t *testing.T) {
	env := New(EventNewMessage, AggregateMessage, "m1", map[string]string{"content": "hi"})

	assert.Equal(t, EventNewMessage, env.EventType)
	assert.Equal(t, AggregateMessage, env.AggregateType)
	assert.Equal(t, "m1", env.AggregateID)
	assert.False(t, env.OccurredAt.IsZero())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "hi", payload["content"])
}

func TestEnvelopeUnmarshallablePayload(t *testing.T) {
	env := New(EventUserTyping, AggregatePresence, "u1", make(chan int))
	assert.Equal(t, json.RawMessage("null"), env.Payload)
}
