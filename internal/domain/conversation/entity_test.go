package conversation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPair(t *testing.T) {
	x := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	y := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	a1, b1 := CanonicalPair(x, y)
	a2, b2 := CanonicalPair(y, x)

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.Equal(t, x, a1)
	assert.Equal(t, y, b1)
}

func TestParticipantHelpers(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	ua, ub := CanonicalPair(a, b)
	c := Conversation{ID: uuid.New(), UserA: ua, UserB: ub}

	assert.True(t, c.HasParticipant(a))
	assert.True(t, c.HasParticipant(b))
	assert.False(t, c.HasParticipant(uuid.New()))

	assert.Equal(t, b, c.OtherParticipant(a))
	assert.Equal(t, a, c.OtherParticipant(b))
	assert.Len(t, c.Participants(), 2)
}
