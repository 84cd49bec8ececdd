// Package policy decides whether an inbound message is delivered immediately
// or held for the receiver's consent.
package policy

import (
	"forum-chat/internal/domain/conversation"
	"forum-chat/internal/domain/message"
)

// AcceptanceEngine implements the stranger-filtering rule. It is a pure
// decision function; the count of previously accepted messages is recomputed
// by the caller on every send rather than cached on the conversation.
type AcceptanceEngine struct{}

func NewAcceptanceEngine() *AcceptanceEngine {
	return &AcceptanceEngine{}
}

// Decide returns the acceptance status for a new message addressed to the
// owner of settings. acceptedCount is the number of messages in the
// conversation that already reached ACCEPTED or AUTO_ACCEPTED.
//
// Rules:
//   - receiver does not require acceptance: auto-accept.
//   - first contact (nothing accepted yet): always held pending.
//   - known sender (something was accepted before): auto-accept only when the
//     receiver opted into auto-accepting known users.
func (e *AcceptanceEngine) Decide(settings conversation.Member, acceptedCount int64) message.AcceptanceStatus {
	if !settings.RequireAcceptance {
		return message.AcceptanceAutoAccepted
	}
	if acceptedCount == 0 {
		return message.AcceptancePending
	}
	if settings.AutoAcceptKnown {
		return message.AcceptanceAutoAccepted
	}
	return message.AcceptancePending
}
