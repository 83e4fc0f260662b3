package core

import (
	"errors"
	"fmt"

	"github.com/keulen/huddle/internal/domain"
)

// ErrChannelClosed is returned for outbound sends attempted while the
// signaling channel is not open.
var ErrChannelClosed = errors.New("signaling channel closed")

// MediaAcquisitionError wraps a hardware or permission denial from the
// capture device. It is surfaced to the operator, not retried.
type MediaAcquisitionError struct {
	Err error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("media acquisition failed: %v", e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

// NegotiationApplyError reports a description or candidate rejected by
// the local negotiation engine. Negotiation with that participant is
// abandoned until either side retries with a fresh offer/answer cycle.
type NegotiationApplyError struct {
	Peer domain.ParticipantID
	Op   string
	Err  error
}

func (e *NegotiationApplyError) Error() string {
	return fmt.Sprintf("negotiation %s for %s: %v", e.Op, e.Peer, e.Err)
}

func (e *NegotiationApplyError) Unwrap() error { return e.Err }
