package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/keulen/huddle/internal/domain"
)

// SignalSender is the outbound half of the relay channel. Sends on a
// closed channel return ErrChannelClosed; the message is dropped, never
// queued.
type SignalSender interface {
	SendOffer(to domain.ParticipantID, offer webrtc.SessionDescription) error
	SendAnswer(to domain.ParticipantID, answer webrtc.SessionDescription) error
	SendCandidate(to domain.ParticipantID, cand webrtc.ICECandidateInit) error
	SendReadyForOffers(meeting domain.MeetingID) error
	SendChat(meeting domain.MeetingID, fromName, text string) error

	// Owner-only actions. The relay enforces authorization; we re-check
	// the local role before calling these anyway.
	SendAdmit(meeting domain.MeetingID, target domain.ParticipantID, name string) error
	SendDeny(meeting domain.MeetingID, target domain.ParticipantID) error
	SendGrantPermission(target domain.ParticipantID, upd domain.PermissionUpdate) error
	SendKick(target domain.ParticipantID) error
}

// RosterEntry is one record of an existing-participants snapshot.
type RosterEntry struct {
	ID          domain.ParticipantID
	Name        string
	IsOwner     bool
	Permissions *domain.PermissionUpdate
}

// PendingEntry is one record of the owner's pending-admission list.
type PendingEntry struct {
	ID   domain.ParticipantID
	Name string
}
