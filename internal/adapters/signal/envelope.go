package signal

import (
	"github.com/pion/webrtc/v4"

	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

// Envelope is the JSON frame exchanged with the relay. The relay keys
// the message kind as "typeof"; we send "type" and accept either on
// the way in. All other fields are optional and depend on the kind.
type Envelope struct {
	Type   string `json:"type,omitempty"`
	Typeof string `json:"typeof,omitempty"`

	MeetingID domain.MeetingID     `json:"meetingId,omitempty"`
	To        domain.ParticipantID `json:"to,omitempty"`
	From      domain.ParticipantID `json:"from,omitempty"`
	SocketID  domain.ParticipantID `json:"socketId,omitempty"`

	Name     string `json:"name,omitempty"`
	IsOwner  bool   `json:"is_owner,omitempty"`
	Text     string `json:"text,omitempty"`
	FromName string `json:"fromName,omitempty"`
	Message  string `json:"message,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`

	Permissions  *domain.PermissionUpdate `json:"permissions,omitempty"`
	Participants []participantEntry       `json:"participants,omitempty"`
	Pending      []pendingEntry           `json:"pending,omitempty"`
}

// Kind resolves the message kind regardless of which key the sender
// used.
func (e *Envelope) Kind() string {
	if e.Typeof != "" {
		return e.Typeof
	}
	return e.Type
}

// DenyReason prefers the explicit reason over the relay's generic
// message field.
func (e *Envelope) DenyReason() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Message
}

type participantEntry struct {
	SocketID    domain.ParticipantID     `json:"socketId"`
	Name        string                   `json:"name,omitempty"`
	IsOwner     bool                     `json:"is_owner,omitempty"`
	Permissions *domain.PermissionUpdate `json:"permissions,omitempty"`
}

func (p participantEntry) roster() core.RosterEntry {
	return core.RosterEntry{
		ID:          p.SocketID,
		Name:        p.Name,
		IsOwner:     p.IsOwner,
		Permissions: p.Permissions,
	}
}

type pendingEntry struct {
	SocketID domain.ParticipantID `json:"socketId"`
	Name     string               `json:"name,omitempty"`
}

func (p pendingEntry) pending() core.PendingEntry {
	return core.PendingEntry{ID: p.SocketID, Name: p.Name}
}
