package signal

import (
	"github.com/pion/webrtc/v4"

	"github.com/keulen/huddle/internal/domain"
)

// core.SignalSender implementation. Every method builds one outbound
// envelope; sends on a closed channel return core.ErrChannelClosed and
// are never queued.

func (c *Client) SendOffer(to domain.ParticipantID, offer webrtc.SessionDescription) error {
	return c.send(Envelope{Type: "offer", To: to, Offer: &offer})
}

func (c *Client) SendAnswer(to domain.ParticipantID, answer webrtc.SessionDescription) error {
	return c.send(Envelope{Type: "answer", To: to, Answer: &answer})
}

func (c *Client) SendCandidate(to domain.ParticipantID, cand webrtc.ICECandidateInit) error {
	return c.send(Envelope{Type: "ice_candidate", To: to, Candidate: &cand})
}

func (c *Client) SendReadyForOffers(meeting domain.MeetingID) error {
	return c.send(Envelope{Type: "ready-for-offers", MeetingID: meeting})
}

func (c *Client) SendChat(meeting domain.MeetingID, fromName, text string) error {
	return c.send(Envelope{Type: "chat-message", MeetingID: meeting, FromName: fromName, Text: text})
}

func (c *Client) SendAdmit(meeting domain.MeetingID, target domain.ParticipantID, name string) error {
	return c.send(Envelope{Type: "admit", MeetingID: meeting, SocketID: target, Name: name})
}

func (c *Client) SendDeny(meeting domain.MeetingID, target domain.ParticipantID) error {
	return c.send(Envelope{Type: "deny", MeetingID: meeting, SocketID: target})
}

func (c *Client) SendGrantPermission(target domain.ParticipantID, upd domain.PermissionUpdate) error {
	return c.send(Envelope{Type: "grant-permission", SocketID: target, Permissions: &upd})
}

func (c *Client) SendKick(target domain.ParticipantID) error {
	return c.send(Envelope{Type: "kick-user", SocketID: target})
}
