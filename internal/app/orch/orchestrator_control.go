package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/app"
	"github.com/keulen/huddle/internal/app/media"
	"github.com/keulen/huddle/internal/domain"
)

// Operator-facing actions. Each one funnels through the event loop so
// control requests interleave with signaling events instead of racing
// them.

func (o *Orchestrator) ToggleMic() {
	o.post(func() {
		if err := o.Media.ToggleMic(o.perms, o.isOwner); err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("toggle mic")
		}
	})
}

func (o *Orchestrator) ToggleCam() {
	o.post(func() {
		if err := o.Media.ToggleCam(o.perms, o.isOwner); err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("toggle camera")
		}
	})
}

func (o *Orchestrator) ToggleScreenShare() {
	o.post(func() {
		if o.Media.Sharing() {
			o.Media.StopScreenShare()
			return
		}
		if err := o.Media.StartScreenShare(); err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("start screen share")
		}
	})
}

// SendChatMessage relays the text and appends it locally; our own
// messages never bump the unread counter.
func (o *Orchestrator) SendChatMessage(text string) {
	if text == "" {
		return
	}
	o.post(func() {
		if err := o.Signal.SendChat(o.Meeting, o.LocalName, text); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("send chat")
			return
		}
		o.chat.append(o.LocalName, text, false)
	})
}

// SetChatFocused marks the chat panel focused; focusing clears unread.
func (o *Orchestrator) SetChatFocused(focused bool) {
	o.post(func() { o.chat.setFocused(focused) })
}

// Focus moves the spotlight to id when it names a known participant.
func (o *Orchestrator) Focus(id domain.ParticipantID) {
	o.post(func() {
		if id == o.selfID {
			o.focusID = id
			return
		}
		if _, ok := o.roster[id]; ok {
			o.focusID = id
		}
	})
}

// Admit approves a pending joiner. Owner only.
func (o *Orchestrator) Admit(id domain.ParticipantID) {
	o.post(func() {
		if !o.isOwner {
			return
		}
		name := "Guest"
		for i, req := range o.pending {
			if req.ID == id {
				name = req.Name
				o.pending = append(o.pending[:i], o.pending[i+1:]...)
				break
			}
		}
		if err := o.Signal.SendAdmit(o.Meeting, id, name); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("send admit")
		}
	})
}

// Deny rejects a pending joiner. Owner only.
func (o *Orchestrator) Deny(id domain.ParticipantID) {
	o.post(func() {
		if !o.isOwner {
			return
		}
		for i, req := range o.pending {
			if req.ID == id {
				o.pending = append(o.pending[:i], o.pending[i+1:]...)
				break
			}
		}
		if err := o.Signal.SendDeny(o.Meeting, id); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("send deny")
		}
	})
}

// Grant sends a partial permission change for one participant and
// mirrors it into the local roster. Owner only.
func (o *Orchestrator) Grant(id domain.ParticipantID, upd domain.PermissionUpdate) {
	o.post(func() {
		if !o.isOwner {
			return
		}
		if err := o.Signal.SendGrantPermission(id, upd); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("send grant")
			return
		}
		if p, ok := o.roster[id]; ok {
			p.Permissions = upd.Apply(p.Permissions)
		}
	})
}

// Kick removes a participant: the relay notifies them, and their
// session and roster entry are destroyed locally right away.
func (o *Orchestrator) Kick(id domain.ParticipantID) {
	o.post(func() {
		if !o.isOwner {
			return
		}
		if err := o.Signal.SendKick(id); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("send kick")
		}
		o.dropParticipant(id)
	})
}

// Leave ends the meeting locally.
func (o *Orchestrator) Leave() {
	o.post(func() { o.shutdown("left meeting") })
}

// Status is the control API's read model.
type Status struct {
	SelfID        domain.ParticipantID            `json:"selfId"`
	Name          string                          `json:"name"`
	Meeting       domain.MeetingID                `json:"meetingId"`
	IsOwner       bool                            `json:"isOwner"`
	JoinPending   bool                            `json:"joinPending"`
	Permissions   domain.Permissions              `json:"permissions"`
	Focus         domain.ParticipantID            `json:"focus"`
	Participants  []domain.Participant            `json:"participants"`
	Pending       []domain.PendingRequest         `json:"pending,omitempty"`
	Sessions      []app.SessionInfo               `json:"sessions"`
	Media         media.State                     `json:"media"`
	RemoteStreams map[domain.ParticipantID]string `json:"remoteStreams,omitempty"`
	UnreadChat    int                             `json:"unreadChat"`
}

func (o *Orchestrator) Status() Status {
	return ask(o, o.status)
}

func (o *Orchestrator) Messages() []domain.ChatMessage {
	return ask(o, func() []domain.ChatMessage {
		out := make([]domain.ChatMessage, len(o.chat.messages))
		copy(out, o.chat.messages)
		return out
	})
}

func (o *Orchestrator) status() Status {
	participants := make([]domain.Participant, 0, len(o.roster)+1)
	participants = append(participants, domain.Participant{
		ID:          o.selfID,
		Name:        o.LocalName,
		IsLocal:     true,
		IsOwner:     o.isOwner,
		Permissions: o.perms,
	})
	for _, p := range o.roster {
		participants = append(participants, *p)
	}

	streams := make(map[domain.ParticipantID]string, len(o.remoteStreams))
	for id, s := range o.remoteStreams {
		streams[id] = s
	}
	pending := make([]domain.PendingRequest, len(o.pending))
	copy(pending, o.pending)

	return Status{
		SelfID:        o.selfID,
		Name:          o.LocalName,
		Meeting:       o.Meeting,
		IsOwner:       o.isOwner,
		JoinPending:   o.joinPending,
		Permissions:   o.perms,
		Focus:         o.focusID,
		Participants:  participants,
		Pending:       pending,
		Sessions:      o.Sessions.Snapshot(),
		Media:         o.Media.State(),
		RemoteStreams: streams,
		UnreadChat:    o.chat.unread,
	}
}
