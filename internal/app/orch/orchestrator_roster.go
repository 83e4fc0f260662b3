package orch

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

// OnIdentityAssigned stores the relay-assigned local id and makes the
// local participant the initial focus.
func (o *Orchestrator) OnIdentityAssigned(id domain.ParticipantID) {
	o.post(func() {
		o.selfID = id
		o.focusID = id
		log.Info().Str("module", "orch").Str("self", string(id)).Msg("identity assigned")
	})
}

// OnJoinPending enters the waiting-for-admission state; local media
// acquisition stays suppressed until admitted.
func (o *Orchestrator) OnJoinPending() {
	o.post(func() {
		o.joinPending = true
		log.Info().Str("module", "orch").Msg("waiting for host approval")
	})
}

// OnAdmitted leaves the waiting state and announces readiness to
// receive offers.
func (o *Orchestrator) OnAdmitted() {
	o.post(func() {
		o.joinPending = false
		if err := o.Signal.SendReadyForOffers(o.Meeting); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("send ready-for-offers")
		}
	})
}

// OnJoinDenied tears everything down and ends the meeting with the
// host's reason.
func (o *Orchestrator) OnJoinDenied(reason string) {
	o.post(func() {
		o.joinPending = false
		if reason == "" {
			reason = "the host denied your request to join"
		}
		o.shutdown(reason)
	})
}

// OnJoinRequest records a pending admission. Only the owner acts on
// these; the relay addresses them to the owner but role-filtered
// delivery is not guaranteed, so the local role is re-checked.
func (o *Orchestrator) OnJoinRequest(id domain.ParticipantID, name string) {
	o.post(func() {
		if !o.isOwner {
			log.Debug().Str("module", "orch").Str("peer", string(id)).Msg("join-request ignored, not owner")
			return
		}
		for _, req := range o.pending {
			if req.ID == id {
				return
			}
		}
		if name == "" {
			name = "User"
		}
		o.pending = append(o.pending, domain.PendingRequest{ID: id, Name: name, At: time.Now()})
		log.Info().Str("module", "orch").Str("peer", string(id)).Str("name", name).Msg("join request")
	})
}

// OnPendingList seeds the pending-admission list (owner reconnect path).
func (o *Orchestrator) OnPendingList(entries []core.PendingEntry) {
	o.post(func() {
		if !o.isOwner {
			return
		}
		o.pending = o.pending[:0]
		for _, e := range entries {
			o.pending = append(o.pending, domain.PendingRequest{ID: e.ID, Name: e.Name, At: time.Now()})
		}
	})
}

// OnRoster merges an existing-participants snapshot and runs the
// initiate-or-wait decision for each remote id.
func (o *Orchestrator) OnRoster(entries []core.RosterEntry) {
	o.post(func() {
		if err := o.Media.Acquire(true, o.perms, o.isOwner); err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("acquire on roster")
		}
		for _, e := range entries {
			if e.ID == "" || e.ID == o.selfID {
				continue
			}
			o.mergeParticipant(e)
			o.initiateOrWait(e.ID, true)
		}
		if o.focusID == "" {
			o.focusID = o.selfID
		}
	})
}

// OnNewParticipant adds a just-admitted participant, focuses on them,
// and runs initiate-or-wait.
func (o *Orchestrator) OnNewParticipant(e core.RosterEntry) {
	o.post(func() {
		if e.ID == "" || e.ID == o.selfID {
			return
		}
		o.mergeParticipant(e)
		o.focusID = e.ID
		o.initiateOrWait(e.ID, true)
	})
}

// OnCreateOffers is the relay's nudge after a participant announced
// readiness: treat it like a discovery for that one id.
func (o *Orchestrator) OnCreateOffers(id domain.ParticipantID) {
	o.post(func() {
		if id == "" || id == o.selfID {
			return
		}
		// The nudge can outrun the new-participant event.
		o.mergeParticipant(core.RosterEntry{ID: id})
		o.initiateOrWait(id, false)
	})
}

// OnParticipantLeft destroys the session and removes all state for id.
func (o *Orchestrator) OnParticipantLeft(id domain.ParticipantID) {
	o.post(func() { o.dropParticipant(id) })
}

// OnEndCall tears down the one session the remote side hung up.
func (o *Orchestrator) OnEndCall(from domain.ParticipantID) {
	o.post(func() {
		o.Sessions.Remove(from)
		delete(o.remoteStreams, from)
	})
}

// OnPermissionUpdate merges a partial permission change for the local
// participant. Revoking unmute or video force-disables the matching
// track; the sessions stay up and no renegotiation happens.
func (o *Orchestrator) OnPermissionUpdate(upd domain.PermissionUpdate) {
	o.post(func() {
		o.perms = upd.Apply(o.perms)
		if o.perms.IsOwner {
			o.isOwner = true
		}
		if o.perms.Allowed && !o.joinPending {
			if err := o.Media.Acquire(true, o.perms, o.isOwner); err != nil {
				log.Error().Err(err).Str("module", "orch").Msg("acquire on permission grant")
			}
		}
		if upd.Unmute != nil && !*upd.Unmute {
			o.Media.ForceMute()
		}
		if upd.Video != nil && !*upd.Video {
			o.Media.ForceCameraOff()
		}
	})
}

// OnOwnerAssigned upgrades the local participant to owner.
func (o *Orchestrator) OnOwnerAssigned() {
	o.post(func() {
		o.isOwner = true
		o.perms = domain.OwnerPermissions()
		if err := o.Media.Acquire(true, o.perms, true); err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("acquire on ownership")
		}
	})
}

// OnKicked ends the meeting locally after the host removed us.
func (o *Orchestrator) OnKicked() {
	o.post(func() { o.shutdown("kicked by the host") })
}

// OnChannelClosed is the safety teardown for a dropped relay
// connection; no reconnection is attempted.
func (o *Orchestrator) OnChannelClosed() {
	o.post(func() { o.shutdown("signaling channel closed") })
}

// OnChat appends a remote chat message, counting it as unread unless
// the chat panel has focus. The relay echoes our own sends back; those
// are dropped by name.
func (o *Orchestrator) OnChat(fromName, text string) {
	o.post(func() {
		if fromName == o.LocalName {
			return
		}
		o.chat.append(fromName, text, true)
	})
}

func (o *Orchestrator) mergeParticipant(e core.RosterEntry) {
	p, ok := o.roster[e.ID]
	if !ok {
		p = &domain.Participant{ID: e.ID, Permissions: domain.DefaultPermissions()}
		o.roster[e.ID] = p
	}
	if e.Name != "" {
		p.Name = e.Name
	}
	if e.IsOwner {
		p.IsOwner = true
	}
	if e.Permissions != nil {
		p.Permissions = e.Permissions.Apply(p.Permissions)
	}
}

func (o *Orchestrator) dropParticipant(id domain.ParticipantID) {
	o.Sessions.Remove(id)
	delete(o.roster, id)
	delete(o.remoteStreams, id)
	for i, req := range o.pending {
		if req.ID == id {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			break
		}
	}
	if o.focusID == id {
		o.focusID = o.selfID
	}
}
