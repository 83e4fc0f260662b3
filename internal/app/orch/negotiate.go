package orch

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/app"
	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

// initiateOrWait runs the deterministic role decision for one remote
// participant. The offerer initiates (after the stagger when the peer
// was just discovered); the answerer only registers its session so
// incoming offers and candidates have somewhere to land.
func (o *Orchestrator) initiateOrWait(id domain.ParticipantID, justDiscovered bool) {
	if id == "" || id == o.selfID {
		return
	}
	if ShouldInitiate(o.selfID, id) {
		if justDiscovered && o.OfferStagger > 0 {
			o.after(o.OfferStagger, func() { o.initiate(id) })
			return
		}
		o.initiate(id)
		return
	}
	o.ensureSession(id)
}

// initiate drives the offerer flow: forced media acquire, get-or-create
// session, offer, send. Reused unchanged for renegotiation; the
// existing handle is kept.
func (o *Orchestrator) initiate(id domain.ParticipantID) {
	if _, ok := o.roster[id]; !ok {
		// Participant left while the stagger timer was pending.
		log.Debug().Str("module", "orch").Str("peer", string(id)).Msg("initiate skipped, peer gone")
		return
	}
	if err := o.Media.Acquire(true, o.perms, o.isOwner); err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("acquire before offer")
	}

	sess, err := o.Sessions.GetOrCreate(id)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("create session")
		return
	}
	sess.Role = app.RoleOfferer

	offer, err := sess.Conn.CreateAndSetOffer()
	if err != nil {
		apply := &core.NegotiationApplyError{Peer: id, Op: "offer", Err: err}
		log.Error().Err(apply).Str("module", "orch").Msg("negotiation abandoned")
		return
	}
	if err := o.Signal.SendOffer(id, offer); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("send offer")
	}
}

// ensureSession registers the answerer-side session without offering.
func (o *Orchestrator) ensureSession(id domain.ParticipantID) {
	sess, err := o.Sessions.GetOrCreate(id)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("create session")
		return
	}
	if sess.Role == app.RoleUndecided {
		sess.Role = app.RoleAnswerer
	}
}

// OnOffer runs the answerer flow for an incoming offer.
func (o *Orchestrator) OnOffer(from domain.ParticipantID, offer webrtc.SessionDescription) {
	o.post(func() { o.handleOffer(from, offer) })
}

func (o *Orchestrator) handleOffer(from domain.ParticipantID, offer webrtc.SessionDescription) {
	if err := o.Media.Acquire(true, o.perms, o.isOwner); err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("acquire before answer")
	}

	sess, err := o.Sessions.GetOrCreate(from)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("peer", string(from)).Msg("create session")
		return
	}
	sess.Role = app.RoleAnswerer

	if err := sess.Conn.SetRemoteDescription(offer); err != nil {
		apply := &core.NegotiationApplyError{Peer: from, Op: "apply offer", Err: err}
		log.Error().Err(apply).Str("module", "orch").Msg("negotiation abandoned")
		return
	}
	o.applyBuffered(from, sess.Conn)

	answer, err := sess.Conn.CreateAndSetAnswer()
	if err != nil {
		apply := &core.NegotiationApplyError{Peer: from, Op: "answer", Err: err}
		log.Error().Err(apply).Str("module", "orch").Msg("negotiation abandoned")
		return
	}
	if err := o.Signal.SendAnswer(from, answer); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("peer", string(from)).Msg("send answer")
	}
}

// OnAnswer completes a negotiation we initiated. An answer for an
// unknown session is stale or misrouted and is dropped.
func (o *Orchestrator) OnAnswer(from domain.ParticipantID, answer webrtc.SessionDescription) {
	o.post(func() { o.handleAnswer(from, answer) })
}

func (o *Orchestrator) handleAnswer(from domain.ParticipantID, answer webrtc.SessionDescription) {
	sess, ok := o.Sessions.Get(from)
	if !ok {
		log.Debug().Str("module", "orch").Str("peer", string(from)).Msg("answer without session, dropped")
		return
	}
	if err := sess.Conn.SetRemoteDescription(answer); err != nil {
		apply := &core.NegotiationApplyError{Peer: from, Op: "apply answer", Err: err}
		log.Error().Err(apply).Str("module", "orch").Msg("negotiation abandoned")
		return
	}
	o.applyBuffered(from, sess.Conn)
}

// OnCandidate applies a remote candidate now when the session can take
// it, and buffers it otherwise.
func (o *Orchestrator) OnCandidate(from domain.ParticipantID, cand webrtc.ICECandidateInit) {
	o.post(func() { o.handleCandidate(from, cand) })
}

func (o *Orchestrator) handleCandidate(from domain.ParticipantID, cand webrtc.ICECandidateInit) {
	sess, ok := o.Sessions.Get(from)
	if !ok || !sess.Conn.HasRemoteDescription() {
		o.Candidates.Enqueue(from, cand)
		return
	}
	if err := sess.Conn.AddICECandidate(cand); err != nil {
		// The remote description may still be settling; keep the
		// candidate for the next drain.
		log.Warn().Err(err).Str("module", "orch").Str("peer", string(from)).Msg("apply candidate, re-buffering")
		o.Candidates.Enqueue(from, cand)
	}
}

// applyBuffered drains the candidate buffer for id right after a remote
// description was set. Failures are logged and the candidate dropped.
func (o *Orchestrator) applyBuffered(id domain.ParticipantID, conn core.MediaConnection) {
	for _, cand := range o.Candidates.Drain(id) {
		if err := conn.AddICECandidate(cand); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("apply buffered candidate")
		}
	}
}

// renegotiate re-runs the initiate flow after a track change on an
// existing session. Mute and cam toggles never come through here.
func (o *Orchestrator) renegotiate(id domain.ParticipantID) {
	if _, ok := o.Sessions.Get(id); !ok {
		return
	}
	log.Info().Str("module", "orch").Str("peer", string(id)).Msg("renegotiating")
	o.initiate(id)
}
