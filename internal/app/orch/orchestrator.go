// Package orch owns all meeting-level state: the participant roster,
// permissions, focus, pending admissions, chat, and the negotiation of
// one peer session per remote participant. Every mutation runs on a
// single event loop; external notifications are posted onto it.
package orch

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/app"
	"github.com/keulen/huddle/internal/app/media"
	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

type Orchestrator struct {
	Meeting   domain.MeetingID
	LocalName string

	Sessions   *app.SessionRegistry
	Candidates *app.CandidateBuffer
	Media      *media.Controller
	Signal     core.SignalSender

	// OfferStagger delays the first offer toward a just-discovered
	// participant so its message handlers finish registering. Best
	// effort, not a correctness requirement.
	OfferStagger time.Duration

	// OnShutdown is called from the event loop when the meeting ends
	// locally (leave, kick, denied admission, channel closure).
	OnShutdown func(reason string)

	events chan func()
	done   chan struct{}

	// Loop-owned state below; never touched off-loop.
	selfID        domain.ParticipantID
	isOwner       bool
	joinPending   bool
	perms         domain.Permissions
	roster        map[domain.ParticipantID]*domain.Participant
	pending       []domain.PendingRequest
	focusID       domain.ParticipantID
	remoteStreams map[domain.ParticipantID]string
	chat          chatLog
	ended         bool
}

func New(
	meeting domain.MeetingID,
	localName string,
	sessions *app.SessionRegistry,
	candidates *app.CandidateBuffer,
	mediaCtl *media.Controller,
	signal core.SignalSender,
	offerStagger time.Duration,
) *Orchestrator {
	o := &Orchestrator{
		Meeting:       meeting,
		LocalName:     localName,
		Sessions:      sessions,
		Candidates:    candidates,
		Media:         mediaCtl,
		Signal:        signal,
		OfferStagger:  offerStagger,
		events:        make(chan func(), 256),
		done:          make(chan struct{}),
		roster:        make(map[domain.ParticipantID]*domain.Participant),
		remoteStreams: make(map[domain.ParticipantID]string),
	}

	sessions.OnLocalCandidate(func(peer domain.ParticipantID, cand webrtc.ICECandidateInit) {
		// Outbound candidates go straight to the relay, no buffering.
		if err := o.Signal.SendCandidate(peer, cand); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(peer)).Msg("send candidate")
		}
	})
	sessions.OnRemoteTrack(func(peer domain.ParticipantID, track *webrtc.TrackRemote, newStream bool) {
		go drainRemoteTrack(peer, track)
		if newStream {
			streamID := track.StreamID()
			o.post(func() { o.publishRemoteStream(peer, streamID) })
		}
	})
	sessions.OnStateChange(func(peer domain.ParticipantID, state webrtc.PeerConnectionState) {
		// Diagnostics only; no automatic reconnection at this layer.
		log.Info().Str("module", "orch").Str("peer", string(peer)).Str("state", state.String()).Msg("connection state")
	})

	mediaCtl.TrackChanged = func(peer domain.ParticipantID) {
		o.post(func() { o.renegotiate(peer) })
	}
	mediaCtl.ScreenEnded = func() {
		o.post(func() { o.Media.StopScreenShare() })
	}

	return o
}

// Run processes events one at a time until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-o.events:
			fn()
		}
	}
}

// post enqueues fn for the event loop. Posting from inside a handler is
// fine; a full queue falls back to a goroutine instead of blocking the
// loop on itself.
func (o *Orchestrator) post(fn func()) {
	select {
	case <-o.done:
	case o.events <- fn:
	default:
		go func() {
			select {
			case <-o.done:
			case o.events <- fn:
			}
		}()
	}
}

// after schedules fn on the event loop once d elapses. This is the only
// timer that touches meeting state, and it funnels through the loop.
func (o *Orchestrator) after(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { o.post(fn) })
}

// ask runs query on the event loop and waits for its result.
func ask[T any](o *Orchestrator, query func() T) T {
	ch := make(chan T, 1)
	o.post(func() { ch <- query() })
	select {
	case v := <-ch:
		return v
	case <-o.done:
		var zero T
		return zero
	}
}

func (o *Orchestrator) publishRemoteStream(peer domain.ParticipantID, streamID string) {
	o.remoteStreams[peer] = streamID
	log.Info().Str("module", "orch").Str("peer", string(peer)).Str("stream_id", streamID).Msg("remote stream published")
}

// teardown closes every session and releases local media. Used on
// leave, kick, denied admission and signaling channel loss.
func (o *Orchestrator) teardown() {
	o.Media.StopScreenShare()
	o.Media.Release()
	o.Sessions.RemoveAll()
	o.remoteStreams = make(map[domain.ParticipantID]string)
}

func (o *Orchestrator) shutdown(reason string) {
	if o.ended {
		return
	}
	o.ended = true
	o.teardown()
	log.Info().Str("module", "orch").Str("reason", reason).Msg("meeting ended")
	if o.OnShutdown != nil {
		o.OnShutdown(reason)
	}
}

// drainRemoteTrack keeps reading inbound RTP so the interceptor chain
// stays fed; the agent renders nothing itself.
func drainRemoteTrack(peer domain.ParticipantID, track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			log.Debug().Err(err).Str("module", "orch").Str("peer", string(peer)).
				Str("kind", track.Kind().String()).Msg("remote track done")
			return
		}
	}
}
