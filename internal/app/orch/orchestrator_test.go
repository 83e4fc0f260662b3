package orch

import (
	"context"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/keulen/huddle/internal/app"
	"github.com/keulen/huddle/internal/app/media"
	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

type stubConn struct {
	mu         sync.Mutex
	remoteDesc *webrtc.SessionDescription
	applied    []webrtc.ICECandidateInit
	tracks     map[webrtc.RTPCodecType]webrtc.TrackLocal
	closed     bool
}

func newStubConn() *stubConn {
	return &stubConn{tracks: make(map[webrtc.RTPCodecType]webrtc.TrackLocal)}
}

func (s *stubConn) CreateAndSetOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}, nil
}

func (s *stubConn) CreateAndSetAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}, nil
}

func (s *stubConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteDesc = &desc
	return nil
}

func (s *stubConn) HasRemoteDescription() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteDesc != nil
}

func (s *stubConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, cand)
	return nil
}

func (s *stubConn) AttachTrack(track webrtc.TrackLocal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.tracks[track.Kind()]
	s.tracks[track.Kind()] = track
	return prev != track, nil
}

func (s *stubConn) ClearTrack(kind webrtc.RTPCodecType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, kind)
	return nil
}

func (s *stubConn) SetTrackEnabled(webrtc.RTPCodecType, bool) error { return nil }

func (s *stubConn) State() core.SignalingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.StateClosed
	}
	if s.remoteDesc != nil {
		return core.StateStable
	}
	return core.StateNew
}

func (s *stubConn) OnICECandidate(func(webrtc.ICECandidateInit))             {}
func (s *stubConn) OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver))   {}
func (s *stubConn) OnConnectionStateChange(func(webrtc.PeerConnectionState)) {}

func (s *stubConn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubConn) appliedCandidates() []webrtc.ICECandidateInit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]webrtc.ICECandidateInit, len(s.applied))
	copy(out, s.applied)
	return out
}

type stubTrack struct {
	id   string
	kind webrtc.RTPCodecType
}

func (s *stubTrack) Bind(webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return webrtc.RTPCodecParameters{}, nil
}
func (s *stubTrack) Unbind(webrtc.TrackLocalContext) error { return nil }
func (s *stubTrack) ID() string                            { return s.id }
func (s *stubTrack) RID() string                           { return "" }
func (s *stubTrack) StreamID() string                      { return "local" }
func (s *stubTrack) Kind() webrtc.RTPCodecType             { return s.kind }
func (s *stubTrack) OnEnded(func(error))                   {}
func (s *stubTrack) Close() error                          { return nil }

type stubDevice struct{}

func (stubDevice) UserMedia() (*core.UserMedia, error) {
	return &core.UserMedia{
		Audio: &stubTrack{id: "mic", kind: webrtc.RTPCodecTypeAudio},
		Video: &stubTrack{id: "cam", kind: webrtc.RTPCodecTypeVideo},
	}, nil
}

func (stubDevice) DisplayMedia() (core.LocalTrack, error) {
	return &stubTrack{id: "screen", kind: webrtc.RTPCodecTypeVideo}, nil
}

// recorder captures everything sent toward the relay.
type recorder struct {
	mu         sync.Mutex
	offers     []domain.ParticipantID
	answers    []domain.ParticipantID
	candidates []domain.ParticipantID
	ready      int
	chats      []string
	admitted   []domain.ParticipantID
	denied     []domain.ParticipantID
	granted    []domain.ParticipantID
	kicked     []domain.ParticipantID
}

func (r *recorder) SendOffer(to domain.ParticipantID, _ webrtc.SessionDescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, to)
	return nil
}

func (r *recorder) SendAnswer(to domain.ParticipantID, _ webrtc.SessionDescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, to)
	return nil
}

func (r *recorder) SendCandidate(to domain.ParticipantID, _ webrtc.ICECandidateInit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, to)
	return nil
}

func (r *recorder) SendReadyForOffers(domain.MeetingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready++
	return nil
}

func (r *recorder) SendChat(_ domain.MeetingID, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, text)
	return nil
}

func (r *recorder) SendAdmit(_ domain.MeetingID, target domain.ParticipantID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admitted = append(r.admitted, target)
	return nil
}

func (r *recorder) SendDeny(_ domain.MeetingID, target domain.ParticipantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied = append(r.denied, target)
	return nil
}

func (r *recorder) SendGrantPermission(target domain.ParticipantID, _ domain.PermissionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.granted = append(r.granted, target)
	return nil
}

func (r *recorder) SendKick(target domain.ParticipantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kicked = append(r.kicked, target)
	return nil
}

func (r *recorder) offersTo() []domain.ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ParticipantID, len(r.offers))
	copy(out, r.offers)
	return out
}

type harness struct {
	orch   *Orchestrator
	signal *recorder
	conns  map[domain.ParticipantID]*stubConn
	reason string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{signal: &recorder{}, conns: make(map[domain.ParticipantID]*stubConn)}

	buffer := app.NewCandidateBuffer()
	sessions := app.NewSessionRegistry(func(peer domain.ParticipantID) (core.MediaConnection, error) {
		c := newStubConn()
		h.conns[peer] = c
		return c, nil
	}, buffer)

	ctl := media.NewController(stubDevice{}, sessions)
	sessions.SetTrackSource(ctl)

	h.orch = New("meet-1", "Local", sessions, buffer, ctl, h.signal, 0)
	h.orch.OnShutdown = func(reason string) { h.reason = reason }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.orch.Run(ctx)
	return h
}

// sync flushes the event queue; events are processed in post order.
func (h *harness) sync() Status {
	return h.orch.Status()
}

func TestOffer_BeforeDiscoveryGetsAnswered(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("a1")

	h.orch.OnOffer("b2", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	h.sync()

	conn, ok := h.conns["b2"]
	if !ok {
		t.Fatalf("expected a session for the offering peer")
	}
	if !conn.HasRemoteDescription() {
		t.Fatalf("expected the offer applied as remote description")
	}
	if len(h.signal.answers) != 1 || h.signal.answers[0] != "b2" {
		t.Fatalf("expected one answer to b2, got %v", h.signal.answers)
	}
}

func TestCandidate_BufferedUntilOfferArrives(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("a1")

	h.orch.OnCandidate("b2", webrtc.ICECandidateInit{Candidate: "early-1"})
	h.orch.OnCandidate("b2", webrtc.ICECandidateInit{Candidate: "early-2"})
	h.sync()

	if _, ok := h.conns["b2"]; ok {
		t.Fatalf("candidates alone must not create a session")
	}

	h.orch.OnOffer("b2", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	h.sync()

	applied := h.conns["b2"].appliedCandidates()
	if len(applied) != 2 {
		t.Fatalf("expected 2 buffered candidates applied, got %d", len(applied))
	}
	if applied[0].Candidate != "early-1" || applied[1].Candidate != "early-2" {
		t.Fatalf("candidates out of order: %+v", applied)
	}
}

func TestStaleAnswer_IsSilentlyDropped(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("a1")

	h.orch.OnAnswer("ghost", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})
	h.sync()

	if _, ok := h.conns["ghost"]; ok {
		t.Fatalf("stale answer must not create a session")
	}
}

func TestRoster_InitiatesOnlyTowardLesserIDs(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("m5")

	h.orch.OnRoster([]core.RosterEntry{{ID: "a1", Name: "Alice"}, {ID: "z9", Name: "Zoe"}})
	st := h.sync()

	offers := h.signal.offersTo()
	if len(offers) != 1 || offers[0] != "a1" {
		t.Fatalf("expected exactly one offer, to a1, got %v", offers)
	}
	// The greater id offers later; our side only holds the session open.
	if _, ok := h.conns["z9"]; !ok {
		t.Fatalf("expected an answerer-side session for z9")
	}
	if len(st.Participants) != 3 {
		t.Fatalf("expected self plus two participants, got %d", len(st.Participants))
	}
}

func TestNewParticipant_TakesFocus(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("a1")

	h.orch.OnNewParticipant(core.RosterEntry{ID: "b2", Name: "Bob"})
	st := h.sync()

	if st.Focus != "b2" {
		t.Fatalf("expected focus on the newcomer, got %s", st.Focus)
	}
}

func TestPermissionRevoke_ForcesMuteWithoutTeardown(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("m5")
	h.orch.OnRoster([]core.RosterEntry{{ID: "a1"}})
	h.sync()

	off := false
	h.orch.OnPermissionUpdate(domain.PermissionUpdate{Unmute: &off})
	st := h.sync()

	if st.Media.MicEnabled {
		t.Fatalf("expected mic force-disabled")
	}
	if len(st.Sessions) != 1 {
		t.Fatalf("permission revoke must not tear sessions down, got %d", len(st.Sessions))
	}
	if h.conns["a1"].closed {
		t.Fatalf("session closed on permission revoke")
	}
}

func TestParticipantLeft_RemovesAllState(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("m5")
	h.orch.OnNewParticipant(core.RosterEntry{ID: "a1", Name: "Alice"})
	h.sync()

	h.orch.OnParticipantLeft("a1")
	st := h.sync()

	if !h.conns["a1"].closed {
		t.Fatalf("expected the session closed")
	}
	if len(st.Sessions) != 0 || len(st.Participants) != 1 {
		t.Fatalf("expected only self left, got %+v", st)
	}
	if st.Focus != "m5" {
		t.Fatalf("expected focus back on self, got %s", st.Focus)
	}
}

func TestChannelClosed_TearsEverythingDown(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("m5")
	h.orch.OnRoster([]core.RosterEntry{{ID: "a1"}, {ID: "b2"}})
	h.sync()

	h.orch.OnChannelClosed()
	st := h.sync()

	if len(st.Sessions) != 0 {
		t.Fatalf("expected all sessions removed, got %d", len(st.Sessions))
	}
	if st.Media.HasStream {
		t.Fatalf("expected local media released")
	}
	if h.reason != "signaling channel closed" {
		t.Fatalf("unexpected shutdown reason %q", h.reason)
	}
}

func TestAdmitted_AnnouncesReadiness(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("a1")
	h.orch.OnJoinPending()
	h.orch.OnAdmitted()
	st := h.sync()

	if st.JoinPending {
		t.Fatalf("expected join-pending cleared")
	}
	if h.signal.ready != 1 {
		t.Fatalf("expected one ready-for-offers, got %d", h.signal.ready)
	}
}

func TestChat_OwnEchoDroppedAndUnreadCounted(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("a1")

	h.orch.SendChatMessage("hi all")
	h.orch.OnChat("Local", "hi all") // relay echo of our own message
	h.orch.OnChat("Bob", "hello")
	st := h.sync()

	msgs := h.orch.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected own message plus Bob's, got %d", len(msgs))
	}
	if st.UnreadChat != 1 {
		t.Fatalf("expected one unread message, got %d", st.UnreadChat)
	}

	h.orch.SetChatFocused(true)
	if st := h.sync(); st.UnreadChat != 0 {
		t.Fatalf("expected unread cleared on focus, got %d", st.UnreadChat)
	}
}

func TestAdmissions_OwnerOnly(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("a1")

	h.orch.OnJoinRequest("p1", "Pat")
	if st := h.sync(); len(st.Pending) != 0 {
		t.Fatalf("non-owner must ignore join requests")
	}

	h.orch.OnOwnerAssigned()
	h.orch.OnJoinRequest("p1", "Pat")
	h.orch.OnJoinRequest("p1", "Pat") // duplicate
	if st := h.sync(); len(st.Pending) != 1 {
		t.Fatalf("expected one pending request, got %d", len(st.Pending))
	}

	h.orch.Admit("p1")
	st := h.sync()
	if len(h.signal.admitted) != 1 || h.signal.admitted[0] != "p1" {
		t.Fatalf("expected admit sent for p1, got %v", h.signal.admitted)
	}
	if len(st.Pending) != 0 {
		t.Fatalf("expected pending entry consumed")
	}
}

func TestKick_SendsAndDropsLocally(t *testing.T) {
	h := newHarness(t)
	h.orch.OnIdentityAssigned("m5")
	h.orch.OnOwnerAssigned()
	h.orch.OnRoster([]core.RosterEntry{{ID: "a1", Name: "Alice"}})
	h.sync()

	h.orch.Kick("a1")
	st := h.sync()

	if len(h.signal.kicked) != 1 || h.signal.kicked[0] != "a1" {
		t.Fatalf("expected kick sent for a1, got %v", h.signal.kicked)
	}
	if len(st.Sessions) != 0 || len(st.Participants) != 1 {
		t.Fatalf("expected local teardown of the kicked participant")
	}
}
