package app

import (
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/keulen/huddle/internal/domain"
)

func cand(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func TestCandidateBuffer_DrainReturnsArrivalOrder(t *testing.T) {
	b := NewCandidateBuffer()
	peer := domain.ParticipantID("a1")

	b.Enqueue(peer, cand("first"))
	b.Enqueue(peer, cand("second"))
	b.Enqueue(peer, cand("third"))

	got := b.Drain(peer)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Candidate != want {
			t.Fatalf("candidate %d: got %q, want %q", i, got[i].Candidate, want)
		}
	}
}

func TestCandidateBuffer_DrainRemovesEntries(t *testing.T) {
	b := NewCandidateBuffer()
	peer := domain.ParticipantID("a1")

	b.Enqueue(peer, cand("only"))
	b.Drain(peer)

	if got := b.Drain(peer); len(got) != 0 {
		t.Fatalf("expected second drain to be empty, got %d entries", len(got))
	}
}

func TestCandidateBuffer_DrainUnknownPeerIsEmpty(t *testing.T) {
	b := NewCandidateBuffer()
	if got := b.Drain(domain.ParticipantID("nobody")); len(got) != 0 {
		t.Fatalf("expected empty drain for unknown peer, got %d entries", len(got))
	}
}

func TestCandidateBuffer_PeersAreIndependent(t *testing.T) {
	b := NewCandidateBuffer()
	b.Enqueue("a1", cand("for-a1"))
	b.Enqueue("b2", cand("for-b2"))

	got := b.Drain("a1")
	if len(got) != 1 || got[0].Candidate != "for-a1" {
		t.Fatalf("unexpected drain for a1: %+v", got)
	}
	if got := b.Drain("b2"); len(got) != 1 {
		t.Fatalf("draining a1 must not touch b2, got %d entries", len(got))
	}
}

func TestCandidateBuffer_Forget(t *testing.T) {
	b := NewCandidateBuffer()
	b.Enqueue("a1", cand("stale"))
	b.Forget("a1")

	if got := b.Drain("a1"); len(got) != 0 {
		t.Fatalf("expected no candidates after forget, got %d", len(got))
	}
}
