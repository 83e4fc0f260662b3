package app

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/keulen/huddle/internal/domain"
)

// CandidateBuffer absorbs remote ICE candidates that arrive before the
// session they belong to has a usable remote description.
type CandidateBuffer struct {
	mu      sync.Mutex
	pending map[domain.ParticipantID][]webrtc.ICECandidateInit
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{
		pending: make(map[domain.ParticipantID][]webrtc.ICECandidateInit),
	}
}

// Enqueue appends unconditionally, preserving arrival order.
func (b *CandidateBuffer) Enqueue(id domain.ParticipantID, cand webrtc.ICECandidateInit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[id] = append(b.pending[id], cand)
}

// Drain removes and returns all buffered candidates for id in arrival
// order. Draining an absent id returns an empty list.
func (b *CandidateBuffer) Drain(id domain.ParticipantID) []webrtc.ICECandidateInit {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending[id]
	delete(b.pending, id)
	return out
}

// Forget drops any buffered candidates for id.
func (b *CandidateBuffer) Forget(id domain.ParticipantID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, id)
}
