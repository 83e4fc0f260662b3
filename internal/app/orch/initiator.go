package orch

import "github.com/keulen/huddle/internal/domain"

// ShouldInitiate reports whether local is the offerer toward remote:
// the lexicographically greater id initiates. Both ends compute the
// same answer independently, which is what rules out glare.
func ShouldInitiate(local, remote domain.ParticipantID) bool {
	if local == "" || remote == "" {
		return false
	}
	return local > remote
}
