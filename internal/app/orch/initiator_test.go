package orch

import (
	"testing"

	"github.com/keulen/huddle/internal/domain"
)

func TestShouldInitiate_ExactlyOneSidePerPair(t *testing.T) {
	ids := []domain.ParticipantID{"a1", "b2", "z9", "specific.channel!x", "specific.channel!y"}
	for _, l := range ids {
		for _, r := range ids {
			if l == r {
				continue
			}
			if ShouldInitiate(l, r) == ShouldInitiate(r, l) {
				t.Fatalf("pair (%s, %s): both or neither side would initiate", l, r)
			}
		}
	}
}

func TestShouldInitiate_GreaterIDInitiates(t *testing.T) {
	if !ShouldInitiate("b2", "a1") {
		t.Fatalf("b2 should initiate toward a1")
	}
	if ShouldInitiate("a1", "b2") {
		t.Fatalf("a1 should wait for b2")
	}
}

func TestShouldInitiate_EmptyIDNeverInitiates(t *testing.T) {
	if ShouldInitiate("", "a1") || ShouldInitiate("a1", "") {
		t.Fatalf("empty ids must never initiate")
	}
}
