package spotlight

import (
	"reflect"
	"testing"
)

func TestActiveSpeakerPromotionMovesToFront(t *testing.T) {
	s := New(3, false, "me", nil)
	s.OnPeerJoined("p1")
	s.OnPeerJoined("p2")
	s.OnPeerJoined("p3")

	got := s.OnActiveSpeaker("p7")
	want := []string{"p7", "p1", "p2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSelectedPeersTakePriorityOverSpeakers(t *testing.T) {
	s := New(2, false, "me", nil)
	s.OnPeerJoined("p1")
	s.OnPeerJoined("p2")
	s.OnPeerJoined("p3")

	got := s.AddSelectedPeer("p3")
	want := []string{"p3", "p1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMaxSpotlightsCap(t *testing.T) {
	s := New(1, false, "me", nil)
	s.OnPeerJoined("p1")
	s.OnPeerJoined("p2")

	got := s.Spotlights()
	if len(got) != 1 {
		t.Fatalf("expected spotlights capped at 1, got %v", got)
	}
}

func TestHideNoVideoParticipantsFiltersCandidates(t *testing.T) {
	videoPeers := map[string]bool{"p2": true}
	s := New(2, true, "me", func(peerID string) bool { return videoPeers[peerID] })

	s.OnPeerJoined("p1") // no video, filtered
	s.OnPeerJoined("p2") // has video, included

	got := s.Spotlights()
	want := []string{"p2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPeerLeftDropsFromSpeakersAndSelected(t *testing.T) {
	s := New(3, false, "me", nil)
	s.OnPeerJoined("p1")
	s.AddSelectedPeer("p1")

	got := s.OnPeerLeft("p1")
	if len(got) != 0 {
		t.Fatalf("expected empty spotlights after peer left, got %v", got)
	}
}

func TestSelfPeerNeverBecomesSpeakerCandidate(t *testing.T) {
	s := New(3, false, "me", nil)
	got := s.OnActiveSpeaker("me")
	if len(got) != 0 {
		t.Fatalf("expected self to never appear as a spotlight candidate, got %v", got)
	}
}

func TestSetSelectedPeerClearsPreviousSelection(t *testing.T) {
	s := New(3, false, "me", nil)
	s.AddSelectedPeer("p1")
	s.AddSelectedPeer("p2")

	got := s.SetSelectedPeer("p3")
	want := []string{"p3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
