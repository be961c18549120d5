// Package spotlight implements the Spotlight Selector (spec §4.5):
// which remote peers get a full-quality video consumer, given a
// manually-selected "always include" set and a recency-ordered list of
// active speakers.
package spotlight

import "sync"

// HasVideo reports whether a candidate peer currently has a video
// consumer, so Selector can honor hideNoVideoParticipants.
type HasVideo func(peerID string) bool

// Selector is the stateful wrapper around the pure Compute algorithm,
// tracking the speaker list and selected-peer set across notifications.
type Selector struct {
	mu sync.Mutex

	maxSpotlights           int
	hideNoVideoParticipants bool

	speakers []string // ordered most-recent-first, excludes selfPeerID
	selected []string // manually selected, ordered by selection time
	selfID   string

	hasVideo HasVideo
}

// New constructs a Selector. selfID is excluded from the speaker list
// (a peer is never its own spotlight candidate).
func New(maxSpotlights int, hideNoVideoParticipants bool, selfID string, hasVideo HasVideo) *Selector {
	if hasVideo == nil {
		hasVideo = func(string) bool { return true }
	}
	return &Selector{
		maxSpotlights:           maxSpotlights,
		hideNoVideoParticipants: hideNoVideoParticipants,
		selfID:                  selfID,
		hasVideo:                hasVideo,
	}
}

// OnActiveSpeaker moves peerID to the front of the speaker list (spec
// §4.5 "On activeSpeaker notification for a non-self peer").
func (s *Selector) OnActiveSpeaker(peerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if peerID == s.selfID {
		return s.compute()
	}
	s.speakers = moveToFront(s.speakers, peerID)
	return s.compute()
}

// OnPeerJoined appends a newly joined peer to the back of the speaker
// list (spec §4.5 "on newPeer append").
func (s *Selector) OnPeerJoined(peerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if peerID == s.selfID {
		return s.compute()
	}
	if !contains(s.speakers, peerID) {
		s.speakers = append(s.speakers, peerID)
	}
	return s.compute()
}

// OnPeerLeft drops peerID from both the speaker list and the selected
// set (spec §4.5 "on peerClosed drop").
func (s *Selector) OnPeerLeft(peerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakers = remove(s.speakers, peerID)
	s.selected = remove(s.selected, peerID)
	return s.compute()
}

// AddSelectedPeer adds peerID to the manually selected set.
func (s *Selector) AddSelectedPeer(peerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contains(s.selected, peerID) {
		s.selected = append(s.selected, peerID)
	}
	return s.compute()
}

// SetSelectedPeer clears the selected set and selects only peerID
// (spec §4.4 "setSelectedPeer (clears first)").
func (s *Selector) SetSelectedPeer(peerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = []string{peerID}
	return s.compute()
}

// RemoveSelectedPeer removes peerID from the selected set.
func (s *Selector) RemoveSelectedPeer(peerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = remove(s.selected, peerID)
	return s.compute()
}

// ClearSelectedPeers empties the selected set.
func (s *Selector) ClearSelectedPeers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	return s.compute()
}

// Spotlights returns the current spotlight list without mutating state.
func (s *Selector) Spotlights() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compute()
}

func (s *Selector) compute() []string {
	return Compute(s.maxSpotlights, s.hideNoVideoParticipants, s.selected, s.speakers, s.hasVideo)
}

// Compute is the pure spec §4.5 algorithm: selected ∪ top-K of the
// speaker list (K = maxSpotlights − |selected|), optionally filtered by
// hasVideo, order preserved (selected first, then speakers by recency).
func Compute(maxSpotlights int, hideNoVideo bool, selected, speakers []string, hasVideo HasVideo) []string {
	out := make([]string, 0, maxSpotlights)
	seen := make(map[string]bool, maxSpotlights)

	add := func(peerID string) bool {
		if len(out) >= maxSpotlights {
			return false
		}
		if seen[peerID] {
			return true
		}
		if hideNoVideo && !hasVideo(peerID) {
			return true
		}
		seen[peerID] = true
		out = append(out, peerID)
		return true
	}

	for _, p := range selected {
		if !add(p) {
			break
		}
	}
	for _, p := range speakers {
		if len(out) >= maxSpotlights {
			break
		}
		add(p)
	}

	return out
}

func moveToFront(list []string, v string) []string {
	filtered := remove(list, v)
	return append([]string{v}, filtered...)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
