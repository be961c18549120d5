// Package consumer is the Consumer Registry (spec §4.4): lifecycle of
// remote tracks, pause/resume, preferred-layer adaptation, audio gain,
// and speaking detection on remote audio.
package consumer

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/roomerr"
	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/speaking"
	"github.com/coremeet/roomclient/internal/store"
)

// RecvTransport is the narrow slice of the Device & Transport Manager
// the Consumer Registry needs to negotiate a remote track (spec §1's
// assumed Transport.consume).
type RecvTransport interface {
	Consume(ctx context.Context, params ConsumeParams) (Track, error)
}

// Track is the remote media track handed back by Consume.
type Track interface {
	ID() string
	Stop()
}

// ConsumeParams mirrors the fields of a newConsumer notification needed
// to negotiate the remote track (spec §6 newConsumer payload).
type ConsumeParams struct {
	ConsumerID    string
	ProducerID    string
	Kind          store.MediaKind
	RTPParameters any
}

type entry struct {
	consumer *store.Consumer
	track    Track
	detector *speaking.Detector
}

// Registry is the Consumer Registry.
type Registry struct {
	cfg       *config.Config
	session   *signaling.Session
	transport RecvTransport
	store     *store.Store

	mu        sync.Mutex
	consumers map[string]*entry
}

// New constructs a Consumer Registry.
func New(cfg *config.Config, session *signaling.Session, transport RecvTransport, st *store.Store) *Registry {
	return &Registry{
		cfg:       cfg,
		session:   session,
		transport: transport,
		store:     st,
		consumers: make(map[string]*entry),
	}
}

// NewConsumerNotification mirrors the inbound newConsumer payload (spec §6).
type NewConsumerNotification struct {
	PeerID         string
	ProducerID     string
	ConsumerID     string
	Kind           store.MediaKind
	RTPParameters  any
	Type           store.ConsumerType
	Source         store.ProducerSource
	ProducerPaused bool
	Score          int
}

// OnNewConsumer implements spec §4.4's "On newConsumer notification":
// negotiate the remote track, store the Consumer, and start it.
func (r *Registry) OnNewConsumer(ctx context.Context, n NewConsumerNotification) error {
	track, err := r.transport.Consume(ctx, ConsumeParams{
		ConsumerID:    n.ConsumerID,
		ProducerID:    n.ProducerID,
		Kind:          n.Kind,
		RTPParameters: n.RTPParameters,
	})
	if err != nil {
		return roomerr.New("onNewConsumer", err)
	}

	c := &store.Consumer{
		ID:             n.ConsumerID,
		PeerID:         n.PeerID,
		Kind:           n.Kind,
		Type:           n.Type,
		Source:         n.Source,
		RemotelyPaused: n.ProducerPaused,
		LocallyPaused:  true, // cleared by startConsumer's initial resume below
		Score:          n.Score,
	}

	e := &entry{consumer: c, track: track}
	if n.Kind == store.KindAudio {
		e.detector = speaking.New(-50, false)
		lastVolume, haveVolume := 0.0, false
		e.detector.OnVolumeChange = func(db float64) {
			v := roundVolume(db)
			if haveVolume && v == lastVolume {
				return
			}
			lastVolume, haveVolume = v, true
			r.store.Dispatch(func(s *store.State) {
				if cc, ok := s.Consumers[n.ConsumerID]; ok {
					cc.Volume = v
				}
			})
		}
	}

	r.mu.Lock()
	r.consumers[n.ConsumerID] = e
	r.mu.Unlock()

	r.store.Dispatch(func(s *store.State) { s.Consumers[n.ConsumerID] = c })

	return r.startConsumer(ctx, n.ConsumerID)
}

// ObserveRemoteVolume feeds one volume sample (dBFS) for consumerID's
// audio track, coalesced by integer-rounded comparison (spec §4.4).
func (r *Registry) ObserveRemoteVolume(consumerID string, db float64) {
	r.mu.Lock()
	e, ok := r.consumers[consumerID]
	r.mu.Unlock()
	if !ok || e.detector == nil {
		return
	}
	e.detector.ObserveVolume(db)
}

func roundVolume(db float64) float64 {
	return math.Round(db)
}

// startConsumer is _startConsumer ≡ _resumeConsumer(initial=true).
func (r *Registry) startConsumer(ctx context.Context, consumerID string) error {
	return r.resumeConsumer(ctx, consumerID, true)
}

// ResumeConsumer sends resumeConsumer to the SFU iff the consumer is
// currently paused, handling the notFoundInMediasoupError marker by
// closing the consumer locally (spec §4.4).
func (r *Registry) ResumeConsumer(ctx context.Context, consumerID string) error {
	return r.resumeConsumer(ctx, consumerID, false)
}

func (r *Registry) resumeConsumer(ctx context.Context, consumerID string, initial bool) error {
	r.mu.Lock()
	e, ok := r.consumers[consumerID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if !initial && !e.consumer.LocallyPaused {
		return nil
	}

	_, err := r.session.SendRequest(ctx, "resumeConsumer", map[string]any{"consumerId": consumerID})
	if err != nil {
		if errors.Is(err, roomerr.ErrNotFoundInSFU) {
			r.closeLocally(consumerID)
			return nil
		}
		return roomerr.New("resumeConsumer", err)
	}

	r.mu.Lock()
	e.consumer.LocallyPaused = false
	r.mu.Unlock()
	r.store.Dispatch(func(s *store.State) {
		if c, ok := s.Consumers[consumerID]; ok {
			c.LocallyPaused = false
		}
	})
	return nil
}

// PauseConsumer sends pauseConsumer to the SFU iff not already paused,
// handling notFoundInMediasoupError the same way (spec §4.4).
func (r *Registry) PauseConsumer(ctx context.Context, consumerID string) error {
	r.mu.Lock()
	e, ok := r.consumers[consumerID]
	r.mu.Unlock()
	if !ok || e.consumer.LocallyPaused {
		return nil
	}

	_, err := r.session.SendRequest(ctx, "pauseConsumer", map[string]any{"consumerId": consumerID})
	if err != nil {
		if errors.Is(err, roomerr.ErrNotFoundInSFU) {
			r.closeLocally(consumerID)
			return nil
		}
		return roomerr.New("pauseConsumer", err)
	}

	r.mu.Lock()
	e.consumer.LocallyPaused = true
	r.mu.Unlock()
	r.store.Dispatch(func(s *store.State) {
		if c, ok := s.Consumers[consumerID]; ok {
			c.LocallyPaused = true
		}
	})
	return nil
}

// OnConsumerClosed handles the inbound consumerClosed notification.
func (r *Registry) OnConsumerClosed(consumerID string) {
	r.closeLocally(consumerID)
}

func (r *Registry) closeLocally(consumerID string) {
	r.mu.Lock()
	e, ok := r.consumers[consumerID]
	delete(r.consumers, consumerID)
	r.mu.Unlock()
	if !ok {
		return
	}
	e.track.Stop()
	r.store.Dispatch(func(s *store.State) { delete(s.Consumers, consumerID) })
}

// AdaptPreferredLayers implements spec §4.4's per-consumer call to the
// pure AdaptPreferredLayers algorithm, emitting
// setConsumerPreferedLayers only when the result changed.
func (r *Registry) AdaptPreferredLayers(ctx context.Context, consumerID string, viewportWidth, viewportHeight int) error {
	r.mu.Lock()
	e, ok := r.consumers[consumerID]
	r.mu.Unlock()
	if !ok || e.consumer.Type == store.ConsumerSimple {
		return nil
	}

	f := r.cfg.ClampAdaptiveScalingFactor()
	spatial, temporal := AdaptPreferredLayers(e.consumer.ResolutionScalings, e.consumer.Width, e.consumer.Height, e.consumer.TemporalLayers, viewportWidth, viewportHeight, f)

	if spatial == e.consumer.PreferredSpatialLayer && temporal == e.consumer.PreferredTemporalLayer {
		return nil
	}

	_, err := r.session.SendRequest(ctx, "setConsumerPreferedLayers", map[string]any{
		"consumerId":    consumerID,
		"spatialLayer":  spatial,
		"temporalLayer": temporal,
	})
	if err != nil {
		return roomerr.New("adaptConsumerPreferredLayers", err)
	}

	r.mu.Lock()
	e.consumer.PreferredSpatialLayer = spatial
	e.consumer.PreferredTemporalLayer = temporal
	r.mu.Unlock()
	r.store.Dispatch(func(s *store.State) {
		if c, ok := s.Consumers[consumerID]; ok {
			c.PreferredSpatialLayer = spatial
			c.PreferredTemporalLayer = temporal
		}
	})
	return nil
}

// UpdateSpotlights implements spec §4.4's updateSpotlights: resume
// every video consumer whose owning peer is in newSpotlights, pause
// every other video consumer, and drop from selectedPeers every peer
// not in newSpotlights.
func (r *Registry) UpdateSpotlights(ctx context.Context, newSpotlights []string) {
	inSpotlight := make(map[string]bool, len(newSpotlights))
	for _, p := range newSpotlights {
		inSpotlight[p] = true
	}

	r.mu.Lock()
	ids := make([]string, 0, len(r.consumers))
	peerOf := make(map[string]string, len(r.consumers))
	kindOf := make(map[string]store.MediaKind, len(r.consumers))
	for id, e := range r.consumers {
		ids = append(ids, id)
		peerOf[id] = e.consumer.PeerID
		kindOf[id] = e.consumer.Kind
	}
	r.mu.Unlock()

	for _, id := range ids {
		if kindOf[id] != store.KindVideo {
			continue
		}
		if inSpotlight[peerOf[id]] {
			r.ResumeConsumer(ctx, id)
		} else {
			r.PauseConsumer(ctx, id)
		}
	}

	r.store.Dispatch(func(s *store.State) {
		s.Room.Spotlights = append([]string(nil), newSpotlights...)
		for peerID := range s.Room.SelectedPeers {
			if !inSpotlight[peerID] {
				delete(s.Room.SelectedPeers, peerID)
			}
		}
	})
}
