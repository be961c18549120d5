package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/store"
	"github.com/coremeet/roomclient/internal/testutil/fakesfu"
)

type fakeTrack struct {
	id      string
	stopped atomic.Bool
}

func (t *fakeTrack) ID() string { return t.id }
func (t *fakeTrack) Stop()      { t.stopped.Store(true) }

type fakeRecvTransport struct {
	nextID atomic.Int64
}

func (f *fakeRecvTransport) Consume(ctx context.Context, params ConsumeParams) (Track, error) {
	id := f.nextID.Add(1)
	return &fakeTrack{id: fmt.Sprintf("track-%d", id)}, nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakesfu.Server) {
	t.Helper()
	cfg, err := config.Load(config.Options{})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	server := fakesfu.New()
	t.Cleanup(server.Close)

	sess := signaling.New(2*time.Second, 1, nil)
	if err := sess.Dial(server.URL()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(sess.Close)
	server.WaitConnected()

	server.OnRequest("resumeConsumer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("pauseConsumer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("setConsumerPreferedLayers", func(json.RawMessage) (any, error) { return map[string]any{}, nil })

	st := store.New()
	reg := New(cfg, sess, &fakeRecvTransport{}, st)
	return reg, server
}

func TestNewConsumerStartsResumed(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	err := reg.OnNewConsumer(ctx, NewConsumerNotification{
		PeerID: "p1", ProducerID: "prod1", ConsumerID: "c1", Kind: store.KindVideo, Type: store.ConsumerSimulcast,
	})
	if err != nil {
		t.Fatalf("onNewConsumer: %v", err)
	}

	snap := reg.store.Snapshot()
	c, ok := snap.Consumers["c1"]
	if !ok {
		t.Fatal("expected consumer c1 in store")
	}
	if c.LocallyPaused {
		t.Fatal("expected consumer resumed after startConsumer")
	}
}

func TestPauseThenResumeReturnsToUnpausedWithNoNetSpotlightChange(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.OnNewConsumer(ctx, NewConsumerNotification{PeerID: "p1", ConsumerID: "c1", Kind: store.KindVideo}); err != nil {
		t.Fatalf("onNewConsumer: %v", err)
	}
	spotlightsBefore := len(reg.store.Snapshot().Room.Spotlights)

	if err := reg.PauseConsumer(ctx, "c1"); err != nil {
		t.Fatalf("pauseConsumer: %v", err)
	}
	if err := reg.ResumeConsumer(ctx, "c1"); err != nil {
		t.Fatalf("resumeConsumer: %v", err)
	}

	snap := reg.store.Snapshot()
	if snap.Consumers["c1"].LocallyPaused {
		t.Fatal("expected consumer unpaused after pause then resume")
	}
	if got := len(snap.Room.Spotlights); got != spotlightsBefore {
		t.Fatalf("expected no net spotlight change, spotlights went from %d to %d", spotlightsBefore, got)
	}
}

func TestUpdateSpotlightsPausesConsumersOutsideSpotlight(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	reg.OnNewConsumer(ctx, NewConsumerNotification{PeerID: "p1", ConsumerID: "c1", Kind: store.KindVideo})
	reg.OnNewConsumer(ctx, NewConsumerNotification{PeerID: "p2", ConsumerID: "c2", Kind: store.KindVideo})

	reg.UpdateSpotlights(ctx, []string{"p1"})

	snap := reg.store.Snapshot()
	if snap.Consumers["c1"].LocallyPaused {
		t.Fatal("expected c1 (in spotlight) to be resumed")
	}
	if !snap.Consumers["c2"].LocallyPaused {
		t.Fatal("expected c2 (not in spotlight) to be paused")
	}
}

func TestAdaptPreferredLayersSkipsSimpleConsumers(t *testing.T) {
	reg, server := newTestRegistry(t)
	ctx := context.Background()

	called := false
	server.OnRequest("setConsumerPreferedLayers", func(json.RawMessage) (any, error) {
		called = true
		return map[string]any{}, nil
	})

	reg.OnNewConsumer(ctx, NewConsumerNotification{PeerID: "p1", ConsumerID: "c1", Kind: store.KindVideo, Type: store.ConsumerSimple})

	if err := reg.AdaptPreferredLayers(ctx, "c1", 1280, 720); err != nil {
		t.Fatalf("adaptPreferredLayers: %v", err)
	}
	if called {
		t.Fatal("expected no setConsumerPreferedLayers request for a simple consumer")
	}
}
