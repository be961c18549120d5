package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/notify"
	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/store"
	"github.com/coremeet/roomclient/internal/testutil/fakesfu"
)

type fakeTrack struct {
	id, label string
	stopped   atomic.Bool
}

func (t *fakeTrack) ID() string    { return t.id }
func (t *fakeTrack) Label() string { return t.label }
func (t *fakeTrack) Stop()         { t.stopped.Store(true) }

type fakeAcquirer struct {
	nextID atomic.Int64
}

func (a *fakeAcquirer) next(label string) *fakeTrack {
	id := a.nextID.Add(1)
	return &fakeTrack{id: fmt.Sprintf("track-%d", id), label: label}
}

func (a *fakeAcquirer) AcquireAudio(ctx context.Context, constraints config.AudioConstraints, deviceID string) (Track, error) {
	return a.next("mic"), nil
}

func (a *fakeAcquirer) AcquireVideo(ctx context.Context, deviceID string, width, height, frameRate int) (Track, error) {
	label := deviceID
	if label == "" {
		label = "default-camera"
	}
	return a.next(label), nil
}

func (a *fakeAcquirer) AcquireScreen(ctx context.Context, width, height, frameRate int) (Track, Track, error) {
	return a.next("screen"), a.next("screen-audio"), nil
}

type fakeTransport struct {
	nextID atomic.Int64
}

func (f *fakeTransport) Produce(ctx context.Context, kind store.MediaKind, rtpParameters any, appData any) (string, error) {
	id := f.nextID.Add(1)
	return fmt.Sprintf("producer-%d", id), nil
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

	server.OnRequest("pauseProducer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("resumeProducer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("closeProducer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })

	st := store.New()
	reg := New(cfg, sess, &fakeTransport{}, &fakeAcquirer{}, st, notify.New())
	return reg, server
}

func TestUpdateMicThenMuteUnmuteRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.UpdateMic(ctx, UpdateMicOptions{Start: true}); err != nil {
		t.Fatalf("updateMic: %v", err)
	}

	reg.mu.Lock()
	firstID := reg.producers[store.SourceMic].sfuID
	reg.mu.Unlock()

	if err := reg.MuteMic(ctx); err != nil {
		t.Fatalf("muteMic: %v", err)
	}
	if err := reg.UnmuteMic(ctx); err != nil {
		t.Fatalf("unmuteMic: %v", err)
	}

	reg.mu.Lock()
	lp := reg.producers[store.SourceMic]
	reg.mu.Unlock()

	if lp == nil {
		t.Fatal("expected mic producer to still exist")
	}
	if lp.sfuID != firstID {
		t.Fatalf("expected same producer across mute/unmute, got %s then %s", firstID, lp.sfuID)
	}
	if lp.paused {
		t.Fatal("expected mic to be resumed after unmuteMic")
	}
}

func TestUpdateMicDeviceChangeWithoutRestartFails(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := reg.UpdateMic(context.Background(), UpdateMicOptions{NewDeviceID: "dev2", Restart: false})
	if err == nil {
		t.Fatal("expected error for device change without restart")
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.producers[store.SourceMic] != nil {
		t.Fatal("expected no producer created on invalid-argument failure")
	}
}

func TestAddExtraVideoRejectsDuplicateTrackLabel(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.AddExtraVideo(ctx, "cam-a"); err != nil {
		t.Fatalf("first addExtraVideo: %v", err)
	}
	if _, err := reg.AddExtraVideo(ctx, "cam-a"); err == nil {
		t.Fatal("expected dedup rejection for a second addExtraVideo of the same device")
	}
}

func TestDisableAllExtraVideoClosesEveryExtraProducer(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.AddExtraVideo(ctx, "cam-a"); err != nil {
		t.Fatalf("addExtraVideo cam-a: %v", err)
	}
	if _, err := reg.AddExtraVideo(ctx, "cam-b"); err != nil {
		t.Fatalf("addExtraVideo cam-b: %v", err)
	}

	if err := reg.DisableAllExtraVideo(ctx); err != nil {
		t.Fatalf("disableAllExtraVideo: %v", err)
	}

	reg.mu.Lock()
	remaining := len(reg.extra)
	reg.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected no extra producers left, got %d", remaining)
	}

	snap := reg.store.Snapshot()
	if len(snap.ExtraProducers) != 0 {
		t.Fatalf("expected extra producers cleared from store, got %d", len(snap.ExtraProducers))
	}
}

func TestUpdateMicSingleFlightPerSource(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if !reg.locks.tryAcquire(string(store.SourceMic)) {
		t.Fatal("expected first acquire to succeed")
	}
	defer reg.locks.release(string(store.SourceMic))

	err := reg.UpdateMic(context.Background(), UpdateMicOptions{Start: true})
	if err == nil {
		t.Fatal("expected ErrAlreadyInProgress while source lock is held")
	}
}
