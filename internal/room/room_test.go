package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/consumer"
	"github.com/coremeet/roomclient/internal/notify"
	"github.com/coremeet/roomclient/internal/producer"
	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/store"
	"github.com/coremeet/roomclient/internal/testutil/fakesfu"
	"github.com/coremeet/roomclient/internal/transport"
)

type fakeTransport struct {
	joined      bool
	turnServers []store.TURNServer
	closed      bool
	tornDown    bool
}

func (f *fakeTransport) Join(ctx context.Context, opts transport.JoinOptions) error {
	f.joined = true
	return nil
}

func (f *fakeTransport) SetTURNServers(servers []store.TURNServer) { f.turnServers = servers }
func (f *fakeTransport) TeardownTransports()                       { f.tornDown = true }
func (f *fakeTransport) Close()                                    { f.closed = true }

type fakeTrack struct{ id string }

func (t *fakeTrack) ID() string    { return t.id }
func (t *fakeTrack) Label() string { return t.id }
func (t *fakeTrack) Stop()         {}

type fakeAcquirer struct{}

func (a *fakeAcquirer) AcquireAudio(ctx context.Context, constraints config.AudioConstraints, deviceID string) (producer.Track, error) {
	return &fakeTrack{id: "mic"}, nil
}

func (a *fakeAcquirer) AcquireVideo(ctx context.Context, deviceID string, width, height, frameRate int) (producer.Track, error) {
	return &fakeTrack{id: "webcam"}, nil
}

func (a *fakeAcquirer) AcquireScreen(ctx context.Context, width, height, frameRate int) (producer.Track, producer.Track, error) {
	return &fakeTrack{id: "screen"}, &fakeTrack{id: "screen-audio"}, nil
}

type fakeSendTransport struct{}

func (f *fakeSendTransport) Produce(ctx context.Context, kind store.MediaKind, rtpParameters any, appData any) (string, error) {
	return "producer-1", nil
}

type fakeRecvTransport struct{}

func (f *fakeRecvTransport) Consume(ctx context.Context, params consumer.ConsumeParams) (consumer.Track, error) {
	return &fakeTrack{id: params.ConsumerID + "-track"}, nil
}

func newTestClient(t *testing.T) (*Client, *fakesfu.Server, *fakeTransport) {
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

	server.OnRequest("join", func(json.RawMessage) (any, error) {
		return map[string]any{
			"authenticated": true,
			"roles":         []string{"moderator"},
			"peers":         []any{},
			"roomPermissions": map[string]any{
				"SHARE_AUDIO": []map[string]any{{"id": "moderator", "label": "Moderator", "level": 100}},
			},
		}, nil
	})
	server.OnRequest("pauseProducer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("resumeProducer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("closeProducer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("pauseConsumer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("resumeConsumer", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("changeDisplayName", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("raisedHand", func(json.RawMessage) (any, error) { return map[string]any{}, nil })
	server.OnRequest("moderator:mute", func(json.RawMessage) (any, error) { return map[string]any{}, nil })

	st := store.New()
	notifier := notify.New()
	prodReg := producer.New(cfg, sess, &fakeSendTransport{}, &fakeAcquirer{}, st, notifier)
	consReg := consumer.New(cfg, sess, &fakeRecvTransport{}, st)
	tp := &fakeTransport{}

	c := New(cfg, sess, tp, prodReg, consReg, st, notifier, nil)
	return c, server, tp
}

func TestJoinHydratesStoreAndStartsLocalMedia(t *testing.T) {
	c, _, tp := newTestClient(t)
	ctx := context.Background()

	if err := c.Join(ctx, JoinOptions{RoomID: "room1", DisplayName: "Ada", JoinAudio: true}); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer c.Close()

	if !tp.joined {
		t.Fatal("expected transport.Join to be called")
	}

	snap := c.store.Snapshot()
	if snap.Room.State != store.RoomStateConnected {
		t.Fatalf("expected room state connected, got %v", snap.Room.State)
	}
	if !snap.Room.Joined {
		t.Fatal("expected Room.Joined true")
	}
	if _, ok := snap.Producers[store.SourceMic]; !ok {
		t.Fatal("expected mic producer started (peer has SHARE_AUDIO permission)")
	}
}

func TestRoomReadyNotificationSetsTURNServersAndConnectedState(t *testing.T) {
	c, server, tp := newTestClient(t)
	ctx := context.Background()

	if err := c.Join(ctx, JoinOptions{RoomID: "room1", DisplayName: "Ada"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer c.Close()

	if err := server.Notify("roomReady", map[string]any{
		"turnServers": []store.TURNServer{{URLs: []string{"turn:example.com"}, Username: "u", Credential: "p"}},
	}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	waitFor(t, func() bool { return len(tp.turnServers) == 1 })
	waitFor(t, func() bool { return c.store.Snapshot().Room.Joined })
}

func TestActiveSpeakerPromotionResumesSpotlightedConsumer(t *testing.T) {
	c, server, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.Join(ctx, JoinOptions{RoomID: "room1", DisplayName: "Ada"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer c.Close()

	if err := c.consumers.OnNewConsumer(ctx, consumer.NewConsumerNotification{
		PeerID: "p7", ConsumerID: "c7", Kind: store.KindVideo, Type: store.ConsumerSimulcast,
	}); err != nil {
		t.Fatalf("onNewConsumer: %v", err)
	}

	// OnNewConsumer starts (resumes) the consumer, so pause it first to
	// give the active-speaker promotion something to resume.
	if err := c.consumers.PauseConsumer(ctx, "c7"); err != nil {
		t.Fatalf("pauseConsumer: %v", err)
	}
	snap := c.store.Snapshot()
	if !snap.Consumers["c7"].LocallyPaused {
		t.Fatal("expected c7 to be locally paused before promotion")
	}

	if err := server.Notify("activeSpeaker", map[string]any{"peerId": "p7"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	waitFor(t, func() bool {
		c := c.store.Snapshot().Consumers["c7"]
		return c != nil && !c.LocallyPaused
	})
}

func TestModeratorMuteNotificationMutesLocalMic(t *testing.T) {
	c, server, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.Join(ctx, JoinOptions{RoomID: "room1", DisplayName: "Ada", JoinAudio: true}); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer c.Close()

	if err := server.Notify("moderator:mute", map[string]any{}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	waitFor(t, func() bool {
		p := c.store.Snapshot().Producers[store.SourceMic]
		return p != nil && p.Paused
	})
}

func TestTransientDisconnectTearsDownMediaAndReturnsToConnecting(t *testing.T) {
	c, server, tp := newTestClient(t)
	ctx := context.Background()

	if err := c.Join(ctx, JoinOptions{RoomID: "room1", DisplayName: "Ada", JoinAudio: true}); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer c.Close()

	server.CloseConn()

	waitFor(t, func() bool { return c.store.Snapshot().Room.State == store.RoomStateConnecting })
	waitFor(t, func() bool { return tp.tornDown })

	snap := c.store.Snapshot()
	if len(snap.Peers) != 0 || len(snap.Consumers) != 0 {
		t.Fatal("expected peers and consumers cleared on transient disconnect")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
