package cli

import (
	"context"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/consumer"
	"github.com/coremeet/roomclient/internal/notify"
	"github.com/coremeet/roomclient/internal/producer"
	"github.com/coremeet/roomclient/internal/room"
	"github.com/coremeet/roomclient/internal/roomerr"
	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/store"
	"github.com/coremeet/roomclient/internal/transport"
)

// RoomSession bundles every collaborator spec §9 names as "one store,
// one singleton per process" into the unit the join command drives,
// the Room Client equivalent of the teacher's ConnectionContext.
type RoomSession struct {
	Config   *config.Config
	Signaling *signaling.Session
	Transport *transport.Manager
	Producers *producer.Registry
	Consumers *consumer.Registry
	Room     *room.Client
	Store    *store.Store
	Notifier *notify.Surface
}

// Connect dials serverURL and wires every collaborator together.
// Join still needs to be called separately to actually enter a room.
func Connect(serverURL string, opts config.Options, browser store.BrowserInfo) (*RoomSession, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, roomerr.New("load config", err)
	}

	sess := signaling.New(cfg.RequestTimeout, cfg.RequestRetries, nil)
	if err := sess.Dial(serverURL); err != nil {
		return nil, roomerr.New("connect to server", err)
	}

	st := store.New()
	notifier := notify.New()
	tm := transport.New(sess, cfg, browser, nil)
	prodReg := producer.New(cfg, sess, tm, noCaptureAcquirer{}, st, notifier)
	consReg := consumer.New(cfg, sess, tm, st)
	roomClient := room.New(cfg, sess, tm, prodReg, consReg, st, notifier, nil)

	return &RoomSession{
		Config:    cfg,
		Signaling: sess,
		Transport: tm,
		Producers: prodReg,
		Consumers: consReg,
		Room:      roomClient,
		Store:     st,
		Notifier:  notifier,
	}, nil
}

// Join enters the room described by opts.
func (rs *RoomSession) Join(ctx context.Context, opts room.JoinOptions) error {
	return rs.Room.Join(ctx, opts)
}

// Close tears the session down; safe to call more than once.
func (rs *RoomSession) Close() {
	rs.Room.Close()
}
