// Package room is the Room State Coordinator (spec §4.6): the
// lobby/joined/closed state machine, permissions, roles, chat, files,
// and per-peer local-recording state, wired to the Signaling Session's
// notification stream. Recording consent is logged and announced, not
// stored or aggregated.
package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/consumer"
	"github.com/coremeet/roomclient/internal/notify"
	"github.com/coremeet/roomclient/internal/producer"
	"github.com/coremeet/roomclient/internal/roomerr"
	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/spotlight"
	"github.com/coremeet/roomclient/internal/store"
	"github.com/coremeet/roomclient/internal/transport"
)

// Transport is the slice of the Device & Transport Manager the Room
// Coordinator drives directly (join-time device load/transport setup).
type Transport interface {
	Join(ctx context.Context, opts transport.JoinOptions) error
	SetTURNServers(servers []store.TURNServer)
	TeardownTransports()
	Close()
}

// Client is the Room Client: the process-wide orchestrator spec §9
// says is created exactly once per application bootstrap.
type Client struct {
	cfg       *config.Config
	session   *signaling.Session
	transport Transport
	producers *producer.Registry
	consumers *consumer.Registry
	dispatcher *signaling.Dispatcher
	store     *store.Store
	notifier  *notify.Surface
	logger    *slog.Logger

	mu        sync.Mutex
	spotlightSel *spotlight.Selector
	selfPeerID   string

	joinOpts JoinOptions

	cancelRun context.CancelFunc
}

// JoinOptions are join's parameters (spec §4.6 "_joinRoom").
type JoinOptions struct {
	RoomID      string
	DisplayName string
	Picture     string
	From        string
	Returning   bool
	JoinVideo   bool
	JoinAudio   bool
}

// New constructs a Room Client bound to its collaborators. Every
// collaborator must already share the same Store and Notification
// Surface (spec §9 "Global state": one store, one singleton per
// process).
func New(cfg *config.Config, session *signaling.Session, tp Transport, producers *producer.Registry, consumers *consumer.Registry, st *store.Store, notifier *notify.Surface, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:        cfg,
		session:    session,
		transport:  tp,
		producers:  producers,
		consumers:  consumers,
		store:      st,
		notifier:   notifier,
		logger:     logger,
		dispatcher: signaling.NewDispatcher(logger),
	}
	c.registerHandlers()
	return c
}

// Join implements spec §4.6's join sequence: construct the device and
// transports, issue the `join` request, hydrate the store from the
// response, and conditionally start local media.
func (c *Client) Join(ctx context.Context, opts JoinOptions) error {
	c.mu.Lock()
	c.joinOpts = opts
	c.mu.Unlock()

	c.store.Dispatch(func(s *store.State) {
		s.Room.RoomID = opts.RoomID
		s.Room.State = store.RoomStateConnecting
	})

	if err := c.transport.Join(ctx, transport.JoinOptions{
		RoomID:    opts.RoomID,
		JoinVideo: opts.JoinVideo,
		JoinAudio: opts.JoinAudio,
	}); err != nil {
		return roomerr.New("join", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancelRun = cancel
	c.mu.Unlock()
	go c.dispatcher.Run(runCtx, c.session.Notifications())
	go c.runEvents(runCtx)

	resp, err := c.session.SendRequest(ctx, "join", map[string]any{
		"displayName": opts.DisplayName,
		"picture":     opts.Picture,
		"from":        opts.From,
		"returning":   opts.Returning,
	})
	if err != nil {
		return roomerr.New("join", err)
	}

	var joinResp joinResponse
	if err := json.Unmarshal(resp, &joinResp); err != nil {
		return roomerr.New("join:decode", err)
	}

	c.hydrateFromJoin(joinResp)

	if opts.JoinVideo || opts.JoinAudio {
		c.maybeStartLocalMedia(ctx, joinResp)
	}

	c.store.Dispatch(func(s *store.State) {
		s.Room.Joined = true
		s.Room.InLobby = false
		s.Room.State = store.RoomStateConnected
		s.Me.MediaCapabilities = store.MediaCapabilities{
			CanSendMic:    opts.JoinAudio,
			CanSendWebcam: opts.JoinVideo,
		}
	})

	return nil
}

func (c *Client) maybeStartLocalMedia(ctx context.Context, resp joinResponse) {
	peerCount := len(resp.Peers)
	startMicMuted := c.cfg.AutoMuteThreshold > 0 && peerCount >= c.cfg.AutoMuteThreshold

	if c.hasPermission(resp, "SHARE_AUDIO") {
		if err := c.producers.UpdateMic(ctx, producer.UpdateMicOptions{Start: true}); err != nil {
			c.notifier.Error("Could not start your microphone.")
		} else if startMicMuted {
			_ = c.producers.MuteMic(ctx)
		}
	}
	if c.hasPermission(resp, "SHARE_VIDEO") {
		if err := c.producers.UpdateWebcam(ctx, producer.UpdateWebcamOptions{Start: true}); err != nil {
			c.notifier.Error("Could not start your webcam.")
		}
	}
}

func (c *Client) hasPermission(resp joinResponse, permission string) bool {
	allowedRoles, ok := resp.RoomPermissions[permission]
	if !ok {
		return resp.AllowWhenRoleMissing[permission]
	}
	for _, myRole := range resp.Roles {
		for _, allowed := range allowedRoles {
			if myRole == allowed.ID {
				return true
			}
		}
	}
	return resp.AllowWhenRoleMissing[permission]
}

func (c *Client) hydrateFromJoin(resp joinResponse) {
	c.mu.Lock()
	c.spotlightSel = spotlight.New(c.maxSpotlights(), false, c.selfPeerID, nil)
	c.mu.Unlock()

	c.store.Dispatch(func(s *store.State) {
		s.Room.Locked = resp.Locked
		s.Room.AccessCode = resp.AccessCode
		s.ChatHistory = resp.ChatHistory
		s.FileHistory = resp.FileHistory
		s.Room.UserRoles = resp.UserRoles
		s.Room.RoomPermissions = resp.RoomPermissions
		s.Room.AllowWhenRoleMissing = resp.AllowWhenRoleMissing
		s.Room.Tracker = resp.Tracker

		for _, p := range resp.Peers {
			peer := p
			s.Peers[p.PeerID] = &peer
		}
		for _, p := range resp.LobbyPeers {
			peer := p
			s.LobbyPeers[p.PeerID] = &peer
		}
	})
}

func (c *Client) maxSpotlights() int {
	return c.cfg.LastN
}

// runEvents drives the room state machine from signaling lifecycle
// events (spec §4.1/§4.6): transient disconnect tears down media and
// returns to connecting; permanent disconnect closes; reconnect
// returns to connected without rejoining.
func (c *Client) runEvents(ctx context.Context) {
	for {
		select {
		case ev, ok := <-c.session.Events():
			if !ok {
				return
			}
			c.handleEvent(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(ev signaling.Event) {
	switch ev.Kind {
	case signaling.EventDisconnect:
		if ev.Reason == signaling.ReasonServerDisconnect {
			c.Close()
			return
		}
		c.tearDownMediaForReconnect()
		c.store.Dispatch(func(s *store.State) { s.Room.State = store.RoomStateConnecting })

	case signaling.EventReconnect:
		c.store.Dispatch(func(s *store.State) { s.Room.State = store.RoomStateConnected })

	case signaling.EventReconnectFailed:
		c.notifier.Warning("Unable to reconnect to the room.")
	}
}

// tearDownMediaForReconnect implements spec §4.1's transient-disconnect
// teardown: all producers, extra-video producers, send/recv
// transports, spotlights, peers, and consumers are torn down locally.
// The four Disable calls touch disjoint producer sets and none of them
// takes a per-source lock, so they run concurrently rather than in series.
func (c *Client) tearDownMediaForReconnect() {
	ctx := context.Background()

	var g errgroup.Group
	g.Go(func() error { return c.producers.DisableMic(ctx) })
	g.Go(func() error { return c.producers.DisableWebcam(ctx) })
	g.Go(func() error { return c.producers.DisableScreenSharing(ctx) })
	g.Go(func() error { return c.producers.DisableAllExtraVideo(ctx) })
	_ = g.Wait()

	c.transport.TeardownTransports()

	c.store.Dispatch(func(s *store.State) {
		s.Consumers = map[string]*store.Consumer{}
		s.Peers = map[string]*store.Peer{}
		s.Room.Spotlights = nil
		s.Room.SelectedPeers = map[string]bool{}
	})
}

// Close is the terminal transition spec §4.6 names: both transports
// close, and any subsequent SFU responses are discarded.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancelRun
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.transport.Close()
	c.session.Close()

	c.store.Dispatch(func(s *store.State) { s.Room.State = store.RoomStateClosed })
}

type joinResponse struct {
	Authenticated        bool                         `json:"authenticated"`
	Roles                []string                     `json:"roles"`
	Peers                []store.Peer                 `json:"peers"`
	Tracker              any                          `json:"tracker"`
	RoomPermissions      map[string][]store.RoleDef   `json:"roomPermissions"`
	UserRoles            map[string]store.RoleDef     `json:"userRoles"`
	AllowWhenRoleMissing map[string]bool              `json:"allowWhenRoleMissing"`
	ChatHistory          []store.ChatMessage          `json:"chatHistory"`
	FileHistory          []store.FileAnnouncement     `json:"fileHistory"`
	Locked               bool                         `json:"locked"`
	LobbyPeers           []store.Peer                 `json:"lobbyPeers"`
	AccessCode           string                       `json:"accessCode"`
}
