// Package transport is the Device & Transport Manager (spec §4.2): it
// loads the SFU's RTP capabilities, creates the send/recv WebRTC
// transports, and coordinates ICE restarts on network flaps.
//
// The "device" abstraction spec §1 assumes as external is realized here
// with pion/webrtc/v4's ORTC primitives (ICEGatherer, ICETransport,
// DTLSTransport) — the same building blocks a browser's WebRTC stack
// exposes under mediasoup-client's Device/Transport wrapper.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/consumer"
	"github.com/coremeet/roomclient/internal/roomerr"
	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/store"
)

// headerExtensionVideoOrientation is the RTP header extension URI
// stripped from the router's RTP capabilities as a compatibility
// workaround (spec §4.2).
const headerExtensionVideoOrientation = "urn:3gpp:video-orientation"

// Role distinguishes the two transport instances spec §3 requires.
type Role string

const (
	RoleSend Role = "send"
	RoleRecv Role = "recv"
)

// Device holds the loaded (stripped) router RTP capabilities for this
// session, standing in for mediasoup-client's Device.load result.
type Device struct {
	RTPCapabilities json.RawMessage
}

// Transport is one of the two WebRTC transports to the SFU (spec §3).
type Transport struct {
	ID   string
	Role Role

	mu      sync.Mutex
	gatherer *pion.ICEGatherer
	ice      *pion.ICETransport
	dtls     *pion.DTLSTransport

	restart *iceRestartController
}

// Manager is the Device & Transport Manager (spec §4.2 component 2).
type Manager struct {
	session *signaling.Session
	cfg     *config.Config
	logger  *slog.Logger
	browser store.BrowserInfo

	api *pion.API

	Device *Device

	mu            sync.Mutex
	SendTransport *Transport
	RecvTransport *Transport
	turnServers   []store.TURNServer
}

// SetTURNServers records the TURN credentials the SFU handed back in
// roomReady (spec §6), used for every transport created afterward.
func (m *Manager) SetTURNServers(servers []store.TURNServer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnServers = servers
}

// New constructs a Manager bound to an established signaling Session.
func New(session *signaling.Session, cfg *config.Config, browser store.BrowserInfo, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		session: session,
		cfg:     cfg,
		logger:  logger,
		browser: browser,
		api:     pion.NewAPI(),
	}
}

// JoinOptions mirrors the `join` operation's media flags
// (spec §4.2 "On join(...)").
type JoinOptions struct {
	RoomID    string
	JoinVideo bool
	JoinAudio bool
}

// Join performs the sequence in spec §4.2: fetch router RTP
// capabilities, strip the video-orientation extension, "load" the
// device, and create the recv transport (always) and send transport
// (only if producing).
func (m *Manager) Join(ctx context.Context, opts JoinOptions) error {
	raw, err := m.session.SendRequest(ctx, "getRouterRtpCapabilities", nil)
	if err != nil {
		return roomerr.New("join:getRouterRtpCapabilities", err)
	}

	stripped, err := stripVideoOrientation(raw)
	if err != nil {
		return roomerr.New("join:stripHeaderExtension", err)
	}
	m.Device = &Device{RTPCapabilities: stripped}

	produce := opts.JoinVideo || opts.JoinAudio

	recv, err := m.createTransport(ctx, RoleRecv, false, true)
	if err != nil {
		return roomerr.New("join:createRecvTransport", err)
	}

	m.mu.Lock()
	m.RecvTransport = recv
	m.mu.Unlock()

	if produce {
		send, err := m.createTransport(ctx, RoleSend, true, false)
		if err != nil {
			return roomerr.New("join:createSendTransport", err)
		}
		m.mu.Lock()
		m.SendTransport = send
		m.mu.Unlock()
	}

	return nil
}

func stripVideoOrientation(raw json.RawMessage) (json.RawMessage, error) {
	var caps map[string]any
	if err := json.Unmarshal(raw, &caps); err != nil {
		return nil, err
	}

	exts, ok := caps["headerExtensions"].([]any)
	if !ok {
		return raw, nil
	}

	filtered := make([]any, 0, len(exts))
	for _, e := range exts {
		m, ok := e.(map[string]any)
		if ok && m["uri"] == headerExtensionVideoOrientation {
			continue
		}
		filtered = append(filtered, e)
	}
	caps["headerExtensions"] = filtered

	return json.Marshal(caps)
}

type createWebRTCTransportResponse struct {
	ID             string          `json:"id"`
	ICEParameters  pion.ICEParameters  `json:"iceParameters"`
	ICECandidates  []pion.ICECandidate `json:"iceCandidates"`
	DTLSParameters pion.DTLSParameters `json:"dtlsParameters"`
}

func (m *Manager) createTransport(ctx context.Context, role Role, producing, consuming bool) (*Transport, error) {
	raw, err := m.session.SendRequest(ctx, "createWebRtcTransport", map[string]any{
		"forceTcp":  false,
		"producing": producing,
		"consuming": consuming,
	})
	if err != nil {
		return nil, err
	}

	var resp createWebRTCTransportResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode createWebRtcTransport response: %w", err)
	}

	iceServers := m.iceServers()
	policy := pion.ICETransportPolicyAll
	if m.forceRelay(iceServers) {
		policy = pion.ICETransportPolicyRelay
	}

	gatherer, err := m.api.NewICEGatherer(pion.ICEGatherOptions{
		ICEServers:      iceServers,
		ICEGatherPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("new ice gatherer: %w", err)
	}

	iceTransport := m.api.NewICETransport(gatherer)
	dtlsTransport, err := m.api.NewDTLSTransport(iceTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("new dtls transport: %w", err)
	}

	t := &Transport{
		ID:       resp.ID,
		Role:     role,
		gatherer: gatherer,
		ice:      iceTransport,
		dtls:     dtlsTransport,
	}
	t.restart = newICERestartController(m.logger, func(ctx context.Context) error {
		return m.doRestartICE(ctx, t)
	})

	iceTransport.OnConnectionStateChange(func(state pion.ICETransportState) {
		switch state {
		case pion.ICETransportStateDisconnected, pion.ICETransportStateFailed:
			t.restart.Schedule()
		default:
			t.restart.Cancel()
		}
	})

	if err := gatherer.Gather(); err != nil {
		return nil, fmt.Errorf("gather ice candidates: %w", err)
	}

	role_ := pion.ICERoleControlling
	if err := iceTransport.Start(gatherer, resp.ICEParameters, &role_); err != nil {
		return nil, fmt.Errorf("start ice transport: %w", err)
	}

	localDTLS, err := dtlsTransport.GetLocalParameters()
	if err != nil {
		return nil, fmt.Errorf("local dtls parameters: %w", err)
	}

	// connect callback (spec §4.2): tell the SFU our DTLS parameters.
	if _, err := m.session.SendRequest(ctx, "connectWebRtcTransport", map[string]any{
		"transportId":    resp.ID,
		"dtlsParameters": localDTLS,
	}); err != nil {
		return nil, err
	}

	if err := dtlsTransport.Start(resp.DTLSParameters); err != nil {
		return nil, fmt.Errorf("start dtls transport: %w", err)
	}

	return t, nil
}

func (m *Manager) iceServers() []pion.ICEServer {
	servers := make([]pion.ICEServer, 0, len(m.cfg.STUNServers)+len(m.turnServers))
	for _, s := range m.cfg.STUNServers {
		servers = append(servers, pion.ICEServer{URLs: []string{s}})
	}

	m.mu.Lock()
	turn := m.turnServers
	m.mu.Unlock()
	for _, t := range turn {
		servers = append(servers, pion.ICEServer{
			URLs:       t.URLs,
			Username:   t.Username,
			Credential: t.Credential,
		})
	}
	return servers
}

func hasTURN(servers []pion.ICEServer) bool {
	for _, s := range servers {
		if s.Username != "" {
			return true // a TURN server carries credentials, a STUN-only one doesn't
		}
	}
	return false
}

// forceRelay implements spec §4.2's explicit rule ("force
// iceTransportPolicy='relay' when browser flag is firefox and TURN
// servers are present") together with the supplementary CGNAT/VPN
// heuristic from ShouldForceRelay: a local network known to mangle
// host-candidate connectivity should also prefer relay regardless of
// browser.
func (m *Manager) forceRelay(servers []pion.ICEServer) bool {
	if !hasTURN(servers) {
		return false
	}
	if m.browser.Name == "firefox" {
		return true
	}
	return ShouldForceRelay()
}

type restartICEResponse struct {
	ICEParameters pion.ICEParameters `json:"iceParameters"`
}

// doRestartICE implements the `restartIce` request/response half of
// spec §4.2's restart algorithm; iceRestartController owns the
// single-flight/backoff half.
func (m *Manager) doRestartICE(ctx context.Context, t *Transport) error {
	raw, err := m.session.SendRequest(ctx, "restartIce", map[string]any{"transportId": t.ID})
	if err != nil {
		return err
	}

	var resp restartICEResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ice.Restart(resp.ICEParameters)
}

// Produce sends the SFU the `produce` request for a locally negotiated
// track's RTP parameters, returning the server-assigned producer id
// (spec §4.2/§6 "produce callback").
func (m *Manager) Produce(ctx context.Context, kind store.MediaKind, rtpParameters any, appData any) (string, error) {
	m.mu.Lock()
	send := m.SendTransport
	m.mu.Unlock()
	if send == nil {
		return "", roomerr.New("produce", fmt.Errorf("send transport not created"))
	}

	raw, err := m.session.SendRequest(ctx, "produce", map[string]any{
		"transportId":   send.ID,
		"kind":          kind,
		"rtpParameters": rtpParameters,
		"appData":       appData,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// remoteTrack adapts a pion TrackRemote to the narrow Track interface
// the Consumer Registry requires.
type remoteTrack struct {
	id     string
	remote *pion.TrackRemote
}

func (t *remoteTrack) ID() string { return t.id }
func (t *remoteTrack) Stop()      {}

// Consume implements the Consumer Registry's RecvTransport: negotiate
// one remote track over the recv transport for a consumer the SFU has
// already created, using the SSRC/payload type the newConsumer
// notification's rtpParameters carry (spec §4.4/§6).
func (m *Manager) Consume(ctx context.Context, params consumer.ConsumeParams) (consumer.Track, error) {
	m.mu.Lock()
	recv := m.RecvTransport
	m.mu.Unlock()
	if recv == nil {
		return nil, roomerr.New("consume", fmt.Errorf("recv transport not created"))
	}

	kind := pion.RTPCodecTypeAudio
	if params.Kind == store.KindVideo {
		kind = pion.RTPCodecTypeVideo
	}

	receiver, err := m.api.NewRTPReceiver(kind, recv.dtls)
	if err != nil {
		return nil, roomerr.New("consume:newRTPReceiver", err)
	}

	decoding, err := decodingParametersFrom(params.RTPParameters)
	if err != nil {
		return nil, roomerr.New("consume:decodeRtpParameters", err)
	}

	if err := receiver.Receive(pion.RTPReceiveParameters{Encodings: decoding}); err != nil {
		return nil, roomerr.New("consume:receive", err)
	}

	return &remoteTrack{id: params.ConsumerID, remote: receiver.Track()}, nil
}

// decodingParametersFrom pulls the SSRC(s) the SFU assigned to this
// consumer out of its rtpParameters.encodings, the one field Receive
// needs that isn't implied by the already-negotiated DTLS session.
func decodingParametersFrom(rtpParameters any) ([]pion.RTPDecodingParameters, error) {
	m, ok := rtpParameters.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rtpParameters: expected object, got %T", rtpParameters)
	}

	encodings, _ := m["encodings"].([]any)
	decodings := make([]pion.RTPDecodingParameters, 0, len(encodings))
	for _, e := range encodings {
		enc, ok := e.(map[string]any)
		if !ok {
			continue
		}
		ssrc, _ := enc["ssrc"].(float64)
		if ssrc == 0 {
			continue
		}
		decodings = append(decodings, pion.RTPDecodingParameters{
			RTPCodingParameters: pion.RTPCodingParameters{SSRC: pion.SSRC(uint32(ssrc))},
		})
	}
	if len(decodings) == 0 {
		return nil, fmt.Errorf("rtpParameters: no encodings with an ssrc")
	}
	return decodings, nil
}

// TeardownTransports stops ICE/DTLS on both transports and drops them,
// without touching the signaling session — the non-terminal half of a
// transient disconnect (spec §4.1), distinct from Close, so the room
// can rejoin and call Join again to build fresh transports.
func (m *Manager) TeardownTransports() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range []*Transport{m.SendTransport, m.RecvTransport} {
		if t == nil {
			continue
		}
		t.restart.Cancel()
		t.mu.Lock()
		t.dtls.Stop()
		t.ice.Stop()
		t.mu.Unlock()
	}
	m.SendTransport = nil
	m.RecvTransport = nil
}

// Close tears down both transports exactly as TeardownTransports does;
// it keeps no closed state, so Join may be called again afterward.
func (m *Manager) Close() {
	m.TeardownTransports()
}
