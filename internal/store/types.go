// Package store holds the Room Client's Data Model (spec §3) behind a
// single mutex-guarded Store, mutated only through Dispatch so every
// change is atomic and observable (spec §4's "Reactive Store Bridge",
// §9's "Global state" note).
package store

import "time"

// RoomState is the Room's state-machine position (spec §3 "Room state").
type RoomState string

const (
	RoomStateNew        RoomState = "new"
	RoomStateConnecting RoomState = "connecting"
	RoomStateConnected  RoomState = "connected"
	RoomStateClosed     RoomState = "closed"
)

// Layout is the room's video layout mode.
type Layout string

const (
	LayoutDemocratic Layout = "democratic"
	LayoutFilmstrip  Layout = "filmstrip"
)

// ProducerSource enumerates the fixed local producer sources plus the
// dynamic "extravideo" family (spec §3 "Producer").
type ProducerSource string

const (
	SourceMic         ProducerSource = "mic"
	SourceWebcam      ProducerSource = "webcam"
	SourceExtraVideo  ProducerSource = "extravideo"
	SourceScreen      ProducerSource = "screen"
	SourceScreenAudio ProducerSource = "screen-audio"
)

// MediaKind is "audio" or "video".
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// ConsumerType mirrors mediasoup's consumer encoding family.
type ConsumerType string

const (
	ConsumerSimple    ConsumerType = "simple"
	ConsumerSimulcast ConsumerType = "simulcast"
	ConsumerSVC       ConsumerType = "svc"
)

// LocalRecordingState is a peer's self-reported local recording phase.
type LocalRecordingState string

const (
	RecordingStart  LocalRecordingState = "start"
	RecordingResume LocalRecordingState = "resume"
	RecordingPause  LocalRecordingState = "pause"
	RecordingStop   LocalRecordingState = "stop"
)

// RoleDef is a named role with its permissions resolved server-side; the
// Room Client only needs to carry it opaquely between the join response
// and the permission checks in internal/room.
type RoleDef struct {
	ID    string
	Label string
	Level int
}

// Peer is spec §3 "Peer".
type Peer struct {
	PeerID              string
	DisplayName         string
	Picture             string
	Roles               map[string]bool
	RaisedHand          bool
	RaisedHandTimestamp time.Time
	LocalRecordingState LocalRecordingState

	// ConsumerIDs is an ordered list of this peer's consumer ids,
	// rebuilt on every consumer mutation rather than held as pointers
	// (spec §9 "Cyclic/back references").
	ConsumerIDs []string
}

// BrowserInfo describes the local runtime, used for the Firefox TURN
// relay heuristic in spec §4.2.
type BrowserInfo struct {
	Name    string
	Version string
}

// MediaCapabilities records what the local device can produce, set by
// setMediaCapabilities after device.load (spec scenario 1).
type MediaCapabilities struct {
	CanSendMic    bool
	CanSendWebcam bool
}

// Me is spec §3 "Me": the self-peer.
type Me struct {
	Peer
	Browser           BrowserInfo
	MediaCapabilities MediaCapabilities
	AutoMuted         bool
	Speaking          bool
	LoggedIn          bool
}

// Producer is spec §3 "Producer".
type Producer struct {
	ID       string
	Source   ProducerSource
	Kind     MediaKind
	Paused   bool
	Codec    string
	Score    int
	Width    int
	Height   int
}

// Consumer is spec §3 "Consumer".
type Consumer struct {
	ID     string
	PeerID string
	Kind   MediaKind
	Type   ConsumerType
	Source ProducerSource

	LocallyPaused  bool
	RemotelyPaused bool

	SpatialLayers  int
	TemporalLayers int

	PreferredSpatialLayer  int
	PreferredTemporalLayer int

	Priority int
	Score    int

	Width  int
	Height int

	// ResolutionScalings is the ordered scale-down ladder derived by
	// GetResolutionScalings (spec §4.3): index 0 is the largest
	// scale-down factor (lowest resolution / spatial layer 0).
	ResolutionScalings []float64

	AudioGain float64
	Volume    float64
}

// TURNServer is one ICE TURN server credential set received in
// roomReady (spec §6).
type TURNServer struct {
	URLs       []string
	Username   string
	Credential string
}

// ChatMessage is one entry of chat history.
type ChatMessage struct {
	PeerID string
	Text   string
	Time   time.Time
}

// FileAnnouncement is one entry of file history (metadata only — the
// transfer itself is out of scope per spec §1/§5).
type FileAnnouncement struct {
	PeerID   string
	Name     string
	Size     int64
	MimeType string
	Time     time.Time
}

// Room is spec §3 "Room state".
type Room struct {
	RoomID string
	State  RoomState

	InLobby bool
	Joined  bool
	Locked  bool

	AccessCode      string
	JoinByAccessCode bool

	OverRoomLimit  bool
	SignInRequired bool

	ActiveSpeakerID string

	Spotlights    []string
	SelectedPeers map[string]bool

	Layout Layout

	UserRoles           map[string]RoleDef
	RoomPermissions     map[string][]RoleDef
	AllowWhenRoleMissing map[string]bool

	TURNServers []TURNServer

	// Tracker is set verbatim from the join response's `tracker` field
	// and never read elsewhere; spec §9 open question (2) says its
	// purpose is unclear, so it is preserved rather than removed.
	Tracker any
}

// State is the full Room Client data model.
type State struct {
	Room Room
	Me   Me

	Peers       map[string]*Peer
	LobbyPeers  map[string]*Peer

	Producers      map[ProducerSource]*Producer
	ExtraProducers map[string]*Producer

	Consumers map[string]*Consumer

	ChatHistory []ChatMessage
	FileHistory []FileAnnouncement

	// TransportStats reflects the server-defined getTransportStats
	// response verbatim (spec §9 open question (1)).
	TransportStats map[string]any
}

// NewState returns a freshly initialized, empty State.
func NewState() *State {
	return &State{
		Room: Room{
			State:         RoomStateNew,
			Layout:        LayoutDemocratic,
			SelectedPeers: map[string]bool{},
			UserRoles:     map[string]RoleDef{},
			RoomPermissions: map[string][]RoleDef{},
			AllowWhenRoleMissing: map[string]bool{},
		},
		Peers:          map[string]*Peer{},
		LobbyPeers:     map[string]*Peer{},
		Producers:      map[ProducerSource]*Producer{},
		ExtraProducers: map[string]*Producer{},
		Consumers:      map[string]*Consumer{},
		TransportStats: map[string]any{},
	}
}

// Clone returns a deep-enough copy of State for safe handoff to
// subscribers (spec §9: "no module-level mutable caches", each
// subscriber must not be able to mutate the live state).
func (s *State) Clone() *State {
	c := *s

	c.Room.Spotlights = append([]string(nil), s.Room.Spotlights...)
	c.Room.SelectedPeers = cloneBoolMap(s.Room.SelectedPeers)
	c.Room.UserRoles = cloneRoleMap(s.Room.UserRoles)
	c.Room.AllowWhenRoleMissing = cloneBoolMap(s.Room.AllowWhenRoleMissing)
	c.Room.TURNServers = append([]TURNServer(nil), s.Room.TURNServers...)

	c.Peers = make(map[string]*Peer, len(s.Peers))
	for k, v := range s.Peers {
		p := *v
		p.ConsumerIDs = append([]string(nil), v.ConsumerIDs...)
		c.Peers[k] = &p
	}

	c.LobbyPeers = make(map[string]*Peer, len(s.LobbyPeers))
	for k, v := range s.LobbyPeers {
		p := *v
		c.LobbyPeers[k] = &p
	}

	c.Producers = make(map[ProducerSource]*Producer, len(s.Producers))
	for k, v := range s.Producers {
		p := *v
		c.Producers[k] = &p
	}

	c.ExtraProducers = make(map[string]*Producer, len(s.ExtraProducers))
	for k, v := range s.ExtraProducers {
		p := *v
		c.ExtraProducers[k] = &p
	}

	c.Consumers = make(map[string]*Consumer, len(s.Consumers))
	for k, v := range s.Consumers {
		cons := *v
		cons.ResolutionScalings = append([]float64(nil), v.ResolutionScalings...)
		c.Consumers[k] = &cons
	}

	c.ChatHistory = append([]ChatMessage(nil), s.ChatHistory...)
	c.FileHistory = append([]FileAnnouncement(nil), s.FileHistory...)

	return &c
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRoleMap(m map[string]RoleDef) map[string]RoleDef {
	out := make(map[string]RoleDef, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
