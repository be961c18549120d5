// Package config loads Room Client configuration with the usual
// CLI flag > environment variable > hardcoded default priority.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultRequestTimeout       = 20 * time.Second
	DefaultRequestRetries       = 3
	DefaultLastN                = 4
	DefaultMobileLastN          = 1
	DefaultAdaptiveScalingFactor = 0.75
	DefaultAutoMuteThreshold    = 0
	DefaultHideTimeout          = 3 * time.Second
)

// NetworkPriority is the WebRTC encoding priority tier used when
// building simulcast/SVC encodings.
type NetworkPriority string

const (
	PriorityHigh    NetworkPriority = "high"
	PriorityMedium  NetworkPriority = "medium"
	PriorityLow     NetworkPriority = "low"
	PriorityVeryLow NetworkPriority = "very-low"
)

// NetworkPriorities is config.networkPriorities from spec §6.
type NetworkPriorities struct {
	Audio            NetworkPriority
	MainVideo        NetworkPriority
	AdditionalVideos NetworkPriority
	ExtraVideo       NetworkPriority
	ScreenShare      NetworkPriority
}

// SimulcastProfile is one entry of the simulcast profile table in spec §6:
// at a given source width, how many spatial layers to encode and at what
// scale-down factors.
type SimulcastProfile struct {
	Width           int
	ScaleResolutions []float64
}

// OpusOptions are the codec options used by UpdateMic (spec §4.3).
type OpusOptions struct {
	Stereo          bool
	Fec             bool
	Dtx             bool
	MaxPlaybackRate int
	Ptime           int
}

// AudioConstraints are the getUserMedia-equivalent audio constraints.
type AudioConstraints struct {
	SampleRate        int
	ChannelCount      int
	SampleSize        int
	AutoGainControl   bool
	EchoCancellation  bool
	NoiseSuppression  bool
}

// Config holds every option recognized from spec §6.
type Config struct {
	RequestTimeout time.Duration
	RequestRetries int

	Simulcast        bool
	SimulcastSharing  bool
	SimulcastProfiles []SimulcastProfile

	LastN       int
	MobileLastN int

	AdaptiveScalingFactor float64
	AutoMuteThreshold     int

	NetworkPriorities NetworkPriorities

	NotificationSounds bool
	SupportedBrowsers  []string
	LoginEnabled       bool

	HideTimeout time.Duration

	VoiceActivatedUnmute bool
	VirtualBackgroundEnabled bool
	EnableOpusDetails    bool

	Opus             OpusOptions
	Audio            AudioConstraints

	STUNServers []string
}

// Options carries CLI-flag overrides into Load.
type Options struct {
	RequestTimeout time.Duration
	RequestRetries int
	LastN          int
	MobileLastN    int
	STUNServer     string
}

func defaultSimulcastProfiles() []SimulcastProfile {
	// Video constraints table from spec §6: low=320 .. ultra=3840, each
	// with its simulcast scale-down ladder (largest-first).
	return []SimulcastProfile{
		{Width: 320, ScaleResolutions: []float64{1}},
		{Width: 640, ScaleResolutions: []float64{2, 1}},
		{Width: 1280, ScaleResolutions: []float64{4, 2, 1}},
		{Width: 1920, ScaleResolutions: []float64{4, 2, 1}},
		{Width: 3840, ScaleResolutions: []float64{4, 2, 1}},
	}
}

// Load reads configuration with CLI flag > environment variable > default
// priority, matching the teacher's layered Load().
func Load(opts Options) (*Config, error) {
	reqTimeout := opts.RequestTimeout
	if reqTimeout == 0 {
		reqTimeout = durationEnv("ROOMCLIENT_REQUEST_TIMEOUT", DefaultRequestTimeout)
	}

	reqRetries := opts.RequestRetries
	if reqRetries == 0 {
		reqRetries = intEnv("ROOMCLIENT_REQUEST_RETRIES", DefaultRequestRetries)
	}

	lastN := opts.LastN
	if lastN == 0 {
		lastN = intEnv("ROOMCLIENT_LAST_N", DefaultLastN)
	}

	mobileLastN := opts.MobileLastN
	if mobileLastN == 0 {
		mobileLastN = intEnv("ROOMCLIENT_MOBILE_LAST_N", DefaultMobileLastN)
	}

	stun := opts.STUNServer
	if stun == "" {
		stun = os.Getenv("ROOMCLIENT_STUN_SERVER")
	}
	if stun == "" {
		stun = "stun:stun.l.google.com:19302"
	}

	return &Config{
		RequestTimeout:    reqTimeout,
		RequestRetries:    reqRetries,
		Simulcast:         true,
		SimulcastSharing:  true,
		SimulcastProfiles: defaultSimulcastProfiles(),
		LastN:             lastN,
		MobileLastN:       mobileLastN,
		AdaptiveScalingFactor: DefaultAdaptiveScalingFactor,
		AutoMuteThreshold:     DefaultAutoMuteThreshold,
		NetworkPriorities: NetworkPriorities{
			Audio:            PriorityHigh,
			MainVideo:        PriorityHigh,
			AdditionalVideos: PriorityMedium,
			ExtraVideo:       PriorityMedium,
			ScreenShare:      PriorityMedium,
		},
		NotificationSounds: true,
		SupportedBrowsers:  []string{"chrome", "firefox", "safari", "edge"},
		LoginEnabled:       false,
		HideTimeout:        DefaultHideTimeout,
		Opus: OpusOptions{
			Stereo:          false,
			Fec:             true,
			Dtx:             false,
			MaxPlaybackRate: 48000,
			Ptime:           20,
		},
		Audio: AudioConstraints{
			SampleRate:       48000,
			ChannelCount:     1,
			SampleSize:       16,
			AutoGainControl:  true,
			EchoCancellation: true,
			NoiseSuppression: true,
		},
		STUNServers: []string{stun},
	}, nil
}

// ClampAdaptiveScalingFactor clamps config.adaptiveScalingFactor to the
// [0.5, 1.0] range required by spec §4.4/§6.
func (c *Config) ClampAdaptiveScalingFactor() float64 {
	f := c.AdaptiveScalingFactor
	if f < 0.5 {
		return 0.5
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func intEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
