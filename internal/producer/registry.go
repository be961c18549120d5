// Package producer is the Producer Registry (spec §4.3): lifecycle of
// local tracks (mic, webcam, extra cameras, screen video, screen
// audio), encoding selection, and mute/unmute. UpdateMic, UpdateWebcam,
// AddExtraVideo and UpdateScreenSharing are single-flighted per source,
// failing fast with ErrAlreadyInProgress while a call for the same source
// is running; MuteMic, UnmuteMic and the Disable methods take no
// per-source guard.
package producer

import (
	"context"
	"fmt"
	"sync"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/notify"
	"github.com/coremeet/roomclient/internal/roomerr"
	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/speaking"
	"github.com/coremeet/roomclient/internal/store"
)

// Track is the local-media-track abstraction the getUserMedia-equivalent
// acquisition layer returns; spec §1 assumes this as an external
// "device abstraction" concern, so only the shape this package needs
// is modeled here.
type Track interface {
	ID() string
	Label() string
	Stop()
}

// Acquirer is the external media-acquisition collaborator (spec §1's
// assumed getUserMedia/screen-capture layer).
type Acquirer interface {
	AcquireAudio(ctx context.Context, constraints config.AudioConstraints, deviceID string) (Track, error)
	AcquireVideo(ctx context.Context, deviceID string, width, height, frameRate int) (Track, error)
	AcquireScreen(ctx context.Context, width, height, frameRate int) (video Track, audio Track, err error)
}

// VirtualBackground is the external effect module spec §1 excludes
// from core scope; UpdateWebcam pipes the raw track through it when
// enabled.
type VirtualBackground interface {
	Apply(ctx context.Context, track Track) (Track, error)
	Destroy()
}

// Producer is the SFU-facing producer a send transport negotiates for
// one local track (spec §1's assumed Transport.produce).
type Producer interface {
	RTPParameters() any
}

// SendTransport is the narrow slice of the Device & Transport Manager
// the Producer Registry needs.
type SendTransport interface {
	Produce(ctx context.Context, kind store.MediaKind, rtpParameters any, appData any) (string, error)
}

type localProducer struct {
	sfuID    string
	track    Track
	source   store.ProducerSource
	kind     store.MediaKind
	deviceID string
	paused   bool
	vbg      VirtualBackground
	detector *speaking.Detector
}

// Registry is the Producer Registry.
type Registry struct {
	cfg       *config.Config
	session   *signaling.Session
	transport SendTransport
	acquirer  Acquirer
	vbgFactory func() VirtualBackground
	store     *store.Store
	notifier  *notify.Surface

	locks sourceLocks

	mu        sync.Mutex
	producers map[store.ProducerSource]*localProducer
	extra     map[string]*localProducer
}

// New constructs a Producer Registry.
func New(cfg *config.Config, session *signaling.Session, transport SendTransport, acquirer Acquirer, st *store.Store, notifier *notify.Surface) *Registry {
	return &Registry{
		cfg:       cfg,
		session:   session,
		transport: transport,
		acquirer:  acquirer,
		store:     st,
		notifier:  notifier,
		producers: make(map[store.ProducerSource]*localProducer),
		extra:     make(map[string]*localProducer),
	}
}

// SetVirtualBackgroundFactory wires in the virtual-background effect
// module; nil (the default) disables it regardless of config.
func (r *Registry) SetVirtualBackgroundFactory(f func() VirtualBackground) {
	r.vbgFactory = f
}

// UpdateMicOptions are updateMic's parameters (spec §4.3).
type UpdateMicOptions struct {
	Start       bool
	Restart     bool
	NewDeviceID string
}

// UpdateMic implements spec §4.3's updateMic operation, including the
// attached speaking-detection state machine and voice-activated-unmute
// wiring.
func (r *Registry) UpdateMic(ctx context.Context, opts UpdateMicOptions) error {
	if !r.locks.tryAcquire(string(store.SourceMic)) {
		return roomerr.ErrAlreadyInProgress
	}
	defer r.locks.release(string(store.SourceMic))

	if opts.NewDeviceID != "" && !opts.Restart {
		err := roomerr.New("updateMic", roomerr.ErrInvalidArgument)
		r.notifier.Error("Changing microphone requires a restart.")
		return err
	}

	r.mu.Lock()
	existing := r.producers[store.SourceMic]
	r.mu.Unlock()

	if !opts.Start && !(opts.Restart && existing != nil) {
		return nil
	}

	track, err := r.acquirer.AcquireAudio(ctx, r.cfg.Audio, opts.NewDeviceID)
	if err != nil {
		r.notifier.Error("Could not access your microphone.")
		return roomerr.Wrap("updateMic", roomerr.ErrMediaAcquisition, err.Error())
	}

	if existing != nil {
		r.closeLocal(existing)
	}

	appData := map[string]any{"source": store.SourceMic}
	sfuID, err := r.transport.Produce(ctx, store.KindAudio, opusCodecOptions(r.cfg.Opus), appData)
	if err != nil {
		track.Stop()
		return roomerr.New("updateMic", err)
	}

	lp := &localProducer{sfuID: sfuID, track: track, source: store.SourceMic, kind: store.KindAudio}
	lp.detector = speaking.New(-50, r.cfg.VoiceActivatedUnmute)
	lp.detector.OnSpeakingStart = func() { r.dispatchSpeaking(true) }
	lp.detector.OnSpeakingStop = func() { r.dispatchSpeaking(false) }
	lp.detector.OnAutoMuteChange = func(muted bool) {
		method := "resumeProducer"
		if muted {
			method = "pauseProducer"
		}
		if _, err := r.session.SendRequest(context.Background(), method, map[string]any{"producerId": lp.sfuID}); err != nil {
			r.notifier.Error("Could not update the SFU for voice-activated mute.")
			return
		}

		r.mu.Lock()
		lp.paused = muted
		r.mu.Unlock()
		r.store.Dispatch(func(s *store.State) {
			s.Me.AutoMuted = muted
			if p, ok := s.Producers[store.SourceMic]; ok {
				p.Paused = muted
			}
		})
	}

	r.mu.Lock()
	r.producers[store.SourceMic] = lp
	r.mu.Unlock()

	r.store.Dispatch(func(s *store.State) {
		s.Producers[store.SourceMic] = &store.Producer{ID: sfuID, Source: store.SourceMic, Kind: store.KindAudio}
	})

	return nil
}

func (r *Registry) dispatchSpeaking(speaking bool) {
	r.store.Dispatch(func(s *store.State) { s.Me.Speaking = speaking })
}

// UpdateWebcamOptions are updateWebcam's parameters (spec §4.3).
type UpdateWebcamOptions struct {
	Init          bool
	Start         bool
	Restart       bool
	NewDeviceID   string
	NewResolution int
	NewFrameRate  int
}

// UpdateWebcam implements spec §4.3's updateWebcam operation.
func (r *Registry) UpdateWebcam(ctx context.Context, opts UpdateWebcamOptions) error {
	if !r.locks.tryAcquire(string(store.SourceWebcam)) {
		return roomerr.ErrAlreadyInProgress
	}
	defer r.locks.release(string(store.SourceWebcam))

	if opts.NewDeviceID != "" && !opts.Restart {
		return roomerr.New("updateWebcam", roomerr.ErrInvalidArgument)
	}

	r.mu.Lock()
	existing := r.producers[store.SourceWebcam]
	r.mu.Unlock()

	if !opts.Start && !opts.Init && !(opts.Restart && existing != nil) {
		return nil
	}

	width := opts.NewResolution
	if width == 0 {
		width = 1280
	}

	track, err := r.acquirer.AcquireVideo(ctx, opts.NewDeviceID, width, 0, opts.NewFrameRate)
	if err != nil {
		r.notifier.Error("Could not access your webcam.")
		return roomerr.Wrap("updateWebcam", roomerr.ErrMediaAcquisition, err.Error())
	}

	var vbg VirtualBackground
	if r.cfg.VirtualBackgroundEnabled && r.vbgFactory != nil {
		vbg = r.vbgFactory()
		piped, err := vbg.Apply(ctx, track)
		if err == nil {
			track = piped
		}
	}

	if existing != nil {
		r.closeLocal(existing)
	}

	appData := map[string]any{"source": store.SourceWebcam}
	rtp := map[string]any{}
	if r.cfg.Simulcast {
		encodings := buildEncodings(r.cfg, width, r.cfg.NetworkPriorities.MainVideo)
		rtp["encodings"] = encodings
		rtp["videoGoogleStartBitrate"] = 1000

		scalings := GetResolutionScalings(encodings)
		r.store.Dispatch(func(s *store.State) {
			if p, ok := s.Producers[store.SourceWebcam]; ok {
				p.Width = width
				_ = scalings // resolution scalings live on the consumer side once mirrored back by the SFU
			}
		})
	}

	sfuID, err := r.transport.Produce(ctx, store.KindVideo, rtp, appData)
	if err != nil {
		track.Stop()
		if vbg != nil {
			vbg.Destroy()
		}
		return roomerr.New("updateWebcam", err)
	}

	lp := &localProducer{sfuID: sfuID, track: track, source: store.SourceWebcam, kind: store.KindVideo, vbg: vbg, deviceID: opts.NewDeviceID}
	r.mu.Lock()
	r.producers[store.SourceWebcam] = lp
	r.mu.Unlock()

	r.store.Dispatch(func(s *store.State) {
		s.Producers[store.SourceWebcam] = &store.Producer{ID: sfuID, Source: store.SourceWebcam, Kind: store.KindVideo, Width: width}
	})

	return nil
}

// AddExtraVideo implements spec §4.3's addExtraVideo: an additional
// camera, deduplicated by track label.
func (r *Registry) AddExtraVideo(ctx context.Context, deviceID string) (string, error) {
	key := "extravideo:" + deviceID
	if !r.locks.tryAcquire(key) {
		return "", roomerr.ErrAlreadyInProgress
	}
	defer r.locks.release(key)

	track, err := r.acquirer.AcquireVideo(ctx, deviceID, 1280, 0, 0)
	if err != nil {
		r.notifier.Error("Could not access that camera.")
		return "", roomerr.Wrap("addExtraVideo", roomerr.ErrMediaAcquisition, err.Error())
	}

	r.mu.Lock()
	for _, lp := range r.extra {
		if lp.track.Label() == track.Label() {
			r.mu.Unlock()
			track.Stop()
			return "", roomerr.New("addExtraVideo", fmt.Errorf("camera %q already producing", track.Label()))
		}
	}
	r.mu.Unlock()

	encodings := buildEncodings(r.cfg, 1280, r.cfg.NetworkPriorities.AdditionalVideos)
	appData := map[string]any{"source": store.SourceExtraVideo}
	sfuID, err := r.transport.Produce(ctx, store.KindVideo, map[string]any{
		"encodings":               encodings,
		"videoGoogleStartBitrate": 1000,
	}, appData)
	if err != nil {
		track.Stop()
		return "", roomerr.New("addExtraVideo", err)
	}

	lp := &localProducer{sfuID: sfuID, track: track, source: store.SourceExtraVideo, kind: store.KindVideo, deviceID: deviceID}
	r.mu.Lock()
	r.extra[sfuID] = lp
	r.mu.Unlock()

	r.store.Dispatch(func(s *store.State) {
		s.ExtraProducers[sfuID] = &store.Producer{ID: sfuID, Source: store.SourceExtraVideo, Kind: store.KindVideo}
	})

	return sfuID, nil
}

// UpdateScreenSharingOptions are updateScreenSharing's parameters.
type UpdateScreenSharingOptions struct {
	Start         bool
	NewResolution int
	NewFrameRate  int
}

// UpdateScreenSharing implements spec §4.3's updateScreenSharing,
// including the load-bearing but surprising screen-audio appData.source
// tag (spec §9 note 4: tagged "mic" intentionally, for server-side
// audio-mixing into spotlighting).
func (r *Registry) UpdateScreenSharing(ctx context.Context, opts UpdateScreenSharingOptions) error {
	if !r.locks.tryAcquire(string(store.SourceScreen)) {
		return roomerr.ErrAlreadyInProgress
	}
	defer r.locks.release(string(store.SourceScreen))

	if !opts.Start {
		return nil
	}

	width := opts.NewResolution
	if width == 0 {
		width = 1920
	}

	video, audio, err := r.acquirer.AcquireScreen(ctx, width, 0, opts.NewFrameRate)
	if err != nil {
		r.notifier.Error("Could not start screen sharing.")
		return roomerr.Wrap("updateScreenSharing", roomerr.ErrMediaAcquisition, err.Error())
	}

	encodings := buildEncodings(r.cfg, width, r.cfg.NetworkPriorities.ScreenShare)
	encodings = decorateScreenShareDtx(encodings, r.cfg.SimulcastSharing, false)

	videoAppData := map[string]any{"source": store.SourceScreen}
	videoSFUID, err := r.transport.Produce(ctx, store.KindVideo, map[string]any{
		"encodings":               encodings,
		"videoGoogleStartBitrate": 1000,
	}, videoAppData)
	if err != nil {
		video.Stop()
		if audio != nil {
			audio.Stop()
		}
		return roomerr.New("updateScreenSharing", err)
	}

	r.mu.Lock()
	r.producers[store.SourceScreen] = &localProducer{sfuID: videoSFUID, track: video, source: store.SourceScreen, kind: store.KindVideo}
	r.mu.Unlock()
	r.store.Dispatch(func(s *store.State) {
		s.Producers[store.SourceScreen] = &store.Producer{ID: videoSFUID, Source: store.SourceScreen, Kind: store.KindVideo}
	})

	if audio != nil {
		// Intentionally tagged source:'mic' — see spec §9 note 4.
		audioAppData := map[string]any{"source": store.SourceMic}
		audioSFUID, err := r.transport.Produce(ctx, store.KindAudio, nil, audioAppData)
		if err == nil {
			r.mu.Lock()
			r.producers[store.SourceScreenAudio] = &localProducer{sfuID: audioSFUID, track: audio, source: store.SourceScreenAudio, kind: store.KindAudio}
			r.mu.Unlock()
			r.store.Dispatch(func(s *store.State) {
				s.Producers[store.SourceScreenAudio] = &store.Producer{ID: audioSFUID, Source: store.SourceScreenAudio, Kind: store.KindAudio, Score: 0}
			})
		}
	}

	return nil
}

// MuteMic pauses the local mic producer and tells the SFU (spec §4.3).
func (r *Registry) MuteMic(ctx context.Context) error {
	r.mu.Lock()
	lp := r.producers[store.SourceMic]
	r.mu.Unlock()
	if lp == nil {
		return nil
	}

	if _, err := r.session.SendRequest(ctx, "pauseProducer", map[string]any{"producerId": lp.sfuID}); err != nil {
		return roomerr.New("muteMic", err)
	}

	r.mu.Lock()
	lp.paused = true
	r.mu.Unlock()
	r.store.Dispatch(func(s *store.State) {
		if p, ok := s.Producers[store.SourceMic]; ok {
			p.Paused = true
		}
	})
	return nil
}

// UnmuteMic resumes the local mic producer, or acquires one if none
// exists yet (spec §4.3).
func (r *Registry) UnmuteMic(ctx context.Context) error {
	r.mu.Lock()
	lp := r.producers[store.SourceMic]
	r.mu.Unlock()
	if lp == nil {
		return r.UpdateMic(ctx, UpdateMicOptions{Start: true})
	}

	if _, err := r.session.SendRequest(ctx, "resumeProducer", map[string]any{"producerId": lp.sfuID}); err != nil {
		return roomerr.New("unmuteMic", err)
	}

	r.mu.Lock()
	lp.paused = false
	r.mu.Unlock()
	r.store.Dispatch(func(s *store.State) {
		if p, ok := s.Producers[store.SourceMic]; ok {
			p.Paused = false
		}
		s.Me.AutoMuted = false
	})
	return nil
}

// disable is the shared close-locally/store-remove/closeProducer path
// for DisableMic/DisableWebcam/DisableScreenSharing.
func (r *Registry) disable(ctx context.Context, source store.ProducerSource) error {
	r.mu.Lock()
	lp := r.producers[source]
	delete(r.producers, source)
	r.mu.Unlock()
	if lp == nil {
		return nil
	}

	r.closeLocal(lp)

	if _, err := r.session.SendRequest(ctx, "closeProducer", map[string]any{"producerId": lp.sfuID}); err != nil {
		return roomerr.New("disable:"+string(source), err)
	}

	r.store.Dispatch(func(s *store.State) { delete(s.Producers, source) })
	return nil
}

func (r *Registry) DisableMic(ctx context.Context) error { return r.disable(ctx, store.SourceMic) }

func (r *Registry) DisableWebcam(ctx context.Context) error { return r.disable(ctx, store.SourceWebcam) }

func (r *Registry) DisableScreenSharing(ctx context.Context) error {
	if err := r.disable(ctx, store.SourceScreen); err != nil {
		return err
	}
	return r.disable(ctx, store.SourceScreenAudio)
}

// DisableExtraVideo closes one additional-camera producer by its
// SFU-assigned id.
func (r *Registry) DisableExtraVideo(ctx context.Context, producerID string) error {
	r.mu.Lock()
	lp, ok := r.extra[producerID]
	delete(r.extra, producerID)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	r.closeLocal(lp)

	if _, err := r.session.SendRequest(ctx, "closeProducer", map[string]any{"producerId": producerID}); err != nil {
		return roomerr.New("disableExtraVideo", err)
	}

	r.store.Dispatch(func(s *store.State) { delete(s.ExtraProducers, producerID) })
	return nil
}

// DisableAllExtraVideo closes every additional-camera producer, for the
// full local media teardown spec §4.1 requires on a transient
// disconnect (plain mic/webcam/screen disable never touches `extra`).
func (r *Registry) DisableAllExtraVideo(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.extra))
	for id := range r.extra {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := r.DisableExtraVideo(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) closeLocal(lp *localProducer) {
	lp.track.Stop()
	if lp.vbg != nil {
		lp.vbg.Destroy()
	}
}

func opusCodecOptions(o config.OpusOptions) map[string]any {
	return map[string]any{
		"opusStereo":          o.Stereo,
		"opusFec":             o.Fec,
		"opusDtx":             o.Dtx,
		"opusMaxPlaybackRate": o.MaxPlaybackRate,
		"opusPtime":           o.Ptime,
	}
}

// sourceLocks implements the per-source in-progress guard spec §4.3
// requires: a try-acquire that fails fast (ErrAlreadyInProgress) rather
// than queuing, since overlapping calls are a programmer error to
// surface, not schedule.
type sourceLocks struct {
	mu   sync.Mutex
	busy map[string]bool
}

func (l *sourceLocks) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy == nil {
		l.busy = make(map[string]bool)
	}
	if l.busy[key] {
		return false
	}
	l.busy[key] = true
	return true
}

func (l *sourceLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.busy, key)
}
