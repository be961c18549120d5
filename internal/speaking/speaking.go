// Package speaking implements the volume_change → speaking →
// stopped_speaking feedback loop as the explicit small state machine
// spec §9 asks for, instead of a callback-soup translation of it.
package speaking

import (
	"math"
	"time"
)

// State is one of the three positions in the speaking state machine.
type State string

const (
	StateIdle      State = "idle"
	StateSpeaking  State = "speaking"
	StatePausedAuto State = "paused-auto" // muted by auto-mute-on-silence, not by the user
)

// volumeFlickerThresholdDB is the minimum |ΔdB| required before a
// downward volume_change is emitted, per spec §4.3 "reduce flicker".
const volumeFlickerThresholdDB = 0.5

// Detector tracks one track's volume stream and derives speaking/
// stopped_speaking/volume_change events plus, when enabled, the
// auto-mute transition described in spec §4.3's updateMic.
type Detector struct {
	state State

	speakingThresholdDB float64
	lastReportedDB      float64
	haveReported        bool

	autoUnmuteEnabled bool
	autoMuted         bool

	OnVolumeChange    func(db float64)
	OnSpeakingStart   func()
	OnSpeakingStop    func()
	OnAutoMuteChange  func(muted bool)
}

// New constructs a Detector. speakingThresholdDB is the volume level
// (in dBFS, e.g. -50) above which the track is considered "speaking".
func New(speakingThresholdDB float64, autoUnmuteEnabled bool) *Detector {
	return &Detector{
		state:               StateIdle,
		speakingThresholdDB: speakingThresholdDB,
		autoUnmuteEnabled:   autoUnmuteEnabled,
	}
}

// State reports the detector's current position.
func (d *Detector) State() State { return d.state }

// AutoMuted reports whether the current mute, if any, was applied by
// this detector's auto-mute-on-silence behavior rather than the user.
func (d *Detector) AutoMuted() bool { return d.autoMuted }

// ObserveVolume feeds one volume sample (dBFS) into the detector,
// firing OnVolumeChange (with flicker suppression on decreases),
// OnSpeakingStart/OnSpeakingStop, and the auto-mute transition.
func (d *Detector) ObserveVolume(db float64) {
	if !d.haveReported || db > d.lastReportedDB || d.lastReportedDB-db >= volumeFlickerThresholdDB {
		d.lastReportedDB = db
		d.haveReported = true
		if d.OnVolumeChange != nil {
			d.OnVolumeChange(db)
		}
	}

	speaking := db >= d.speakingThresholdDB

	switch d.state {
	case StateIdle, StatePausedAuto:
		if speaking {
			wasAutoMuted := d.state == StatePausedAuto
			d.state = StateSpeaking
			if d.OnSpeakingStart != nil {
				d.OnSpeakingStart()
			}
			if wasAutoMuted && d.autoUnmuteEnabled {
				d.autoMuted = false
				if d.OnAutoMuteChange != nil {
					d.OnAutoMuteChange(false)
				}
			}
		}
	case StateSpeaking:
		if !speaking {
			if d.OnSpeakingStop != nil {
				d.OnSpeakingStop()
			}
			if d.autoUnmuteEnabled {
				d.state = StatePausedAuto
				d.autoMuted = true
				if d.OnAutoMuteChange != nil {
					d.OnAutoMuteChange(true)
				}
			} else {
				d.state = StateIdle
			}
		}
	}
}

// Reset returns the detector to idle, clearing any auto-mute.
func (d *Detector) Reset() {
	d.state = StateIdle
	d.autoMuted = false
	d.haveReported = false
}

// DecayTick lets a caller age the last-reported level down over time
// when no fresh sample has arrived recently, mirroring the exponential
// decay on downward transitions spec §4.3 calls for. half is the decay
// half-life (each full half-life halves the amplitude, about -6 dB);
// elapsed is time since the last ObserveVolume call.
func (d *Detector) DecayTick(half, elapsed time.Duration) {
	if !d.haveReported || half <= 0 || elapsed <= 0 {
		return
	}
	factor := 1.0
	for e := elapsed; e >= half; e -= half {
		factor *= 0.5
	}
	d.ObserveVolume(d.lastReportedDB + 20*math.Log10(factor))
}
