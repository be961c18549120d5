package speaking

import "testing"

func TestSpeakingStartStop(t *testing.T) {
	d := New(-50, false)

	var starts, stops int
	d.OnSpeakingStart = func() { starts++ }
	d.OnSpeakingStop = func() { stops++ }

	d.ObserveVolume(-60) // below threshold: stays idle
	if d.State() != StateIdle {
		t.Fatalf("expected idle, got %v", d.State())
	}

	d.ObserveVolume(-40) // above threshold: speaking
	if d.State() != StateSpeaking || starts != 1 {
		t.Fatalf("expected speaking after loud sample, state=%v starts=%d", d.State(), starts)
	}

	d.ObserveVolume(-60)
	if d.State() != StateIdle || stops != 1 {
		t.Fatalf("expected idle after quiet sample, state=%v stops=%d", d.State(), stops)
	}
}

func TestAutoMuteOnSilenceAndAutoUnmuteOnSpeech(t *testing.T) {
	d := New(-50, true)

	var muteEvents []bool
	d.OnAutoMuteChange = func(muted bool) { muteEvents = append(muteEvents, muted) }

	d.ObserveVolume(-30) // speaking
	d.ObserveVolume(-60) // stops speaking -> auto-muted
	if d.State() != StatePausedAuto || !d.AutoMuted() {
		t.Fatalf("expected paused-auto with AutoMuted=true, got state=%v automuted=%v", d.State(), d.AutoMuted())
	}

	d.ObserveVolume(-30) // speaks again -> auto-unmute
	if d.State() != StateSpeaking || d.AutoMuted() {
		t.Fatalf("expected speaking with AutoMuted=false after resumed speech, got state=%v automuted=%v", d.State(), d.AutoMuted())
	}

	if len(muteEvents) != 2 || muteEvents[0] != true || muteEvents[1] != false {
		t.Fatalf("unexpected auto-mute event sequence: %v", muteEvents)
	}
}

func TestVolumeChangeFlickerSuppression(t *testing.T) {
	d := New(-50, false)

	var reported []float64
	d.OnVolumeChange = func(db float64) { reported = append(reported, db) }

	d.ObserveVolume(-30)
	d.ObserveVolume(-30.2) // decrease smaller than 0.5dB threshold: suppressed
	d.ObserveVolume(-31)   // decrease >= 0.5dB: reported

	if len(reported) != 2 {
		t.Fatalf("expected 2 reported samples (initial + >=0.5dB drop), got %v", reported)
	}
}
