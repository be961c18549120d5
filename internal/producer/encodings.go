package producer

import "github.com/coremeet/roomclient/internal/config"

// resolveSimulcastProfile picks the first simulcast profile table entry
// whose width covers the given source width, falling back to the last
// entry when none does (spec §6 "simulcast profile table per width").
func resolveSimulcastProfile(profiles []config.SimulcastProfile, width int) config.SimulcastProfile {
	best := profiles[len(profiles)-1]
	for _, p := range profiles {
		if width <= p.Width {
			return p
		}
		best = p
	}
	return best
}

// buildEncodings derives the simulcast encodings for a source of the
// given width from the configured simulcast-profile table (spec §4.3
// updateWebcam's _getEncodings). The device's RTP capabilities are not
// consulted and no SVC encodings are produced.
func buildEncodings(cfg *config.Config, width int, networkPriority config.NetworkPriority) []Encoding {
	profile := resolveSimulcastProfile(cfg.SimulcastProfiles, width)

	encodings := make([]Encoding, len(profile.ScaleResolutions))
	for i, scale := range profile.ScaleResolutions {
		s := scale
		encodings[i] = Encoding{ScaleResolutionDownBy: &s}
	}

	if len(encodings) > 0 {
		// networkPriority applies only to the first encoding — a known
		// WebRTC limitation (spec §4.3).
		encodings[0].NetworkPriority = string(networkPriority)
	}

	return encodings
}

// decorateScreenShareDtx sets dtx:true on every encoding when sharing
// simulcast is enabled and the device's first video codec isn't VP9
// (spec §4.3 updateScreenSharing).
func decorateScreenShareDtx(encodings []Encoding, sharingSimulcast, firstCodecIsVP9 bool) []Encoding {
	if !sharingSimulcast || firstCodecIsVP9 {
		return encodings
	}
	out := make([]Encoding, len(encodings))
	for i, e := range encodings {
		e.Dtx = true
		out[i] = e
	}
	return out
}
