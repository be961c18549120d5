package transport

import (
	"encoding/json"
	"testing"

	pion "github.com/pion/webrtc/v4"

	"github.com/coremeet/roomclient/internal/store"
)

func TestStripVideoOrientationRemovesOnlyThatExtension(t *testing.T) {
	raw := json.RawMessage(`{
		"codecs": ["opus"],
		"headerExtensions": [
			{"uri": "urn:3gpp:video-orientation", "id": 1},
			{"uri": "urn:ietf:params:rtp-hdrext:toffset", "id": 2}
		]
	}`)

	stripped, err := stripVideoOrientation(raw)
	if err != nil {
		t.Fatalf("stripVideoOrientation: %v", err)
	}

	var decoded struct {
		HeaderExtensions []struct {
			URI string `json:"uri"`
		} `json:"headerExtensions"`
	}
	if err := json.Unmarshal(stripped, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded.HeaderExtensions) != 1 {
		t.Fatalf("expected 1 header extension remaining, got %d", len(decoded.HeaderExtensions))
	}
	if decoded.HeaderExtensions[0].URI != "urn:ietf:params:rtp-hdrext:toffset" {
		t.Fatalf("unexpected extension survived: %s", decoded.HeaderExtensions[0].URI)
	}
}

func TestStripVideoOrientationNoOpWithoutExtensions(t *testing.T) {
	raw := json.RawMessage(`{"codecs": ["opus"]}`)
	stripped, err := stripVideoOrientation(raw)
	if err != nil {
		t.Fatalf("stripVideoOrientation: %v", err)
	}
	if string(stripped) != string(raw) {
		t.Fatalf("expected passthrough, got %s", stripped)
	}
}

func TestHasTURNDetectsCredentialedServer(t *testing.T) {
	stunOnly := []pion.ICEServer{{URLs: []string{"stun:stun.example.com:19302"}}}
	if hasTURN(stunOnly) {
		t.Fatal("stun-only list should not report TURN")
	}

	withTURN := append(stunOnly, pion.ICEServer{
		URLs:     []string{"turn:turn.example.com:3478"},
		Username: "user",
	})
	if !hasTURN(withTURN) {
		t.Fatal("expected TURN detection when a credentialed server is present")
	}
}

func TestDecodingParametersFromExtractsSSRC(t *testing.T) {
	params := map[string]any{
		"encodings": []any{
			map[string]any{"ssrc": float64(12345)},
		},
	}

	decoding, err := decodingParametersFrom(params)
	if err != nil {
		t.Fatalf("decodingParametersFrom: %v", err)
	}
	if len(decoding) != 1 || decoding[0].SSRC != pion.SSRC(12345) {
		t.Fatalf("unexpected decoding parameters: %+v", decoding)
	}
}

func TestDecodingParametersFromRejectsMissingEncodings(t *testing.T) {
	if _, err := decodingParametersFrom(map[string]any{}); err == nil {
		t.Fatal("expected error for rtpParameters with no encodings")
	}
}

func TestForceRelayRequiresTURNPresence(t *testing.T) {
	m := &Manager{browser: store.BrowserInfo{Name: "firefox"}}
	if m.forceRelay(nil) {
		t.Fatal("forceRelay with no ICE servers must be false, even on firefox")
	}

	withTURN := []pion.ICEServer{{URLs: []string{"turn:turn.example.com:3478"}, Username: "user"}}
	if !m.forceRelay(withTURN) {
		t.Fatal("expected forceRelay true for firefox with TURN present")
	}
}
