package cli

import (
	"strings"
	"testing"

	"github.com/coremeet/roomclient/internal/store"
)

func TestRenderStatusListsPeersAndProducers(t *testing.T) {
	snap := store.NewState()
	snap.Room.RoomID = "demo"
	snap.Room.State = store.RoomStateConnected
	snap.Peers["p1"] = &store.Peer{PeerID: "p1", DisplayName: "Ada", RaisedHand: true}
	snap.Producers[store.SourceMic] = &store.Producer{ID: "prod1", Source: store.SourceMic, Kind: store.KindAudio, Score: 9}

	out := renderStatus(snap)

	if !strings.Contains(out, "demo") {
		t.Fatalf("expected room id in output, got: %s", out)
	}
	if !strings.Contains(out, "Ada") {
		t.Fatalf("expected peer display name in output, got: %s", out)
	}
	if !strings.Contains(out, "mic") {
		t.Fatalf("expected producer source in output, got: %s", out)
	}
}
