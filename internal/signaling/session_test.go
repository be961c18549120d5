package signaling_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coremeet/roomclient/internal/signaling"
	"github.com/coremeet/roomclient/internal/testutil/fakesfu"
)

func newSession(t *testing.T) (*signaling.Session, *fakesfu.Server) {
	t.Helper()
	server := fakesfu.New()
	t.Cleanup(server.Close)

	sess := signaling.New(2*time.Second, 2, nil)
	if err := sess.Dial(server.URL()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(sess.Close)
	server.WaitConnected()

	return sess, server
}

func TestSendRequestRoundTrip(t *testing.T) {
	sess, server := newSession(t)

	server.OnRequest("getRouterRtpCapabilities", func(json.RawMessage) (any, error) {
		return map[string]any{"codecs": []string{"opus", "vp8"}}, nil
	})

	resp, err := sess.SendRequest(context.Background(), "getRouterRtpCapabilities", nil)
	if err != nil {
		t.Fatalf("sendRequest: %v", err)
	}

	var decoded struct {
		Codecs []string `json:"codecs"`
	}
	if err := json.Unmarshal(resp, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Codecs) != 2 {
		t.Fatalf("expected 2 codecs, got %v", decoded.Codecs)
	}
}

func TestSendRequestNonTimeoutErrorFailsFast(t *testing.T) {
	sess, _ := newSession(t)
	// No responder registered for "join" ⇒ the fake server answers 404,
	// which must NOT be retried (only SocketTimeoutError is retried).
	start := time.Now()
	_, err := sess.SendRequest(context.Background(), "join", nil)
	if err == nil {
		t.Fatal("expected error for unregistered method")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("non-timeout error should fail fast, took %v", elapsed)
	}
}

func TestNotificationsDelivered(t *testing.T) {
	sess, server := newSession(t)

	if err := server.Notify("activeSpeaker", map[string]string{"peerId": "p7"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case n := <-sess.Notifications():
		if n.Method != "activeSpeaker" {
			t.Fatalf("expected activeSpeaker, got %s", n.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestDisconnectEventOnServerClose(t *testing.T) {
	sess, server := newSession(t)

	server.CloseConn()

	// Dial itself emits an EventConnect first; the disconnect follows it.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sess.Events():
			if ev.Kind == signaling.EventConnect {
				continue
			}
			if ev.Kind != signaling.EventDisconnect {
				t.Fatalf("expected disconnect event, got %v", ev.Kind)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for disconnect event")
		}
	}
}
