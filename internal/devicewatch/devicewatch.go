// Package devicewatch is the Device Enumeration component (spec §4
// component 7): track local audio input/output and video input
// devices, and emit add/remove events as they change.
//
// Enumerating physical media devices is a browser/OS capability with
// no portable Go equivalent, so Enumerator is an interface the host
// application supplies (backed by whatever platform media stack it
// runs on); DefaultEnumerator is a documented no-op stand-in. Watch
// itself — poll on a timer, diff against the last snapshot, emit
// changes — is grounded on netresolve.Lookup's retry-on-a-timer shape,
// generalized from "retry a single lookup" to "repeat and diff".
package devicewatch

import (
	"context"
	"time"
)

// Kind is the device category (spec §4 row 7: "audio input/output and
// video input").
type Kind string

const (
	KindAudioInput  Kind = "audioinput"
	KindAudioOutput Kind = "audiooutput"
	KindVideoInput  Kind = "videoinput"
)

// Device is one enumerated media device.
type Device struct {
	ID    string
	Label string
	Kind  Kind
}

// Enumerator lists the media devices currently available to the host.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]Device, error)
}

// DefaultEnumerator always returns an empty list: a headless Go
// process has no getUserMedia-equivalent device inventory to query.
// Host applications with a real media backend (e.g. a platform audio/
// video capture library) should supply their own Enumerator.
type DefaultEnumerator struct{}

// Enumerate implements Enumerator.
func (DefaultEnumerator) Enumerate(ctx context.Context) ([]Device, error) {
	return nil, nil
}

// ChangeKind distinguishes an added device from a removed one.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
)

// ChangeEvent is one device add/remove transition between successive
// enumerations.
type ChangeEvent struct {
	Device Device
	Change ChangeKind
}

// Watcher polls an Enumerator on an interval and emits ChangeEvents for
// devices that appeared or disappeared between polls.
type Watcher struct {
	enumerator Enumerator
	interval   time.Duration
}

// New constructs a Watcher. A zero interval defaults to 5 seconds.
func New(enumerator Enumerator, interval time.Duration) *Watcher {
	if enumerator == nil {
		enumerator = DefaultEnumerator{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{enumerator: enumerator, interval: interval}
}

// Watch starts polling immediately and returns a channel of
// ChangeEvents. The channel is closed when ctx is canceled.
func (w *Watcher) Watch(ctx context.Context) <-chan ChangeEvent {
	out := make(chan ChangeEvent, 16)

	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		previous := w.poll(ctx, out, nil)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				previous = w.poll(ctx, out, previous)
			}
		}
	}()

	return out
}

func (w *Watcher) poll(ctx context.Context, out chan<- ChangeEvent, previous map[string]Device) map[string]Device {
	devices, err := w.enumerator.Enumerate(ctx)
	if err != nil {
		return previous
	}

	current := make(map[string]Device, len(devices))
	for _, d := range devices {
		current[d.ID] = d
	}

	for id, d := range current {
		if _, existed := previous[id]; !existed {
			send(ctx, out, ChangeEvent{Device: d, Change: ChangeAdded})
		}
	}
	for id, d := range previous {
		if _, stillPresent := current[id]; !stillPresent {
			send(ctx, out, ChangeEvent{Device: d, Change: ChangeRemoved})
		}
	}

	return current
}

func send(ctx context.Context, out chan<- ChangeEvent, ev ChangeEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
