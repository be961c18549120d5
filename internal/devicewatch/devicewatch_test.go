package devicewatch

import (
	"context"
	"sync"
	"testing"
	"time"
)

type scriptedEnumerator struct {
	mu    sync.Mutex
	calls int
	pages [][]Device
}

func (e *scriptedEnumerator) Enumerate(ctx context.Context) ([]Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.calls
	if idx >= len(e.pages) {
		idx = len(e.pages) - 1
	}
	e.calls++
	return e.pages[idx], nil
}

func TestWatchEmitsAddedThenRemoved(t *testing.T) {
	enum := &scriptedEnumerator{
		pages: [][]Device{
			{{ID: "mic1", Label: "Built-in Mic", Kind: KindAudioInput}},
			{},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(enum, 10*time.Millisecond)
	events := w.Watch(ctx)

	first := mustRecv(t, events)
	if first.Change != ChangeAdded || first.Device.ID != "mic1" {
		t.Fatalf("expected added mic1 first, got %+v", first)
	}

	second := mustRecv(t, events)
	if second.Change != ChangeRemoved || second.Device.ID != "mic1" {
		t.Fatalf("expected removed mic1 second, got %+v", second)
	}
}

func TestDefaultEnumeratorReturnsEmpty(t *testing.T) {
	devices, err := DefaultEnumerator{}.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("expected no devices, got %v", devices)
	}
}

func mustRecv(t *testing.T, ch <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before event arrived")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ChangeEvent{}
}
