package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Handler processes one inbound notification's payload. Spec §9 asks
// for "a table mapping notification method names to handlers of a
// uniform signature (payload, ctx) → Promise<void>"; this is that
// signature's Go shape.
type Handler func(ctx context.Context, data json.RawMessage) error

// Dispatcher routes Notifications to registered Handlers by method
// name, replacing the teacher's open-ended switch statement
// (internal/signaling originally handled a fixed five message types;
// the Room protocol has dozens, so a table is mandatory, not optional).
type Dispatcher struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handlers: make(map[string]Handler), logger: logger}
}

// On registers handler for method, overwriting any previous
// registration — used at Room Coordinator construction time only.
func (d *Dispatcher) On(method string, handler Handler) {
	d.handlers[method] = handler
}

// Dispatch runs the handler registered for n.Method. Spec §4.6: "Unknown
// methods are logged as errors and swallowed." Spec §7: a notification
// handler's own error is caught per-notification, logged, and does not
// break the dispatcher for subsequent notifications.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	h, ok := d.handlers[n.Method]
	if !ok {
		d.logger.Error("unknown notification method", "method", n.Method)
		return
	}

	if err := h(ctx, n.Data); err != nil {
		d.logger.Error("notification handler failed", "method", n.Method, "error", err)
	}
}

// Run drains notifications off ch until it closes or ctx is done,
// dispatching each in order (spec §5: "processed in the order
// received; each handler awaits to completion before the next begins").
func (d *Dispatcher) Run(ctx context.Context, ch <-chan Notification) {
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			d.Dispatch(ctx, n)
		case <-ctx.Done():
			return
		}
	}
}
