// Package notify is the Notification Surface (spec §4 component 8):
// centralized, user-visible event emission with a category and an
// optional sound, decoupled from whatever renders it.
package notify

import "sync"

// Category buckets a Notification for styling/sound purposes.
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

// Notification is one user-visible event.
type Notification struct {
	Text     string
	Category Category
	Sound    bool
}

// Surface fans a single stream of Notifications out to every
// subscriber. Every component in the Room Client holds a reference to
// the same Surface (spec §9 "Global state").
type Surface struct {
	mu        sync.Mutex
	listeners []chan Notification
}

// New returns an empty Surface.
func New() *Surface {
	return &Surface{}
}

// Emit delivers n to every current subscriber. Subscribers with a full
// buffer are skipped rather than blocking the emitting component —
// notifications are best-effort UI sugar, never load-bearing state.
func (s *Surface) Emit(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.listeners {
		select {
		case ch <- n:
		default:
		}
	}
}

// Info, Success, Warning and Error are convenience wrappers over Emit.
func (s *Surface) Info(text string)    { s.Emit(Notification{Text: text, Category: CategoryInfo}) }
func (s *Surface) Success(text string) { s.Emit(Notification{Text: text, Category: CategorySuccess}) }
func (s *Surface) Warning(text string) { s.Emit(Notification{Text: text, Category: CategoryWarning}) }
func (s *Surface) Error(text string) {
	s.Emit(Notification{Text: text, Category: CategoryError, Sound: true})
}

// Subscribe returns a channel receiving every future Notification. The
// channel is never closed, and there is no Unsubscribe because Room
// Client lifetimes are short-lived per spec §9.
func (s *Surface) Subscribe() <-chan Notification {
	ch := make(chan Notification, 32)

	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()

	return ch
}
