// Package broadcast fans session events out to registered listeners.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/mcoot/poisonedglass/internal/dependencies/clock"
	"github.com/mcoot/poisonedglass/internal/model"
)

// Listener receives session events. OnEvent is called from the session's
// goroutine and must not block.
type Listener interface {
	OnEvent(event model.Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(event model.Event)

// OnEvent calls f(event)
func (f ListenerFunc) OnEvent(event model.Event) {
	f(event)
}

type subscription struct {
	id       uint64
	listener Listener
}

// Broadcaster delivers events for a single session in subscription order
type Broadcaster struct {
	code   model.SessionCode
	clock  clock.Clock
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

// New creates a Broadcaster for a session
func New(code model.SessionCode, clk clock.Clock, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		code:   code,
		clock:  clk,
		logger: logger.With(slog.String("session", string(code))),
	}
}

// Subscribe registers a listener and returns a function that removes it
func (b *Broadcaster) Subscribe(l Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, listener: l})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers an event of the given type to every listener
func (b *Broadcaster) Publish(eventType model.EventType, payload any) model.Event {
	event := model.Event{
		Type:        eventType,
		Timestamp:   b.clock.Now(),
		SessionCode: b.code,
		Payload:     payload,
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub.listener, event)
	}
	b.logger.Debug("event published",
		slog.String("type", string(eventType)),
		slog.Int("listeners", len(subs)))
	return event
}

func (b *Broadcaster) deliver(l Listener, event model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked",
				slog.String("type", string(event.Type)),
				slog.Any("panic", r))
		}
	}()
	l.OnEvent(event)
}

// AnnounceRoster sends the full ordered list of display names
func (b *Broadcaster) AnnounceRoster(names []string) {
	b.Publish(model.EventRosterUpdated, model.RosterPayload{Names: names})
}

// AnnounceReady tells listeners the session has both participants
func (b *Broadcaster) AnnounceReady(names []string) {
	b.Publish(model.EventSessionReady, model.RosterPayload{Names: names})
}

// AnnounceRoundStarted tells listeners a round has begun
func (b *Broadcaster) AnnounceRoundStarted(payload model.RoundStartedPayload) {
	b.Publish(model.EventRoundStarted, payload)
}

// AnnounceTurnResolved tells listeners how a submission resolved
func (b *Broadcaster) AnnounceTurnResolved(payload model.TurnResolvedPayload) {
	b.Publish(model.EventTurnResolved, payload)
}

// AnnounceRoundEnded tells listeners who won the round
func (b *Broadcaster) AnnounceRoundEnded(payload model.RoundEndedPayload) {
	b.Publish(model.EventRoundEnded, payload)
}

// AnnounceRoundAborted tells listeners a round stopped without a result
func (b *Broadcaster) AnnounceRoundAborted(payload model.RoundAbortedPayload) {
	b.Publish(model.EventRoundAborted, payload)
}

// AnnounceReset tells listeners the session is waiting for participants again
func (b *Broadcaster) AnnounceReset() {
	b.Publish(model.EventSessionReset, nil)
}
