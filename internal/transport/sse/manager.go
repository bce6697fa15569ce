package sse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/broadcast"
)

// Source is a session whose events can be streamed
type Source interface {
	Code() model.SessionCode
	Subscribe(ctx context.Context, l broadcast.Listener) (model.SessionView, func(), error)
	Snapshot(ctx context.Context) (model.SessionView, error)
	Done() <-chan struct{}
}

// HubManager manages hubs for all sessions
type HubManager struct {
	hubs   map[model.SessionCode]*Hub
	mu     sync.Mutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.SessionCode]*Hub),
		logger: logger.With(slog.String("component", "sse")),
	}
}

// Connect registers a new client on the session's hub, creating the hub
// and subscribing it to the session on first use
func (m *HubManager) Connect(ctx context.Context, src Source, username string) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code := src.Code()
	hub, ok := m.hubs[code]
	if !ok {
		hub = NewHub(code, m.logger)
		_, unsubscribe, err := src.Subscribe(ctx, hub)
		if err != nil {
			return nil, fmt.Errorf("subscribe to session %s: %w", code, err)
		}
		m.hubs[code] = hub
		go hub.Run()
		go m.watch(src, hub, unsubscribe)
	}

	client := NewClient(hub, username)
	if !hub.Register(client) {
		return nil, model.ErrSessionClosed
	}
	return client, nil
}

// watch tears the hub down with its session
func (m *HubManager) watch(src Source, hub *Hub, unsubscribe func()) {
	select {
	case <-src.Done():
		m.removeHub(hub)
	case <-hub.Done():
	}
	unsubscribe()
}

// GetHub returns the hub for a session, or nil if it doesn't exist
func (m *HubManager) GetHub(code model.SessionCode) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hubs[code]
}

// RemoveHub removes and closes a hub
func (m *HubManager) RemoveHub(code model.SessionCode) {
	m.mu.Lock()
	hub := m.hubs[code]
	m.mu.Unlock()
	if hub != nil {
		m.removeHub(hub)
	}
}

func (m *HubManager) removeHub(hub *Hub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hubs[hub.code] == hub {
		delete(m.hubs, hub.code)
		m.logger.Info("sse hub removed", slog.String("session", string(hub.code)))
	}
	hub.Close()
}

// CleanupEmptyHubs removes hubs with no clients and returns how many went
func (m *HubManager) CleanupEmptyHubs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for code, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, code)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("sse empty hubs cleaned up", slog.Int("removed", removed))
	}
	return removed
}

// Close shuts down every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, code)
	}
}
