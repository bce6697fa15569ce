// Package sse streams session events to browsers and the CLI as
// server-sent events.
package sse

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client represents a connected SSE client
type Client struct {
	hub         *Hub
	username    string
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a new SSE client
func NewClient(hub *Hub, username string) *Client {
	return &Client{
		hub:         hub,
		username:    username,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// ServeSSE streams a session's events until the client goes away or the
// session closes. The first event is a snapshot of the session.
func ServeSSE(w http.ResponseWriter, r *http.Request, manager *HubManager, src Source, username string, logger *slog.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	client, err := manager.Connect(r.Context(), src, username)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrSessionClosed) {
			status = http.StatusGone
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer client.hub.Unregister(client)

	view, err := src.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusGone)
		return
	}
	snapshot, err := json.Marshal(wire.FromView(view))
	if err != nil {
		logger.Error("sse failed to encode snapshot", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// The stream outlives the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	_, _ = w.Write(formatSSEMessage(string(wire.TypeSnapshot), string(snapshot)))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
