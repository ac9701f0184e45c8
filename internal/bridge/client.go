package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/educonnect/push-engine/internal/push"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// command is a control frame sent from the worker to an open window.
type command struct {
	Type       string                  `json:"type"`
	URL        string                  `json:"url,omitempty"`
	Generation uint64                  `json:"generation,omitempty"`
	Payload    *push.BackgroundMessage `json:"payload,omitempty"`
}

// windowState is the report a window sends about itself: its current address,
// whether it holds focus, and whether it supports in-place navigation.
type windowState struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Focused     bool   `json:"focused"`
	CanNavigate bool   `json:"can_navigate"`
}

// Window is one open application window connected over WebSocket. It
// implements push.WindowClient: focus and navigation are control frames sent
// down the socket, state reports flow back up.
type Window struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan command

	mu          sync.RWMutex
	url         string
	focused     bool
	canNavigate bool
	controlled  bool
	closed      bool
}

// ID returns the window's connection identifier.
func (w *Window) ID() string { return w.id }

// UserID returns the authenticated session user the window belongs to.
func (w *Window) UserID() string { return w.userID }

// URL returns the window's last reported address.
func (w *Window) URL() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.url
}

// Focused reports whether the window last reported holding focus.
func (w *Window) Focused() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.focused
}

// Controlled reports whether the current worker generation governs this window.
func (w *Window) Controlled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.controlled
}

// CanNavigate reports whether the window supports in-place navigation.
func (w *Window) CanNavigate() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.canNavigate
}

// Focus asks the window to bring itself to the foreground.
func (w *Window) Focus(ctx context.Context) error {
	return w.enqueue(command{Type: "focus"})
}

// Navigate asks the window to navigate in place to target.
func (w *Window) Navigate(ctx context.Context, target string) error {
	if err := w.enqueue(command{Type: "navigate", URL: target}); err != nil {
		return err
	}
	w.mu.Lock()
	w.url = target
	w.mu.Unlock()
	return nil
}

func (w *Window) claim(generation uint64) error {
	w.mu.Lock()
	w.controlled = true
	w.mu.Unlock()
	return w.enqueue(command{Type: "claimed", Generation: generation})
}

func (w *Window) deliver(msg *push.BackgroundMessage) error {
	return w.enqueue(command{Type: "notification", Payload: msg})
}

// enqueue hands a command to the write pump. The read lock excludes shutdown,
// so the send can never race the channel close when the window disconnects
// between being enumerated and being commanded.
func (w *Window) enqueue(cmd command) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return fmt.Errorf("window %s disconnected", w.id)
	}
	select {
	case w.send <- cmd:
		return nil
	default:
		return fmt.Errorf("window %s send buffer full", w.id)
	}
}

// shutdown closes the send queue exactly once.
func (w *Window) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.send)
}

// readPump consumes state reports until the connection drops, then
// unregisters the window.
func (w *Window) readPump() {
	defer func() {
		w.hub.unregister(w)
		w.conn.Close()
	}()
	w.conn.SetReadLimit(maxMessageSize)
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("window %s read error: %v", w.id, err)
			}
			return
		}

		var state windowState
		if err := json.Unmarshal(message, &state); err != nil {
			log.Printf("window %s sent malformed state: %v", w.id, err)
			continue
		}
		if state.Type != "state" {
			continue
		}
		w.mu.Lock()
		w.url = state.URL
		w.focused = state.Focused
		w.canNavigate = state.CanNavigate
		w.mu.Unlock()
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (w *Window) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()
	for {
		select {
		case cmd, ok := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				w.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := w.conn.WriteJSON(cmd); err != nil {
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
