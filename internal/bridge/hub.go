package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/educonnect/push-engine/internal/push"
)

// WindowOpener spawns a new application window at a target URL, for
// platforms that support it (for example a companion desktop agent). The hub
// itself cannot conjure windows, so without an opener the open-window
// capability is reported absent and the worker skips the action.
type WindowOpener interface {
	Open(ctx context.Context, target string) (push.WindowClient, error)
}

// Hub is the foreground bridge: the set of open application windows
// connected over WebSocket. It implements push.WindowRegistry for the click
// resolver and push.ForegroundNotifier for in-app delivery.
type Hub struct {
	log      *slog.Logger
	verifier *SessionVerifier
	upgrader websocket.Upgrader
	opener   WindowOpener // optional

	mu         sync.RWMutex
	windows    map[string]*Window
	generation uint64
}

// NewHub creates a hub. opener may be nil when the platform cannot open new
// windows.
func NewHub(verifier *SessionVerifier, opener WindowOpener, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:      logger,
		verifier: verifier,
		opener:   opener,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		windows: make(map[string]*Window),
	}
}

// ServeWS upgrades an application window's connection. The session token is
// required: unauthenticated windows do not participate in the bridge.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		h.log.Warn("rejecting bridge connection", "error", err)
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("failed to upgrade bridge connection", "error", err)
		return
	}

	win := &Window{
		id:     uuid.New().String(),
		userID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan command, sendBuffer),
		url:    r.URL.Query().Get("url"),
	}

	h.mu.Lock()
	// Windows connecting after activation are governed immediately.
	win.controlled = h.generation > 0
	h.windows[win.id] = win
	h.mu.Unlock()

	h.log.Info("window connected", "window", win.id, "user", userID)

	go win.writePump()
	go win.readPump()
}

func (h *Hub) unregister(win *Window) {
	h.mu.Lock()
	delete(h.windows, win.id)
	h.mu.Unlock()
	win.shutdown()
	h.log.Info("window disconnected", "window", win.id)
}

// MatchAll returns the connected windows, including uncontrolled ones when
// asked to.
func (h *Hub) MatchAll(ctx context.Context, includeUncontrolled bool) ([]push.WindowClient, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]push.WindowClient, 0, len(h.windows))
	for _, win := range h.windows {
		if !includeUncontrolled && !win.Controlled() {
			continue
		}
		out = append(out, win)
	}
	return out, nil
}

// ClaimAll takes control of every connected window for the given worker
// generation, without any window reconnecting.
func (h *Hub) ClaimAll(ctx context.Context, generation uint64) error {
	h.mu.Lock()
	h.generation = generation
	windows := make([]*Window, 0, len(h.windows))
	for _, win := range h.windows {
		windows = append(windows, win)
	}
	h.mu.Unlock()

	for _, win := range windows {
		if err := win.claim(generation); err != nil {
			h.log.Warn("failed to claim window", "window", win.ID(), "error", err)
		}
	}
	return nil
}

// CanOpenWindow reports whether an opener is configured.
func (h *Hub) CanOpenWindow() bool {
	return h.opener != nil
}

// OpenWindow opens a new window via the configured opener.
func (h *Hub) OpenWindow(ctx context.Context, target string) (push.WindowClient, error) {
	if h.opener == nil {
		return nil, push.ErrOpenWindowUnsupported
	}
	return h.opener.Open(ctx, target)
}

// DeliverFocused hands the message to a focused window of its recipient, if
// one is connected. It reports false when the tray path should present
// instead.
func (h *Hub) DeliverFocused(ctx context.Context, msg *push.BackgroundMessage) (bool, error) {
	userID := msg.UserID()
	if userID == "" {
		return false, nil
	}

	h.mu.RLock()
	var target *Window
	for _, win := range h.windows {
		if win.UserID() == userID && win.Focused() {
			target = win
			break
		}
	}
	h.mu.RUnlock()

	if target == nil {
		return false, nil
	}
	if err := target.deliver(msg); err != nil {
		return false, err
	}
	return true, nil
}

// Size returns the number of connected windows. Used by the debug surface.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.windows)
}

// Generation returns the worker generation currently governing the hub.
func (h *Hub) Generation() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.generation
}
