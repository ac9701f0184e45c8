package push

import (
	"context"
	"errors"
)

// ErrOpenWindowUnsupported is returned by registries that cannot spawn new
// application windows. The worker treats it as a capability gap, not a failure.
var ErrOpenWindowUnsupported = errors.New("push: open window not supported")

// Tray is the platform notification surface. Notifications are keyed by tag:
// showing a notification with the tag of an existing unread one replaces it
// rather than stacking.
type Tray interface {
	Show(ctx context.Context, n *PresentedNotification) error
	Close(ctx context.Context, tag string) error
}

// WindowClient is one open application window.
type WindowClient interface {
	ID() string
	URL() string
	Focused() bool
	// Controlled reports whether this window is governed by the current
	// worker generation.
	Controlled() bool
	Focus(ctx context.Context) error
	// CanNavigate reports whether the window supports in-place navigation.
	// Windows that do not are focused and left where they are.
	CanNavigate() bool
	Navigate(ctx context.Context, target string) error
}

// WindowRegistry enumerates and governs open application windows.
type WindowRegistry interface {
	// MatchAll returns the currently open windows. When includeUncontrolled
	// is true the result covers windows the worker has not claimed yet.
	MatchAll(ctx context.Context, includeUncontrolled bool) ([]WindowClient, error)
	// ClaimAll takes control of every open window for the given worker
	// generation without requiring a reload.
	ClaimAll(ctx context.Context, generation uint64) error
	// CanOpenWindow reports whether the platform can open new windows.
	CanOpenWindow() bool
	// OpenWindow opens a new window at target. Registries lacking the
	// capability return ErrOpenWindowUnsupported.
	OpenWindow(ctx context.Context, target string) (WindowClient, error)
}

// ForegroundNotifier delivers a message directly to an open, focused window
// so the in-app UI can surface it instead of the tray.
type ForegroundNotifier interface {
	// DeliverFocused hands the message to a focused window of its recipient.
	// It reports false when no such window exists and the tray path should
	// present instead.
	DeliverFocused(ctx context.Context, msg *BackgroundMessage) (bool, error)
}

// Deduper decides which delivery path wins when the same message could reach
// both the foreground and the tray path.
type Deduper interface {
	// FirstDelivery reports whether this is the first attempt to deliver the
	// message with the given ID.
	FirstDelivery(ctx context.Context, messageID string) (bool, error)
}
