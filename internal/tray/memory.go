package tray

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/educonnect/push-engine/internal/push"
)

// Publisher forwards shown notifications to device agents over the message
// broker. Optional.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Memory is a tag-keyed notification tray. A notification shown with the tag
// of an existing unread one replaces it instead of stacking, which keeps
// repeated events of the same kind (say, repeated call attempts) from
// flooding the tray.
type Memory struct {
	mu    sync.Mutex
	byTag map[string]*push.PresentedNotification

	pub   Publisher
	queue string
}

// NewMemory creates an empty tray. pub may be nil; when set, every shown
// notification is also published to queue for display surfaces to pick up.
func NewMemory(pub Publisher, queue string) *Memory {
	return &Memory{
		byTag: make(map[string]*push.PresentedNotification),
		pub:   pub,
		queue: queue,
	}
}

// Show places the notification on the tray, replacing any unread one with
// the same tag.
func (m *Memory) Show(ctx context.Context, n *push.PresentedNotification) error {
	m.mu.Lock()
	m.byTag[n.Tag] = n
	m.mu.Unlock()

	if m.pub != nil {
		body, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err := m.pub.Publish(ctx, m.queue, body); err != nil {
			// The tray entry stands even when the display fan-out fails.
			log.Printf("Failed to publish notification to %s: %v", m.queue, err)
		}
	}
	return nil
}

// Close dismisses the notification with the given tag. Closing an absent tag
// is a no-op.
func (m *Memory) Close(ctx context.Context, tag string) error {
	m.mu.Lock()
	delete(m.byTag, tag)
	m.mu.Unlock()
	return nil
}

// Get returns the unread notification for tag, or nil.
func (m *Memory) Get(tag string) *push.PresentedNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byTag[tag]
}

// Len returns the number of unread notifications.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byTag)
}

// Snapshot returns the current unread notifications.
func (m *Memory) Snapshot() []*push.PresentedNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*push.PresentedNotification, 0, len(m.byTag))
	for _, n := range m.byTag {
		out = append(out, n)
	}
	return out
}
