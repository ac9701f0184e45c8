package push

import (
	"context"
	"fmt"
	"log"
)

// DefaultTag is the tray grouping key for notifications whose payload carries
// no type tag.
const DefaultTag = "default"

// callVibration is the vibration pattern distinguishing call notifications by
// touch. Non-call notifications never vibrate.
var callVibration = []int{200, 100, 200}

// NotificationAction is one button on a presented notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// PresentedNotification is the tray-level notification actually shown.
type PresentedNotification struct {
	Title              string               `json:"title"`
	Body               string               `json:"body"`
	Icon               string               `json:"icon,omitempty"`
	Badge              string               `json:"badge,omitempty"`
	Tag                string               `json:"tag"`
	RequireInteraction bool                 `json:"require_interaction"`
	Vibrate            []int                `json:"vibrate,omitempty"`
	Actions            []NotificationAction `json:"actions"`
	Data               map[string]string    `json:"data,omitempty"`
}

// Presenter maps a NotificationIntent onto the tray surface.
type Presenter struct {
	tray  Tray
	badge string
	repo  *Repository
}

// NewPresenter creates a presenter showing notifications on the given tray.
// repo is an optional delivery log and may be nil.
func NewPresenter(tray Tray, badge string, repo *Repository) *Presenter {
	return &Presenter{tray: tray, badge: badge, repo: repo}
}

// Build derives the presented notification from an intent. The type branch is
// decided once and applied consistently: a call must stay on screen, vibrate,
// and offer answer/decline; everything else is dismissible with a single open
// action.
func (p *Presenter) Build(intent *NotificationIntent) *PresentedNotification {
	n := &PresentedNotification{
		Title: intent.Title,
		Body:  intent.Body,
		Icon:  intent.Icon,
		Badge: p.badge,
		Tag:   DefaultTag,
		Data:  intent.Data,
	}
	if intent.Data != nil && intent.Data[DataKeyType] != "" {
		n.Tag = intent.Data[DataKeyType]
	}
	if intent.Kind == KindCall {
		n.RequireInteraction = true
		n.Vibrate = callVibration
		n.Actions = []NotificationAction{
			{Action: ActionAnswer, Title: "Answer"},
			{Action: ActionDecline, Title: "Decline"},
		}
	} else {
		n.Actions = []NotificationAction{
			{Action: ActionOpen, Title: "Open"},
		}
	}
	return n
}

// Present shows exactly one tray notification for the intent. The show call
// is awaited so the handler is not torn down mid-display.
func (p *Presenter) Present(ctx context.Context, intent *NotificationIntent) error {
	n := p.Build(intent)

	if p.repo != nil {
		if err := p.repo.LogPresented(ctx, n); err != nil {
			// The delivery log is diagnostic only; never on the display path.
			log.Printf("Failed to log presented notification: %v", err)
		}
	}

	if err := p.tray.Show(ctx, n); err != nil {
		return fmt.Errorf("failed to show notification: %w", err)
	}
	notificationsPresented.WithLabelValues(string(intent.Kind)).Inc()
	return nil
}
