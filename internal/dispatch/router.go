package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/educonnect/push-engine/internal/push"
)

// PushQueue is the broker queue the delivery worker consumes push envelopes
// from.
const PushQueue = "push.messages"

// Publisher publishes envelopes to the message broker.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// RoutingConfig defines which channels a platform event fans out to.
type RoutingConfig struct {
	EventType EventType
	Push      bool
	Email     bool
}

// DefaultRoutingRules is the default channel fan-out per event type. Calls
// and messages are push-only; missed calls and grades also email, since the
// recipient was by definition not looking at the app.
var DefaultRoutingRules = map[EventType]RoutingConfig{
	EventMessageCreated:    {EventType: EventMessageCreated, Push: true},
	EventCallInitiated:     {EventType: EventCallInitiated, Push: true},
	EventCallMissed:        {EventType: EventCallMissed, Push: true, Email: true},
	EventAssignmentCreated: {EventType: EventAssignmentCreated, Push: true},
	EventAssignmentGraded:  {EventType: EventAssignmentGraded, Push: true, Email: true},
	EventSessionReminder:   {EventType: EventSessionReminder, Push: true},
}

// Router turns platform business events into push envelopes and email.
type Router struct {
	publisher Publisher
	email     EmailSender // optional
	rules     map[EventType]RoutingConfig
}

// NewRouter creates an event router. email may be nil, which disables the
// email channel.
func NewRouter(publisher Publisher, email EmailSender) *Router {
	return &Router{
		publisher: publisher,
		email:     email,
		rules:     DefaultRoutingRules,
	}
}

// Route fans an event out to its configured channels. Per-channel failures
// are logged and do not block the remaining channels.
func (r *Router) Route(ctx context.Context, event *Event) error {
	config, ok := r.rules[event.Type]
	if !ok {
		log.Printf("No routing rules for event type: %s", event.Type)
		return nil
	}

	if config.Push {
		msg, err := r.buildEnvelope(event)
		if err != nil {
			log.Printf("Failed to build push envelope for %s: %v", event.Type, err)
		} else if err := r.publishPush(ctx, msg); err != nil {
			log.Printf("Failed to publish push envelope for %s: %v", event.Type, err)
		}
	}

	if config.Email && r.email != nil {
		if err := r.sendEmail(ctx, event); err != nil {
			log.Printf("Failed to send email for %s: %v", event.Type, err)
		}
	}

	return nil
}

// buildEnvelope maps an event onto the worker's BackgroundMessage shape: a
// display block plus the free-form data the click resolver routes on.
func (r *Router) buildEnvelope(event *Event) (*push.BackgroundMessage, error) {
	switch event.Type {
	case EventMessageCreated:
		data, err := event.ParseMessageEventData()
		if err != nil {
			return nil, err
		}
		body, err := RenderTemplate("message_push", data)
		if err != nil {
			return nil, err
		}
		return &push.BackgroundMessage{
			Notification: &push.MessageNotification{
				Title: "New message",
				Body:  body,
			},
			Data: map[string]string{
				push.DataKeyType:           string(push.KindMessage),
				push.DataKeyConversationID: data.ConversationID,
				push.DataKeyUserID:         data.RecipientID,
				push.DataKeyMessageID:      event.ID,
			},
		}, nil

	case EventCallInitiated:
		data, err := event.ParseCallEventData()
		if err != nil {
			return nil, err
		}
		body, err := RenderTemplate("call_push", data)
		if err != nil {
			return nil, err
		}
		return &push.BackgroundMessage{
			Notification: &push.MessageNotification{
				Title: "Incoming call",
				Body:  body,
			},
			Data: map[string]string{
				push.DataKeyType:      string(push.KindCall),
				push.DataKeyMeetingID: data.MeetingID,
				push.DataKeyUserID:    data.CalleeID,
				push.DataKeyMessageID: event.ID,
			},
		}, nil

	case EventCallMissed:
		data, err := event.ParseCallEventData()
		if err != nil {
			return nil, err
		}
		return &push.BackgroundMessage{
			Notification: &push.MessageNotification{
				Title: "Missed call",
				Body:  "You missed a call from " + data.CallerName,
			},
			Data: map[string]string{
				push.DataKeyUserID:    data.CalleeID,
				push.DataKeyMessageID: event.ID,
			},
		}, nil

	case EventAssignmentCreated, EventAssignmentGraded:
		data, err := event.ParseAssignmentEventData()
		if err != nil {
			return nil, err
		}
		templateID := "assignment_created_push"
		title := "New assignment"
		if event.Type == EventAssignmentGraded {
			templateID = "assignment_graded_push"
			title = "Assignment graded"
		}
		body, err := RenderTemplate(templateID, data)
		if err != nil {
			return nil, err
		}
		return &push.BackgroundMessage{
			Notification: &push.MessageNotification{
				Title: title,
				Body:  body,
			},
			Data: map[string]string{
				push.DataKeyURL:       "/assignments/" + data.AssignmentID,
				push.DataKeyUserID:    data.StudentID,
				push.DataKeyMessageID: event.ID,
			},
		}, nil

	case EventSessionReminder:
		data, err := event.ParseSessionEventData()
		if err != nil {
			return nil, err
		}
		body, err := RenderTemplate("session_reminder_push", data)
		if err != nil {
			return nil, err
		}
		return &push.BackgroundMessage{
			Notification: &push.MessageNotification{
				Title: "Session reminder",
				Body:  body,
			},
			Data: map[string]string{
				push.DataKeyURL:       "/sessions/" + data.SessionID,
				push.DataKeyUserID:    data.StudentID,
				push.DataKeyMessageID: event.ID,
			},
		}, nil

	default:
		return nil, fmt.Errorf("no envelope mapping for event type %s", event.Type)
	}
}

func (r *Router) publishPush(ctx context.Context, msg *push.BackgroundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.publisher.Publish(ctx, PushQueue, body)
}

func (r *Router) sendEmail(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventCallMissed:
		data, err := event.ParseCallEventData()
		if err != nil {
			return err
		}
		if data.CalleeEmail == "" {
			return nil
		}
		body, err := RenderTemplate("call_missed_email", data)
		if err != nil {
			return err
		}
		return r.email.SendEmail(ctx, data.CalleeEmail, "Missed call on EduConnect", body)

	case EventAssignmentGraded:
		data, err := event.ParseAssignmentEventData()
		if err != nil {
			return err
		}
		if data.StudentEmail == "" {
			return nil
		}
		body, err := RenderTemplate("assignment_graded_email", data)
		if err != nil {
			return err
		}
		return r.email.SendEmail(ctx, data.StudentEmail, "Your assignment was graded", body)

	default:
		return nil
	}
}
