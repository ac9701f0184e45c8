package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/educonnect/push-engine/internal/push"
)

type fakePublisher struct {
	queues []string
	bodies [][]byte
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, queue string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.queues = append(p.queues, queue)
	p.bodies = append(p.bodies, body)
	return nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmailSender struct {
	sent []sentEmail
}

func (s *fakeEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func mustEvent(t *testing.T, eventType EventType, data any) *Event {
	t.Helper()
	event, err := NewEvent(eventType, data)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	return event
}

func decodeEnvelope(t *testing.T, body []byte) *push.BackgroundMessage {
	t.Helper()
	var msg push.BackgroundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return &msg
}

func TestRouter_Route_MessageCreated(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRouter(pub, nil)

	event := mustEvent(t, EventMessageCreated, MessageEventData{
		ConversationID: "c7",
		SenderName:     "Ms. Rivera",
		RecipientID:    "u1",
		Preview:        "See you at 3",
	})
	if err := r.Route(context.Background(), event); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if len(pub.queues) != 1 || pub.queues[0] != PushQueue {
		t.Fatalf("published to %v, want [%s]", pub.queues, PushQueue)
	}
	msg := decodeEnvelope(t, pub.bodies[0])
	if msg.Notification == nil || msg.Notification.Title != "New message" {
		t.Errorf("notification = %+v, want New message title", msg.Notification)
	}
	if msg.Data["type"] != "message" || msg.Data["conversation_id"] != "c7" {
		t.Errorf("data = %v, want message type and conversation c7", msg.Data)
	}
	if msg.Data["user_id"] != "u1" || msg.Data["message_id"] != event.ID {
		t.Errorf("data = %v, want user u1 and message id %s", msg.Data, event.ID)
	}
}

func TestRouter_Route_CallInitiated(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRouter(pub, nil)

	event := mustEvent(t, EventCallInitiated, CallEventData{
		MeetingID:  "m42",
		CallerName: "Mr. Okafor",
		CalleeID:   "u1",
	})
	if err := r.Route(context.Background(), event); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if len(pub.bodies) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(pub.bodies))
	}
	msg := decodeEnvelope(t, pub.bodies[0])
	if msg.Data["type"] != "call" || msg.Data["meeting_id"] != "m42" {
		t.Errorf("data = %v, want call type and meeting m42", msg.Data)
	}
}

func TestRouter_Route_CallMissed_PushAndEmail(t *testing.T) {
	pub := &fakePublisher{}
	email := &fakeEmailSender{}
	r := NewRouter(pub, email)

	event := mustEvent(t, EventCallMissed, CallEventData{
		MeetingID:   "m42",
		CallerName:  "Mr. Okafor",
		CalleeID:    "u1",
		CalleeEmail: "student@example.com",
	})
	if err := r.Route(context.Background(), event); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if len(pub.bodies) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(pub.bodies))
	}
	// A missed call is informational: its envelope carries no call type, so a
	// click never routes to a dead call screen.
	msg := decodeEnvelope(t, pub.bodies[0])
	if msg.Data["type"] != "" {
		t.Errorf("data type = %q, want none for a missed call", msg.Data["type"])
	}

	if len(email.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(email.sent))
	}
	if email.sent[0].to != "student@example.com" {
		t.Errorf("email to = %q, want the callee", email.sent[0].to)
	}
}

func TestRouter_Route_AssignmentGraded_PushAndEmail(t *testing.T) {
	pub := &fakePublisher{}
	email := &fakeEmailSender{}
	r := NewRouter(pub, email)

	event := mustEvent(t, EventAssignmentGraded, AssignmentEventData{
		AssignmentID: "a9",
		Title:        "Essay",
		StudentID:    "u1",
		StudentEmail: "student@example.com",
		Grade:        "A-",
	})
	if err := r.Route(context.Background(), event); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	msg := decodeEnvelope(t, pub.bodies[0])
	if msg.Data["url"] != "/assignments/a9" {
		t.Errorf("data url = %q, want /assignments/a9", msg.Data["url"])
	}
	if len(email.sent) != 1 {
		t.Errorf("sent %d emails, want 1", len(email.sent))
	}
}

func TestRouter_Route_SessionReminder(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRouter(pub, nil)

	event := mustEvent(t, EventSessionReminder, SessionEventData{
		SessionID: "s3",
		StudentID: "u1",
		TutorName: "Ms. Rivera",
		StartsAt:  "15:00",
	})
	if err := r.Route(context.Background(), event); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	msg := decodeEnvelope(t, pub.bodies[0])
	if msg.Data["url"] != "/sessions/s3" {
		t.Errorf("data url = %q, want /sessions/s3", msg.Data["url"])
	}
}

func TestRouter_Route_EmailSkippedWithoutAddress(t *testing.T) {
	pub := &fakePublisher{}
	email := &fakeEmailSender{}
	r := NewRouter(pub, email)

	event := mustEvent(t, EventCallMissed, CallEventData{MeetingID: "m42", CalleeID: "u1"})
	if err := r.Route(context.Background(), event); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if len(email.sent) != 0 {
		t.Errorf("sent %d emails, want 0 without a recipient address", len(email.sent))
	}
}

func TestRouter_Route_UnknownEventTypeIsDropped(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRouter(pub, nil)

	event := mustEvent(t, EventType("billing.invoice"), map[string]string{"x": "y"})
	if err := r.Route(context.Background(), event); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if len(pub.bodies) != 0 {
		t.Errorf("published %d envelopes, want 0 for an unknown event type", len(pub.bodies))
	}
}

func TestRouter_Route_PublishFailureDoesNotBlockEmail(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	email := &fakeEmailSender{}
	r := NewRouter(pub, email)

	event := mustEvent(t, EventAssignmentGraded, AssignmentEventData{
		AssignmentID: "a9",
		StudentID:    "u1",
		StudentEmail: "student@example.com",
	})
	if err := r.Route(context.Background(), event); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if len(email.sent) != 1 {
		t.Errorf("sent %d emails, want 1 despite publish failure", len(email.sent))
	}
}
