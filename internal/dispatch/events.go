package dispatch

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a platform business event.
type EventType string

const (
	// Messaging events
	EventMessageCreated EventType = "message.created"

	// Call events
	EventCallInitiated EventType = "call.initiated"
	EventCallMissed    EventType = "call.missed"

	// Assignment events
	EventAssignmentCreated EventType = "assignment.created"
	EventAssignmentGraded  EventType = "assignment.graded"

	// Session events
	EventSessionReminder EventType = "session.reminder"
)

// Event is the envelope for all platform events consumed from the event bus.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// MessageEventData carries a chat message event.
type MessageEventData struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	RecipientID    string `json:"recipient_id"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	Preview        string `json:"preview,omitempty"`
}

// CallEventData carries a video call event.
type CallEventData struct {
	MeetingID   string `json:"meeting_id"`
	CallerID    string `json:"caller_id"`
	CallerName  string `json:"caller_name,omitempty"`
	CalleeID    string `json:"callee_id"`
	CalleeEmail string `json:"callee_email,omitempty"`
}

// AssignmentEventData carries an assignment lifecycle event.
type AssignmentEventData struct {
	AssignmentID string `json:"assignment_id"`
	Title        string `json:"title"`
	StudentID    string `json:"student_id"`
	StudentEmail string `json:"student_email,omitempty"`
	TutorID      string `json:"tutor_id,omitempty"`
	Grade        string `json:"grade,omitempty"`
	DueDate      string `json:"due_date,omitempty"`
}

// SessionEventData carries a tutoring session event.
type SessionEventData struct {
	SessionID    string `json:"session_id"`
	StudentID    string `json:"student_id"`
	StudentEmail string `json:"student_email,omitempty"`
	TutorID      string `json:"tutor_id"`
	TutorName    string `json:"tutor_name,omitempty"`
	StartsAt     string `json:"starts_at,omitempty"`
}

// NewEvent creates an event envelope with the given type and data.
func NewEvent(eventType EventType, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        "evt_" + uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}

// ParseMessageEventData parses the event data as MessageEventData.
func (e *Event) ParseMessageEventData() (*MessageEventData, error) {
	var data MessageEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseCallEventData parses the event data as CallEventData.
func (e *Event) ParseCallEventData() (*CallEventData, error) {
	var data CallEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseAssignmentEventData parses the event data as AssignmentEventData.
func (e *Event) ParseAssignmentEventData() (*AssignmentEventData, error) {
	var data AssignmentEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ParseSessionEventData parses the event data as SessionEventData.
func (e *Event) ParseSessionEventData() (*SessionEventData, error) {
	var data SessionEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
