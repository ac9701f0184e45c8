package push

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a notification by the type tag carried in its data payload.
// Unknown tags are preserved as-is so new notification types degrade to
// generic presentation instead of failing.
type Kind string

const (
	KindCall    Kind = "call"
	KindMessage Kind = "message"
	KindGeneric Kind = "generic"
)

// Data keys the engine understands. Everything else in the payload is
// carried through untouched.
const (
	DataKeyType           = "type"
	DataKeyMeetingID      = "meeting_id"
	DataKeyConversationID = "conversation_id"
	DataKeyURL            = "url"
	DataKeyUserID         = "user_id"
	DataKeyMessageID      = "message_id"
)

// Notification action identifiers exposed on presented notifications.
const (
	ActionAnswer  = "answer"
	ActionDecline = "decline"
	ActionOpen    = "open"
)

// KindOf derives the notification kind from a data payload. A missing map or
// missing type tag is generic, never an error.
func KindOf(data map[string]string) Kind {
	if data == nil {
		return KindGeneric
	}
	t := data[DataKeyType]
	if t == "" {
		return KindGeneric
	}
	return Kind(t)
}

// MessageNotification is the optional display block of an incoming message.
type MessageNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// BackgroundMessage is the structured shape delivered by the messaging
// backend. Raw push bodies parse into the same shape so both transports share
// one presentation policy.
type BackgroundMessage struct {
	Notification *MessageNotification `json:"notification,omitempty"`
	Data         map[string]string    `json:"data,omitempty"`
}

// MessageID returns the backend-assigned message identifier, if any.
// It is the dedup key between the foreground and tray delivery paths.
func (m *BackgroundMessage) MessageID() string {
	if m == nil || m.Data == nil {
		return ""
	}
	return m.Data[DataKeyMessageID]
}

// UserID returns the recipient user identifier carried in the payload, if any.
func (m *BackgroundMessage) UserID() string {
	if m == nil || m.Data == nil {
		return ""
	}
	return m.Data[DataKeyUserID]
}

// NotificationIntent is the normalized internal representation produced by the
// classifier. Exactly one presented notification (or zero on failure) is
// derived from each intent.
type NotificationIntent struct {
	Title string
	Body  string
	Icon  string
	Kind  Kind
	Data  map[string]string
}

// Defaults holds the substitution values applied when an incoming message
// omits display fields. Title and body defaulting is unconditional: an empty
// title or body is never presented.
type Defaults struct {
	AppName string
	Body    string
	Icon    string
}

// Classifier reduces both inbound event shapes to a NotificationIntent.
type Classifier struct {
	defaults Defaults
}

// NewClassifier creates a classifier with the given defaulting rules.
func NewClassifier(defaults Defaults) *Classifier {
	if defaults.AppName == "" {
		defaults.AppName = "EduConnect"
	}
	if defaults.Body == "" {
		defaults.Body = "You have a new notification"
	}
	return &Classifier{defaults: defaults}
}

// Normalize converts a structured background message into an intent.
// Title, body and icon are each defaulted independently; the data map is
// passed through unchanged.
func (c *Classifier) Normalize(msg *BackgroundMessage) *NotificationIntent {
	intent := &NotificationIntent{
		Title: c.defaults.AppName,
		Body:  c.defaults.Body,
		Icon:  c.defaults.Icon,
	}
	if msg != nil {
		if n := msg.Notification; n != nil {
			if n.Title != "" {
				intent.Title = n.Title
			}
			if n.Body != "" {
				intent.Body = n.Body
			}
			if n.Icon != "" {
				intent.Icon = n.Icon
			}
		}
		intent.Data = msg.Data
	}
	intent.Kind = KindOf(intent.Data)
	return intent
}

// ParsePush decodes a raw push body into the shared BackgroundMessage shape.
// The caller owns the recovery policy for malformed payloads; parse failures
// must never take the worker down.
func (c *Classifier) ParsePush(body []byte) (*BackgroundMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty push payload")
	}
	var msg BackgroundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse push payload: %w", err)
	}
	return &msg, nil
}

// Payload is the decoded form of a notification's free-form data map: a
// closed set of known variants keyed by Kind plus a catch-all for everything
// the engine does not interpret.
type Payload struct {
	Kind           Kind
	MeetingID      string
	ConversationID string
	URL            string
	Extra          map[string]string
}

// DecodePayload probes the data map once so downstream routing never does ad
// hoc optional-field access. Absent keys decode to zero values.
func DecodePayload(data map[string]string) Payload {
	p := Payload{Kind: KindOf(data)}
	if data == nil {
		return p
	}
	p.MeetingID = data[DataKeyMeetingID]
	p.ConversationID = data[DataKeyConversationID]
	p.URL = data[DataKeyURL]
	for k, v := range data {
		switch k {
		case DataKeyType, DataKeyMeetingID, DataKeyConversationID, DataKeyURL:
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[k] = v
		}
	}
	return p
}
