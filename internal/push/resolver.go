package push

import (
	"fmt"
	"net/url"
	"strings"
)

// ClickEvent is a user's click on a presented notification or one of its
// action buttons. Action is empty when the notification body itself was
// clicked.
type ClickEvent struct {
	Action string            `json:"action,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
}

// Tag returns the tray grouping key of the notification the click belongs to.
func (e ClickEvent) Tag() string {
	if e.Data != nil && e.Data[DataKeyType] != "" {
		return e.Data[DataKeyType]
	}
	return DefaultTag
}

// Resolution is the outcome of resolving a click. Declined resolutions
// perform no navigation of any kind.
type Resolution struct {
	Declined bool
	Rule     string
	Target   string
}

// Resolver computes navigation targets for notification clicks against the
// application's canonical origin.
type Resolver struct {
	origin *url.URL
}

// NewResolver creates a resolver for the given application origin, e.g.
// "https://app.educonnect.io".
func NewResolver(origin string) (*Resolver, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid application origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("application origin %q must be absolute", origin)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return &Resolver{origin: u}, nil
}

// Origin returns the canonical application origin.
func (r *Resolver) Origin() string {
	return r.origin.String()
}

// Resolve applies the click routing rules in priority order; the first match
// wins. Decline short-circuits before any URL or type rule is considered, and
// the action-qualified call match is checked before the bare call fallback.
func (r *Resolver) Resolve(ev ClickEvent) Resolution {
	p := DecodePayload(ev.Data)

	switch {
	case ev.Action == ActionAnswer && p.Kind == KindCall:
		return Resolution{Rule: "answer_call", Target: r.callURL(p.MeetingID)}
	case ev.Action == ActionDecline:
		return Resolution{Declined: true, Rule: "decline"}
	case p.URL != "":
		return Resolution{Rule: "data_url", Target: r.resolveURL(p.URL)}
	case p.Kind == KindMessage:
		return Resolution{Rule: "message", Target: r.conversationURL(p.ConversationID)}
	case p.Kind == KindCall:
		return Resolution{Rule: "call", Target: r.callURL(p.MeetingID)}
	default:
		return Resolution{Rule: "root", Target: r.rootURL()}
	}
}

// SameOrigin reports whether raw is an address inside the application's own
// origin. Windows at foreign origins are never focused or navigated.
func (r *Resolver) SameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == r.origin.Scheme && u.Host == r.origin.Host
}

func (r *Resolver) rootURL() string {
	return r.origin.String() + "/"
}

func (r *Resolver) callURL(meetingID string) string {
	return r.origin.String() + "/video-call?meetingId=" + url.QueryEscape(meetingID)
}

func (r *Resolver) conversationURL(conversationID string) string {
	return r.origin.String() + "/messages/" + url.PathEscape(conversationID)
}

// resolveURL uses an absolute data URL as-is and resolves a relative one
// against the application origin.
func (r *Resolver) resolveURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return r.rootURL()
	}
	if u.IsAbs() {
		return raw
	}
	return r.origin.ResolveReference(u).String()
}
