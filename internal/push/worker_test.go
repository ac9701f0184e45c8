package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeWindow struct {
	id          string
	url         string
	focused     bool
	controlled  bool
	canNavigate bool

	focusCalls  int
	focusErr    error
	navigations []string
}

func (w *fakeWindow) ID() string        { return w.id }
func (w *fakeWindow) URL() string       { return w.url }
func (w *fakeWindow) Focused() bool     { return w.focused }
func (w *fakeWindow) Controlled() bool  { return w.controlled }
func (w *fakeWindow) CanNavigate() bool { return w.canNavigate }

func (w *fakeWindow) Focus(ctx context.Context) error {
	w.focusCalls++
	return w.focusErr
}

func (w *fakeWindow) Navigate(ctx context.Context, target string) error {
	w.navigations = append(w.navigations, target)
	return nil
}

type fakeRegistry struct {
	windows []WindowClient
	canOpen bool

	matchCalls int
	claims     []uint64
	opened     []string
}

func (r *fakeRegistry) MatchAll(ctx context.Context, includeUncontrolled bool) ([]WindowClient, error) {
	r.matchCalls++
	return r.windows, nil
}

func (r *fakeRegistry) ClaimAll(ctx context.Context, generation uint64) error {
	r.claims = append(r.claims, generation)
	return nil
}

func (r *fakeRegistry) CanOpenWindow() bool { return r.canOpen }

func (r *fakeRegistry) OpenWindow(ctx context.Context, target string) (WindowClient, error) {
	if !r.canOpen {
		return nil, ErrOpenWindowUnsupported
	}
	r.opened = append(r.opened, target)
	return &fakeWindow{id: "opened", url: target}, nil
}

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (d *fakeDeduper) FirstDelivery(ctx context.Context, messageID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[messageID] {
		return false, nil
	}
	d.seen[messageID] = true
	return true, nil
}

type fakeBridge struct {
	delivered bool
	messages  []*BackgroundMessage
}

func (b *fakeBridge) DeliverFocused(ctx context.Context, msg *BackgroundMessage) (bool, error) {
	if b.delivered {
		b.messages = append(b.messages, msg)
	}
	return b.delivered, nil
}

type workerHarness struct {
	worker *Worker
	tray   *fakeTray
	reg    *fakeRegistry
}

func newWorkerHarness(t *testing.T, reg *fakeRegistry, opts WorkerOptions) *workerHarness {
	t.Helper()
	tray := &fakeTray{}
	classifier := NewClassifier(Defaults{})
	presenter := NewPresenter(tray, "", nil)
	resolver := newTestResolver(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &workerHarness{
		worker: NewWorker(classifier, presenter, resolver, tray, reg, logger, opts),
		tray:   tray,
		reg:    reg,
	}
}

func TestWorker_Lifecycle(t *testing.T) {
	h := newWorkerHarness(t, &fakeRegistry{}, WorkerOptions{})
	ctx := context.Background()

	if got := h.worker.State(); got != StateNew {
		t.Fatalf("initial state = %v, want %v", got, StateNew)
	}
	if err := h.worker.Install(ctx); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if got := h.worker.State(); got != StateInstalled {
		t.Fatalf("state after install = %v, want %v", got, StateInstalled)
	}
	if err := h.worker.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if got := h.worker.State(); got != StateActive {
		t.Fatalf("state after activate = %v, want %v", got, StateActive)
	}
	if len(h.reg.claims) != 1 || h.reg.claims[0] != 1 {
		t.Errorf("claims = %v, want [1]", h.reg.claims)
	}
	if got := h.worker.Generation(); got != 1 {
		t.Errorf("Generation() = %d, want 1", got)
	}

	// A second activation supersedes the first generation.
	if err := h.worker.Activate(ctx); err != nil {
		t.Fatalf("second Activate() error = %v", err)
	}
	if got := h.worker.Generation(); got != 2 {
		t.Errorf("Generation() after second activate = %d, want 2", got)
	}
}

func TestWorker_HandlePush(t *testing.T) {
	h := newWorkerHarness(t, &fakeRegistry{}, WorkerOptions{})
	ctx := context.Background()

	body := []byte(`{"notification":{"title":"New message","body":"See you at 3"},"data":{"type":"message","conversation_id":"c7"}}`)
	if err := h.worker.HandlePush(ctx, body); err != nil {
		t.Fatalf("HandlePush() error = %v", err)
	}
	if len(h.tray.shown) != 1 {
		t.Fatalf("shown %d notifications, want 1", len(h.tray.shown))
	}
	n := h.tray.shown[0]
	if n.Title != "New message" || n.Tag != "message" {
		t.Errorf("presented %q tag %q, want title %q tag %q", n.Title, n.Tag, "New message", "message")
	}
}

func TestWorker_HandlePush_MalformedPayloadIsContained(t *testing.T) {
	h := newWorkerHarness(t, &fakeRegistry{}, WorkerOptions{})

	if err := h.worker.HandlePush(context.Background(), []byte(`{"data":`)); err != nil {
		t.Fatalf("HandlePush() error = %v, want nil for malformed payload", err)
	}
	if len(h.tray.shown) != 0 {
		t.Errorf("shown %d notifications, want 0", len(h.tray.shown))
	}
}

func TestWorker_Deliver_DeduplicatesByMessageID(t *testing.T) {
	h := newWorkerHarness(t, &fakeRegistry{}, WorkerOptions{Dedup: &fakeDeduper{}})
	ctx := context.Background()

	msg := &BackgroundMessage{Data: map[string]string{"message_id": "msg_1", "type": "message"}}
	if err := h.worker.HandleBackgroundMessage(ctx, msg); err != nil {
		t.Fatalf("first delivery error = %v", err)
	}
	if err := h.worker.HandleBackgroundMessage(ctx, msg); err != nil {
		t.Fatalf("second delivery error = %v", err)
	}
	if len(h.tray.shown) != 1 {
		t.Errorf("shown %d notifications, want 1 after duplicate suppression", len(h.tray.shown))
	}
}

func TestWorker_Deliver_DedupErrorStillPresents(t *testing.T) {
	dedup := &fakeDeduper{err: errors.New("store down")}
	h := newWorkerHarness(t, &fakeRegistry{}, WorkerOptions{Dedup: dedup})

	msg := &BackgroundMessage{Data: map[string]string{"message_id": "msg_1"}}
	if err := h.worker.HandleBackgroundMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleBackgroundMessage() error = %v", err)
	}
	if len(h.tray.shown) != 1 {
		t.Errorf("shown %d notifications, want 1 despite dedup failure", len(h.tray.shown))
	}
}

func TestWorker_Deliver_FocusedWindowBeatsTray(t *testing.T) {
	bridge := &fakeBridge{delivered: true}
	h := newWorkerHarness(t, &fakeRegistry{}, WorkerOptions{Bridge: bridge})

	msg := &BackgroundMessage{Data: map[string]string{"user_id": "u1", "type": "message"}}
	if err := h.worker.HandleBackgroundMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleBackgroundMessage() error = %v", err)
	}
	if len(h.tray.shown) != 0 {
		t.Errorf("shown %d tray notifications, want 0 when delivered in-app", len(h.tray.shown))
	}
	if len(bridge.messages) != 1 {
		t.Errorf("bridge received %d messages, want 1", len(bridge.messages))
	}
}

func TestWorker_Deliver_UnfocusedFallsBackToTray(t *testing.T) {
	bridge := &fakeBridge{delivered: false}
	h := newWorkerHarness(t, &fakeRegistry{}, WorkerOptions{Bridge: bridge})

	msg := &BackgroundMessage{Data: map[string]string{"user_id": "u1", "type": "message"}}
	if err := h.worker.HandleBackgroundMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleBackgroundMessage() error = %v", err)
	}
	if len(h.tray.shown) != 1 {
		t.Errorf("shown %d tray notifications, want 1", len(h.tray.shown))
	}
}

func TestWorker_HandleClick_DeclineClosesAndStops(t *testing.T) {
	reg := &fakeRegistry{canOpen: true}
	h := newWorkerHarness(t, reg, WorkerOptions{})

	ev := ClickEvent{Action: "decline", Data: map[string]string{"type": "call", "meeting_id": "m42"}}
	if err := h.worker.HandleClick(context.Background(), ev); err != nil {
		t.Fatalf("HandleClick() error = %v", err)
	}
	if len(h.tray.closed) != 1 || h.tray.closed[0] != "call" {
		t.Errorf("closed = %v, want [call]", h.tray.closed)
	}
	if reg.matchCalls != 0 {
		t.Errorf("matchCalls = %d, want 0 on decline", reg.matchCalls)
	}
	if len(reg.opened) != 0 {
		t.Errorf("opened = %v, want none on decline", reg.opened)
	}
}

func TestWorker_HandleClick_FocusesAndNavigatesExistingWindow(t *testing.T) {
	win := &fakeWindow{id: "w1", url: testOrigin + "/dashboard", canNavigate: true}
	reg := &fakeRegistry{windows: []WindowClient{win}, canOpen: true}
	h := newWorkerHarness(t, reg, WorkerOptions{})

	ev := ClickEvent{Data: map[string]string{"type": "message", "conversation_id": "c7"}}
	if err := h.worker.HandleClick(context.Background(), ev); err != nil {
		t.Fatalf("HandleClick() error = %v", err)
	}
	if win.focusCalls != 1 {
		t.Errorf("focusCalls = %d, want 1", win.focusCalls)
	}
	wantTarget := testOrigin + "/messages/c7"
	if len(win.navigations) != 1 || win.navigations[0] != wantTarget {
		t.Errorf("navigations = %v, want [%s]", win.navigations, wantTarget)
	}
	if len(reg.opened) != 0 {
		t.Errorf("opened = %v, want none when a window was focused", reg.opened)
	}
}

func TestWorker_HandleClick_FocusOnlyWindowIsNotNavigated(t *testing.T) {
	win := &fakeWindow{id: "w1", url: testOrigin + "/dashboard", canNavigate: false}
	reg := &fakeRegistry{windows: []WindowClient{win}, canOpen: true}
	h := newWorkerHarness(t, reg, WorkerOptions{})

	ev := ClickEvent{Data: map[string]string{"type": "message", "conversation_id": "c7"}}
	if err := h.worker.HandleClick(context.Background(), ev); err != nil {
		t.Fatalf("HandleClick() error = %v", err)
	}
	if win.focusCalls != 1 {
		t.Errorf("focusCalls = %d, want 1", win.focusCalls)
	}
	if len(win.navigations) != 0 {
		t.Errorf("navigations = %v, want none", win.navigations)
	}
	if len(reg.opened) != 0 {
		t.Errorf("opened = %v, want none", reg.opened)
	}
}

func TestWorker_HandleClick_ForeignOriginWindowIsSkipped(t *testing.T) {
	foreign := &fakeWindow{id: "w1", url: "https://evil.example.com/", canNavigate: true}
	reg := &fakeRegistry{windows: []WindowClient{foreign}, canOpen: true}
	h := newWorkerHarness(t, reg, WorkerOptions{})

	ev := ClickEvent{Data: map[string]string{"url": "/settings"}}
	if err := h.worker.HandleClick(context.Background(), ev); err != nil {
		t.Fatalf("HandleClick() error = %v", err)
	}
	if foreign.focusCalls != 0 {
		t.Errorf("foreign window focused %d times, want 0", foreign.focusCalls)
	}
	wantTarget := testOrigin + "/settings"
	if len(reg.opened) != 1 || reg.opened[0] != wantTarget {
		t.Errorf("opened = %v, want [%s]", reg.opened, wantTarget)
	}
}

func TestWorker_HandleClick_OpensWindowWhenNoneMatch(t *testing.T) {
	reg := &fakeRegistry{canOpen: true}
	h := newWorkerHarness(t, reg, WorkerOptions{})

	ev := ClickEvent{Data: map[string]string{"type": "call", "meeting_id": "m42"}}
	if err := h.worker.HandleClick(context.Background(), ev); err != nil {
		t.Fatalf("HandleClick() error = %v", err)
	}
	wantTarget := testOrigin + "/video-call?meetingId=m42"
	if len(reg.opened) != 1 || reg.opened[0] != wantTarget {
		t.Errorf("opened = %v, want [%s]", reg.opened, wantTarget)
	}
}

func TestWorker_HandleClick_MissingOpenCapabilityIsNotAnError(t *testing.T) {
	reg := &fakeRegistry{canOpen: false}
	h := newWorkerHarness(t, reg, WorkerOptions{})

	ev := ClickEvent{Data: map[string]string{"type": "message", "conversation_id": "c7"}}
	if err := h.worker.HandleClick(context.Background(), ev); err != nil {
		t.Fatalf("HandleClick() error = %v", err)
	}
	if len(reg.opened) != 0 {
		t.Errorf("opened = %v, want none without the capability", reg.opened)
	}
}

func TestWorker_HandleClick_FocusErrorFallsThroughToNextWindow(t *testing.T) {
	broken := &fakeWindow{id: "w1", url: testOrigin + "/a", focusErr: errors.New("gone"), canNavigate: true}
	healthy := &fakeWindow{id: "w2", url: testOrigin + "/b", canNavigate: true}
	reg := &fakeRegistry{windows: []WindowClient{broken, healthy}}
	h := newWorkerHarness(t, reg, WorkerOptions{})

	ev := ClickEvent{Data: map[string]string{"url": "/settings"}}
	if err := h.worker.HandleClick(context.Background(), ev); err != nil {
		t.Fatalf("HandleClick() error = %v", err)
	}
	if healthy.focusCalls != 1 {
		t.Errorf("healthy window focusCalls = %d, want 1", healthy.focusCalls)
	}
	if len(healthy.navigations) != 1 {
		t.Errorf("healthy window navigations = %v, want one", healthy.navigations)
	}
}
