package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// WorkerState tracks the lifecycle of the delivery worker.
type WorkerState int32

const (
	StateNew WorkerState = iota
	// StateInstalled means the worker skipped the waiting period and is
	// ready to activate immediately.
	StateInstalled
	// StateActive means the worker has claimed every open window and owns
	// all subsequent push handling.
	StateActive
)

func (s WorkerState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Worker is the long-lived background delivery engine. It classifies
// incoming messages, presents tray notifications, and resolves notification
// clicks into window navigation. Handlers contain their own failures: nothing
// propagates out of a single bad message.
type Worker struct {
	classifier *Classifier
	presenter  *Presenter
	resolver   *Resolver
	tray       Tray
	windows    WindowRegistry
	bridge     ForegroundNotifier // optional
	dedup      Deduper            // optional
	repo       *Repository        // optional
	log        *slog.Logger

	state      atomic.Int32
	generation atomic.Uint64
}

// WorkerOptions configures optional collaborators of the worker.
type WorkerOptions struct {
	// Bridge delivers messages in-app when the recipient has a focused
	// window. Nil disables foreground delivery.
	Bridge ForegroundNotifier
	// Dedup guards against double-presentation across delivery paths.
	// Nil disables the guard.
	Dedup Deduper
	// Repo records presented notifications and click outcomes. Nil disables
	// the delivery log.
	Repo *Repository
}

// NewWorker wires the delivery engine together.
func NewWorker(classifier *Classifier, presenter *Presenter, resolver *Resolver, tray Tray, windows WindowRegistry, logger *slog.Logger, opts WorkerOptions) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		classifier: classifier,
		presenter:  presenter,
		resolver:   resolver,
		tray:       tray,
		windows:    windows,
		bridge:     opts.Bridge,
		dedup:      opts.Dedup,
		repo:       opts.Repo,
		log:        logger,
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Generation returns the activation generation governing open windows.
func (w *Worker) Generation() uint64 {
	return w.generation.Load()
}

// Install transitions straight to ready-to-activate. There is no waiting
// period: a newly deployed worker supersedes its predecessor without every
// window closing first.
func (w *Worker) Install(ctx context.Context) error {
	w.state.Store(int32(StateInstalled))
	w.log.InfoContext(ctx, "worker installed", "state", w.State().String())
	return nil
}

// Activate claims control of every currently open window before activation
// completes, so subsequent events are guaranteed to be handled by this
// worker, not a stale one.
func (w *Worker) Activate(ctx context.Context) error {
	gen := w.generation.Add(1)
	if err := w.windows.ClaimAll(ctx, gen); err != nil {
		return fmt.Errorf("failed to claim open windows: %w", err)
	}
	w.state.Store(int32(StateActive))
	w.log.InfoContext(ctx, "worker activated", "generation", gen)
	return nil
}

// HandleBackgroundMessage processes an already-structured message from the
// messaging backend.
func (w *Worker) HandleBackgroundMessage(ctx context.Context, msg *BackgroundMessage) error {
	messagesReceived.WithLabelValues("message").Inc()
	return w.deliver(ctx, msg)
}

// HandlePush processes a raw push body. A malformed payload is logged and
// dropped; the error never reaches the transport, so the delivery is acked
// and the worker stays alive for the next event.
func (w *Worker) HandlePush(ctx context.Context, body []byte) error {
	messagesReceived.WithLabelValues("push").Inc()
	msg, err := w.classifier.ParsePush(body)
	if err != nil {
		parseFailures.Inc()
		w.log.ErrorContext(ctx, "dropping malformed push payload", "error", err)
		return nil
	}
	return w.deliver(ctx, msg)
}

// deliver makes the single delivery-path decision for a message: the dedup
// key decides the winner when both paths race, a focused in-app window beats
// the tray, and everything else is presented as a notification.
func (w *Worker) deliver(ctx context.Context, msg *BackgroundMessage) error {
	if id := msg.MessageID(); id != "" && w.dedup != nil {
		first, err := w.dedup.FirstDelivery(ctx, id)
		if err != nil {
			// Dedup is best-effort: present rather than drop on a store error.
			w.log.WarnContext(ctx, "delivery dedup check failed", "message_id", id, "error", err)
		} else if !first {
			duplicatesSuppressed.Inc()
			w.log.DebugContext(ctx, "message already delivered, suppressing", "message_id", id)
			return nil
		}
	}

	if w.bridge != nil {
		delivered, err := w.bridge.DeliverFocused(ctx, msg)
		if err != nil {
			w.log.WarnContext(ctx, "foreground delivery failed, falling back to tray", "error", err)
		} else if delivered {
			foregroundDeliveries.Inc()
			return nil
		}
	}

	intent := w.classifier.Normalize(msg)
	if err := w.presenter.Present(ctx, intent); err != nil {
		w.log.ErrorContext(ctx, "failed to present notification", "kind", string(intent.Kind), "error", err)
		return nil
	}
	return nil
}

// HandleClick resolves a notification click. The triggering notification is
// closed first, unconditionally; decline then terminates with zero window
// calls; otherwise the first same-origin window is focused and navigated in
// place, and a new window is opened only when the platform supports it.
func (w *Worker) HandleClick(ctx context.Context, ev ClickEvent) error {
	if err := w.tray.Close(ctx, ev.Tag()); err != nil {
		w.log.WarnContext(ctx, "failed to close notification", "tag", ev.Tag(), "error", err)
	}

	res := w.resolver.Resolve(ev)
	clicksResolved.WithLabelValues(res.Rule).Inc()

	if w.repo != nil {
		if err := w.repo.LogClick(ctx, ev, res); err != nil {
			w.log.WarnContext(ctx, "failed to log click", "error", err)
		}
	}

	if res.Declined {
		return nil
	}

	windows, err := w.windows.MatchAll(ctx, true)
	if err != nil {
		w.log.ErrorContext(ctx, "failed to enumerate open windows", "error", err)
		return nil
	}

	for _, win := range windows {
		if !w.resolver.SameOrigin(win.URL()) {
			continue
		}
		if err := win.Focus(ctx); err != nil {
			w.log.WarnContext(ctx, "failed to focus window", "window", win.ID(), "error", err)
			continue
		}
		windowsFocused.Inc()
		if win.CanNavigate() {
			if err := win.Navigate(ctx, res.Target); err != nil {
				w.log.WarnContext(ctx, "failed to navigate window", "window", win.ID(), "target", res.Target, "error", err)
			}
		}
		return nil
	}

	if !w.windows.CanOpenWindow() {
		w.log.DebugContext(ctx, "no open window support, skipping", "target", res.Target)
		return nil
	}
	if _, err := w.windows.OpenWindow(ctx, res.Target); err != nil {
		w.log.ErrorContext(ctx, "failed to open window", "target", res.Target, "error", err)
		return nil
	}
	windowsOpened.Inc()
	return nil
}
