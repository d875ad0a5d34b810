package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	framework "github.com/fotescodev/claude-watch/cli/internal/actor"
	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	"github.com/fotescodev/claude-watch/cli/pkg/logger"
)

// defaultSendTimeout bounds one outbound delivery attempt. There is no retry:
// decisions are best-effort notifications after the local commit.
const defaultSendTimeout = 10 * time.Second

// Sender delivers outbound frames to the host. Both transports satisfy it
// through the connection manager.
type Sender interface {
	Send(ctx context.Context, frame wire.Outbound) error
}

// Notifier raises attention alerts on the paired phone. Implementations own
// transport and cooldown; key deduplicates within the cooldown window.
type Notifier interface {
	Notify(ctx context.Context, key, title, message string) error
}

// Runtime interprets session effects: outbound frame delivery and attention
// alerts. All I/O runs on its own goroutines so the actor loop never blocks.
//
// Runtime never mutates session state directly. Failures re-enter the actor
// mailbox as events via the provided emit function.
type Runtime struct {
	mu          sync.Mutex
	sender      Sender
	notifier    Notifier
	sendTimeout time.Duration
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithNotifier attaches an attention notifier. Without one, notify effects
// are dropped.
func WithNotifier(n Notifier) RuntimeOption {
	return func(r *Runtime) { r.notifier = n }
}

// WithSendTimeout overrides the per-frame delivery timeout.
func WithSendTimeout(d time.Duration) RuntimeOption {
	return func(r *Runtime) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// NewRuntime returns a Runtime that delivers frames through sender.
func NewRuntime(sender Sender, opts ...RuntimeOption) *Runtime {
	r := &Runtime{sender: sender, sendTimeout: defaultSendTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetSender swaps the frame sender. Used by the manager once the connection
// is constructed; safe to call before the actor starts.
func (r *Runtime) SetSender(sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = sender
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []framework.Effect, emit func(framework.Input)) {
	for _, eff := range effects {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := eff.(type) {
		case effSendDecision:
			r.deliver(ctx, wire.Decision(e.ActionID, e.Approved), emit)
		case effSendAnswer:
			r.deliver(ctx, wire.QuestionAnswer(e.QuestionID, e.Answer, e.HandleOnMac), emit)
		case effSendInterrupt:
			r.deliver(ctx, wire.Interrupt(e.Action), emit)
		case effNotify:
			r.alert(ctx, e)
		default:
			// Unknown effect: ignore.
		}
	}
}

// Stop implements actor.Runtime. In-flight deliveries are bounded by the
// actor context and their own timeouts; there is nothing else to tear down.
func (r *Runtime) Stop() {}

// deliver sends one frame asynchronously. On failure it logs and feeds a
// delivery-failed event back to the reducer; it never retries and the
// reducer never rolls back.
func (r *Runtime) deliver(ctx context.Context, frame wire.Outbound, emit func(framework.Input)) {
	r.mu.Lock()
	sender := r.sender
	timeout := r.sendTimeout
	r.mu.Unlock()
	if sender == nil {
		return
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := sender.Send(sendCtx, frame); err != nil {
			wrapped := fmt.Errorf("%w: %s: %v", ErrDecisionDeliveryFailed, frame.Kind(), err)
			logger.Warnf("%v", wrapped)
			emit(DeliveryFailed(frame.Kind(), wrapped))
		}
	}()
}

// alert raises an attention notification, best-effort.
func (r *Runtime) alert(ctx context.Context, eff effNotify) {
	r.mu.Lock()
	notifier := r.notifier
	r.mu.Unlock()
	if notifier == nil {
		return
	}

	go func() {
		if err := notifier.Notify(ctx, eff.Key, eff.Title, eff.Message); err != nil {
			logger.Debugf("attention alert %q not delivered: %v", eff.Key, err)
		}
	}()
}
