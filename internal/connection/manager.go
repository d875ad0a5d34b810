package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	"github.com/fotescodev/claude-watch/cli/pkg/logger"
)

// ErrNotConnected is returned by Send while the channel is down.
var ErrNotConnected = errors.New("not connected")

// Transport is one logical channel implementation (streaming socket or
// relay polling).
type Transport interface {
	// Run establishes the channel and pumps inbound updates until the
	// context is canceled or the channel fails. onReady fires once, from
	// Run's goroutine, when the channel becomes live; onUpdate fires for
	// every inbound update, also from Run's goroutine. Run returns nil
	// only for a context-driven shutdown; any other return is a channel
	// failure.
	Run(ctx context.Context, onReady func(), onUpdate func(*wire.UpdateEnvelope)) error

	// Send delivers one outbound frame to the host. It fails with
	// ErrNotConnected while the channel is down.
	Send(ctx context.Context, frame wire.Outbound) error
}

// UpdateHandler consumes inbound updates. Handlers are invoked from the
// manager's run goroutine; implementations must hand off quickly.
type UpdateHandler func(*wire.UpdateEnvelope)

// StateListener observes connection state transitions.
type StateListener func(State)

// Manager drives one transport through the connection state machine:
//
//	Disconnected -> Connecting -> Connected
//	Connected/Connecting -> Reconnecting(attempt, delay) on failure
//	Reconnecting -> Connecting when the retry timer fires
//	any -> Disconnected on Stop
//
// Retries continue until Stop; there is no attempt limit. The run
// goroutine is the only state writer, so transitions never race. Reads
// are lock-free snapshot loads.
type Manager struct {
	transport Transport
	backoff   Backoff
	onState   StateListener
	onUpdate  UpdateHandler

	state atomic.Pointer[State]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBackoff overrides the reconnect policy.
func WithBackoff(b Backoff) ManagerOption {
	return func(m *Manager) { m.backoff = b }
}

// WithStateListener registers a connection state observer. The listener
// runs on the manager goroutine.
func WithStateListener(fn StateListener) ManagerOption {
	return func(m *Manager) { m.onState = fn }
}

// WithUpdateHandler registers the inbound update consumer.
func WithUpdateHandler(fn UpdateHandler) ManagerOption {
	return func(m *Manager) { m.onUpdate = fn }
}

// NewManager wraps a transport in the reconnect state machine. The
// manager is idle until Start.
func NewManager(transport Transport, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		transport: transport,
		backoff:   DefaultBackoff(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.state.Store(&State{Status: StatusDisconnected})
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the connect/retry loop. Idempotent.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go m.run()
	})
}

// Stop tears the channel down and halts retries. Idempotent; blocks until
// the loop exits.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { m.cancel() })
	if m.started.Load() {
		<-m.done
	}
}

// Done returns a channel that closes when the manager loop exits.
func (m *Manager) Done() <-chan struct{} { return m.done }

// State returns the current connection state snapshot.
func (m *Manager) State() State {
	return *m.state.Load()
}

// Send delivers one outbound frame over the live channel.
func (m *Manager) Send(ctx context.Context, frame wire.Outbound) error {
	if !m.State().Live() {
		return ErrNotConnected
	}
	return m.transport.Send(ctx, frame)
}

func (m *Manager) run() {
	defer close(m.done)
	defer m.setState(State{Status: StatusDisconnected})

	attempt := 0
	for {
		if m.ctx.Err() != nil {
			return
		}
		m.setState(State{Status: StatusConnecting})

		err := m.transport.Run(m.ctx, func() {
			attempt = 0
			m.setState(State{Status: StatusConnected})
		}, m.deliver)
		if m.ctx.Err() != nil {
			return
		}

		attempt++
		delay := m.backoff.Delay(attempt)
		m.setState(State{
			Status:      StatusReconnecting,
			Attempt:     attempt,
			NextRetryIn: delay,
		})
		logger.Warnf("connection lost: %v; retry %d in %s", err, attempt, delay.Round(time.Millisecond))

		select {
		case <-time.After(delay):
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) deliver(env *wire.UpdateEnvelope) {
	if env == nil || m.onUpdate == nil {
		return
	}
	m.onUpdate(env)
}

func (m *Manager) setState(next State) {
	prev := *m.state.Load()
	if prev == next {
		return
	}
	m.state.Store(&next)
	logger.Debugf("connection %s -> %s", prev, next)
	if m.onState != nil {
		m.onState(next)
	}
}
