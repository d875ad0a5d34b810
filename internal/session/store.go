package session

import (
	"errors"
	"sync"
	"sync/atomic"

	framework "github.com/fotescodev/claude-watch/cli/internal/actor"
	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	sessionactor "github.com/fotescodev/claude-watch/cli/internal/session/actor"
	"github.com/fotescodev/claude-watch/cli/internal/tier"
	"github.com/fotescodev/claude-watch/cli/pkg/logger"
	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

// ErrStoreStopped is returned when an input cannot be enqueued, either because
// the store was closed or because its mailbox is saturated.
var ErrStoreStopped = errors.New("session store stopped")

// storeMailboxSize bounds queued inputs. Relay polling can hand over a burst
// of backlogged updates right after a reconnect, so the mailbox must hold a
// full backlog plus in-flight engine commands without dropping any.
const storeMailboxSize = 1024

// StateListener observes applied session transitions.
//
// It runs on the store loop goroutine after every applied input, so it must
// return quickly and must not call back into the store.
type StateListener func(prev, next types.SessionState)

// Store owns the session aggregate and is its single mutation path.
//
// Every change, whether an inbound host update or a local decision, enters
// through the mailbox and is applied by the reducer on one goroutine.
// Snapshot reads never block the mutation path.
type Store struct {
	actor *framework.Actor[sessionactor.State]

	started   atomic.Bool
	closeOnce sync.Once
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	classifier *tier.Classifier
	listener   StateListener
}

// WithClassifier overrides the risk classifier used for inbound actions.
func WithClassifier(c *tier.Classifier) StoreOption {
	return func(sc *storeConfig) { sc.classifier = c }
}

// WithStateListener registers a listener for applied transitions.
func WithStateListener(fn StateListener) StoreOption {
	return func(sc *storeConfig) { sc.listener = fn }
}

// NewStore creates a Store around the given effect runtime.
func NewStore(rt framework.Runtime, opts ...StoreOption) *Store {
	var sc storeConfig
	for _, opt := range opts {
		opt(&sc)
	}

	hooks := framework.Hooks[sessionactor.State]{
		OnInput: func(input framework.Input) {
			logger.Tracef("session input: %T", input)
		},
		OnTransition: func(prev sessionactor.State, next sessionactor.State, input framework.Input) {
			if next.Duplicates > prev.Duplicates {
				logger.Warnf("ignored duplicate action proposal (%d so far)", next.Duplicates)
			}
			if sc.listener != nil {
				sc.listener(prev.Session, next.Session)
			}
		},
	}

	s := &Store{}
	s.actor = framework.New(
		sessionactor.NewState(sc.classifier),
		sessionactor.Reduce,
		rt,
		framework.WithHooks(hooks),
		framework.WithMailboxSize[sessionactor.State](storeMailboxSize),
	)
	return s
}

// Start launches the store loop. Start is idempotent.
func (s *Store) Start() {
	s.started.Store(true)
	s.actor.Start()
}

// Close stops the loop and waits for it to exit. Close is idempotent.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.actor.Stop()
		if s.started.Load() {
			<-s.actor.Done()
		}
	})
}

// Snapshot returns a deep copy of the current session aggregate.
//
// The copy shares nothing with reducer-owned state, so callers may hold or
// mutate it freely.
func (s *Store) Snapshot() types.SessionState {
	return s.actor.State().Session.Clone()
}

// Diagnostics are counters the reducer accumulates outside the session
// aggregate proper.
type Diagnostics struct {
	// Duplicates counts inbound action proposals dropped for reusing a
	// pending id.
	Duplicates int
	// DeliveryFailures counts outbound frames that could not be delivered.
	DeliveryFailures int
}

// Diagnostics returns the current reducer counters.
func (s *Store) Diagnostics() Diagnostics {
	st := s.actor.State()
	return Diagnostics{
		Duplicates:       st.Duplicates,
		DeliveryFailures: st.DeliveryFailures,
	}
}

// Apply translates an inbound update envelope and enqueues it.
//
// A malformed envelope is reported back without touching state; the
// connection keeps running and the caller decides whether to log or drop.
func (s *Store) Apply(env *wire.UpdateEnvelope) error {
	input, err := sessionactor.InputFromUpdate(env)
	if err != nil {
		return err
	}
	if !s.actor.Enqueue(input) {
		return ErrStoreStopped
	}
	return nil
}

// Enqueue delivers a raw input to the store loop.
//
// It returns false when the store is closed or the mailbox is full.
func (s *Store) Enqueue(input framework.Input) bool {
	return s.actor.Enqueue(input)
}
