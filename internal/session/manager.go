// Package session assembles the watch client around a single session
// aggregate: it loads the persisted pairing, derives the channel keys,
// selects the transport for the paired mode, and owns the store that
// serializes every state mutation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fotescodev/claude-watch/cli/internal/config"
	"github.com/fotescodev/claude-watch/cli/internal/connection"
	"github.com/fotescodev/claude-watch/cli/internal/crypto"
	"github.com/fotescodev/claude-watch/cli/internal/notify"
	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	sessionactor "github.com/fotescodev/claude-watch/cli/internal/session/actor"
	"github.com/fotescodev/claude-watch/cli/internal/storage"
	"github.com/fotescodev/claude-watch/cli/pkg/logger"
)

// ErrNotPaired is returned by NewManager when no pairing binding exists on
// disk. The watch must complete the pairing handshake first.
var ErrNotPaired = errors.New("not paired")

// Manager wires the session store to a host connection.
//
// It owns the full client stack for one session: pairing material, token
// minting, the reconnecting channel, outbound delivery, and attention
// alerts. Callers interact with the session through Store.
type Manager struct {
	cfg *config.Config

	deviceID string
	pairing  storage.PairingInfo

	runtime *sessionactor.Runtime
	store   *Store
	conn    *connection.Manager

	closeOnce sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	transport connection.Transport
	notifier  sessionactor.Notifier
	listener  StateListener
	backoff   *connection.Backoff
}

// WithTransport overrides the transport chosen from the pairing mode.
func WithTransport(t connection.Transport) ManagerOption {
	return func(mc *managerConfig) { mc.transport = t }
}

// WithNotifier overrides the attention alert sink.
func WithNotifier(n sessionactor.Notifier) ManagerOption {
	return func(mc *managerConfig) { mc.notifier = n }
}

// WithSessionListener registers a listener for applied session transitions.
func WithSessionListener(fn StateListener) ManagerOption {
	return func(mc *managerConfig) { mc.listener = fn }
}

// WithConnectionBackoff overrides the reconnect backoff policy.
func WithConnectionBackoff(b connection.Backoff) ManagerOption {
	return func(mc *managerConfig) { mc.backoff = &b }
}

// NewManager loads the persisted pairing and builds the full client stack.
//
// The manager is inert until Start is called.
func NewManager(cfg *config.Config, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	var mc managerConfig
	for _, opt := range opts {
		opt(&mc)
	}

	pairing, ok, err := storage.LoadPairingInfo(cfg.PairingFile)
	if err != nil {
		return nil, fmt.Errorf("load pairing: %w", err)
	}
	if !ok {
		return nil, ErrNotPaired
	}

	deviceID, err := storage.GetOrCreateDeviceID(cfg.DeviceFile)
	if err != nil {
		return nil, fmt.Errorf("load device id: %w", err)
	}

	m := &Manager{
		cfg:      cfg,
		deviceID: deviceID,
		pairing:  pairing,
	}

	notifier := mc.notifier
	if notifier == nil {
		notifier = m.buildPushoverAlerts()
	}

	runtimeOpts := []sessionactor.RuntimeOption{}
	if notifier != nil {
		runtimeOpts = append(runtimeOpts, sessionactor.WithNotifier(notifier))
	}
	// Built without a sender; the connection manager is attached below once
	// it exists. The store does not run until Start, so no effect is
	// produced before the sender is in place.
	m.runtime = sessionactor.NewRuntime(nil, runtimeOpts...)

	storeOpts := []StoreOption{}
	if mc.listener != nil {
		storeOpts = append(storeOpts, WithStateListener(mc.listener))
	}
	m.store = NewStore(m.runtime, storeOpts...)

	transport := mc.transport
	if transport == nil {
		transport, err = m.buildTransport()
		if err != nil {
			return nil, err
		}
	}

	connOpts := []connection.ManagerOption{
		connection.WithUpdateHandler(m.handleUpdate),
		connection.WithStateListener(m.handleConnectionState),
	}
	if mc.backoff != nil {
		connOpts = append(connOpts, connection.WithBackoff(*mc.backoff))
	}
	m.conn = connection.NewManager(transport, connOpts...)
	m.runtime.SetSender(m.conn)

	return m, nil
}

// Start launches the store loop and begins connecting.
func (m *Manager) Start() {
	m.store.Start()
	m.conn.Start()
}

// Close tears the stack down: the channel first so no further updates
// arrive, then the store loop. Close is idempotent.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.conn.Stop()
		m.store.Close()
	})
}

// Store returns the session store.
func (m *Manager) Store() *Store { return m.store }

// ConnectionState returns the current channel state.
func (m *Manager) ConnectionState() connection.State { return m.conn.State() }

// DeviceID returns the stable watch device identifier.
func (m *Manager) DeviceID() string { return m.deviceID }

// Pairing returns the loaded pairing binding.
func (m *Manager) Pairing() storage.PairingInfo { return m.pairing }

// buildTransport selects the transport for the paired mode.
//
// The binding recorded at pairing time wins over the ambient config so a
// watch paired for cloud keeps polling the relay even if the environment
// later flips to local.
func (m *Manager) buildTransport() (connection.Transport, error) {
	mode := m.pairing.Mode
	if mode == "" {
		mode = m.cfg.Mode
	}

	secret, err := storage.LoadSecretKey(m.cfg.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("load channel secret: %w", err)
	}

	switch mode {
	case config.ModeCloud:
		payloadKey, err := crypto.DerivePayloadKey(secret)
		if err != nil {
			return nil, fmt.Errorf("derive payload key: %w", err)
		}
		return connection.NewRelayTransport(m.cfg.RelayURL, m.pairing.WatchToken, payloadKey), nil
	case config.ModeLocal:
		tokens, err := crypto.NewTokenManager(secret)
		if err != nil {
			return nil, fmt.Errorf("init token manager: %w", err)
		}
		serverURL := m.pairing.ServerURL
		if serverURL == "" {
			serverURL = m.cfg.ServerURL
		}
		return connection.NewSocketTransport(serverURL, m.deviceID, m.pairing.PairingID, tokens), nil
	default:
		return nil, fmt.Errorf("unknown pairing mode %q", mode)
	}
}

// buildPushoverAlerts returns the Pushover alert sink, or nil when alerts
// are not configured.
func (m *Manager) buildPushoverAlerts() sessionactor.Notifier {
	if !m.cfg.PushoverEnabled() || !m.cfg.PushoverNotifyAttention {
		return nil
	}
	notifier, err := notify.NewPushoverNotifier(notify.PushoverConfig{
		Token:    m.cfg.PushoverToken,
		UserKey:  m.cfg.PushoverUserKey,
		Priority: m.cfg.PushoverPriority,
		Cooldown: m.cfg.PushoverCooldown,
	})
	if err != nil {
		logger.Warnf("Pushover alerts disabled: %v", err)
		return nil
	}
	return pushoverAlerts{notifier: notifier}
}

// handleUpdate feeds an inbound envelope into the store.
//
// Malformed updates are logged and dropped; they never tear the channel
// down.
func (m *Manager) handleUpdate(env *wire.UpdateEnvelope) {
	if err := m.store.Apply(env); err != nil {
		logger.Warnf("dropped inbound update: %v", err)
	}
}

// handleConnectionState logs channel lifecycle transitions.
func (m *Manager) handleConnectionState(st connection.State) {
	switch st.Status {
	case connection.StatusConnected:
		logger.Infof("connected to host (mode=%s)", m.pairing.Mode)
	case connection.StatusReconnecting:
		logger.Warnf("connection lost, %s", st)
	default:
		logger.Debugf("connection %s", st)
	}
}

// pushoverAlerts adapts the Pushover notifier to the attention alert sink.
type pushoverAlerts struct {
	notifier *notify.PushoverNotifier
}

func (p pushoverAlerts) Notify(ctx context.Context, key, title, message string) error {
	return p.notifier.Notify(ctx, notify.PushoverMessage{
		Title:    title,
		Message:  message,
		AlertKey: key,
	})
}
