package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	siotypes "github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/fotescodev/claude-watch/cli/internal/crypto"
	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	"github.com/fotescodev/claude-watch/cli/pkg/logger"
)

const (
	// keepaliveInterval paces the liveness ping on the streaming channel.
	keepaliveInterval = 20 * time.Second
	// socketTokenTTL bounds the device token minted per connection
	// attempt. The host validates it at handshake time.
	socketTokenTTL = time.Hour
	// ackTimeout bounds how long Send waits for the host's ack.
	ackTimeout = 5 * time.Second
)

// SocketTransport is the streaming transport: a socket.io channel to a
// host bridge on the local network. Updates arrive as "update" events;
// outbound frames are emitted under their own type name and acked by the
// host.
//
// The transport performs exactly one connection per Run call and tears
// the socket down on any failure; retry scheduling belongs to the
// Manager.
type SocketTransport struct {
	serverURL string
	deviceID  string
	pairingID string
	tokens    *crypto.TokenManager

	mu   sync.RWMutex
	sock *socket.Socket
}

// NewSocketTransport builds the streaming transport. The token manager
// must be derived from the pairing's channel secret; the host rejects
// handshakes it cannot verify.
func NewSocketTransport(serverURL, deviceID, pairingID string, tokens *crypto.TokenManager) *SocketTransport {
	return &SocketTransport{
		serverURL: serverURL,
		deviceID:  deviceID,
		pairingID: pairingID,
		tokens:    tokens,
	}
}

// Run implements Transport.
func (t *SocketTransport) Run(ctx context.Context, onReady func(), onUpdate func(*wire.UpdateEnvelope)) error {
	token, err := t.tokens.MintDeviceToken(t.deviceID, t.pairingID, socketTokenTTL)
	if err != nil {
		return fmt.Errorf("mint device token: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetTransports(siotypes.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAuth(map[string]interface{}{
		"token":     token,
		"deviceId":  t.deviceID,
		"pairingId": t.pairingID,
	})

	sock, err := socket.Connect(t.serverURL, opts)
	if err != nil {
		return fmt.Errorf("socket connect: %w", err)
	}
	defer func() {
		t.mu.Lock()
		t.sock = nil
		t.mu.Unlock()
		sock.Disconnect()
	}()

	connected := make(chan struct{}, 1)
	failed := make(chan error, 2)
	updates := make(chan *wire.UpdateEnvelope, 64)

	sock.On(siotypes.EventName("connect"), func(args ...any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	sock.On(siotypes.EventName("connect_error"), func(args ...any) {
		err := fmt.Errorf("socket connect error")
		if len(args) > 0 {
			err = fmt.Errorf("socket connect error: %v", args[0])
		}
		select {
		case failed <- err:
		default:
		}
	})
	sock.On(siotypes.EventName("disconnect"), func(args ...any) {
		reason := ""
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		select {
		case failed <- fmt.Errorf("socket disconnected: %s", reason):
		default:
		}
	})
	sock.On(siotypes.EventName("update"), func(args ...any) {
		if len(args) == 0 {
			return
		}
		env, err := wire.ParseUpdateEnvelope(args[0])
		if err != nil {
			logger.Warnf("dropping malformed update: %v", err)
			return
		}
		select {
		case updates <- env:
		default:
			logger.Warnf("update buffer full, dropping %s", env.Type)
		}
	})

	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		return err
	case <-connected:
	}

	t.mu.Lock()
	t.sock = sock
	t.mu.Unlock()
	onReady()
	logger.Infof("streaming channel up: %s (socket %s)", t.serverURL, sock.Id())

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failed:
			return err
		case env := <-updates:
			onUpdate(env)
		case <-keepalive.C:
			sock.Emit("ping", map[string]interface{}{
				"deviceId": t.deviceID,
				"time":     time.Now().UnixMilli(),
			})
		}
	}
}

// Send implements Transport. The frame is emitted under its type name and
// the call waits for the host's ack.
func (t *SocketTransport) Send(ctx context.Context, frame wire.Outbound) error {
	t.mu.RLock()
	sock := t.sock
	t.mu.RUnlock()
	if sock == nil {
		return ErrNotConnected
	}

	payload, err := frameToMap(frame)
	if err != nil {
		return err
	}

	ackCh := make(chan map[string]interface{}, 1)
	errCh := make(chan error, 1)
	sock.Emit(frame.Kind(), payload, func(args []any, err error) {
		if err != nil {
			errCh <- err
			return
		}
		if len(args) > 0 {
			if ack, ok := args[0].(map[string]interface{}); ok {
				ackCh <- ack
				return
			}
		}
		ackCh <- nil
	})

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case ack := <-ackCh:
		if ack != nil {
			if ok, present := ack["ok"].(bool); present && !ok {
				msg, _ := ack["error"].(string)
				return fmt.Errorf("%s refused: %s", frame.Kind(), msg)
			}
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("%s ack: %w", frame.Kind(), err)
	case <-timer.C:
		return fmt.Errorf("%s ack timeout", frame.Kind())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// frameToMap converts an outbound frame to the map shape socket.io emits.
func frameToMap(frame wire.Outbound) (map[string]interface{}, error) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
