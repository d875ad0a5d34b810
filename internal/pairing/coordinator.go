// Package pairing runs the one-shot handshake that binds the watch to a
// host session: request a short code, poll until the host confirms it,
// then persist the binding and the channel secret. The handshake runs
// over plain request/response calls and is independent of the live
// update channel.
package pairing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fotescodev/claude-watch/cli/internal/crypto"
	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	"github.com/fotescodev/claude-watch/cli/internal/storage"
	"github.com/fotescodev/claude-watch/cli/pkg/logger"
)

var (
	// ErrPairingExpired means the code's validity window lapsed before the
	// host confirmed it. The user must start a fresh attempt.
	ErrPairingExpired = errors.New("pairing code expired")
	// ErrPairingFailed means the handshake hit a transport or protocol
	// error. Terminal for the current attempt.
	ErrPairingFailed = errors.New("pairing failed")
)

// statusPollInterval paces the status poll during the handshake.
const statusPollInterval = 2 * time.Second

// Session is one in-flight pairing attempt. It exists only during the
// handshake and is discarded on success, expiry, or cancel. The box
// private key never leaves the process.
type Session struct {
	// Code is the short string the user types on the host.
	Code string
	// WatchToken authorizes status polls for this attempt.
	WatchToken string
	// ExpiresAt is when the host stops accepting the code.
	ExpiresAt time.Time

	privateKey *[32]byte
}

// Remaining derives the countdown for display. It is advisory only;
// expiry is enforced by the host through the status poll, so clock skew
// cannot end an attempt early.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s == nil || !s.ExpiresAt.After(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// Result is a confirmed handshake: the binding id plus the decrypted
// channel secret all later traffic is keyed from.
type Result struct {
	PairingID     string
	WatchToken    string
	ChannelSecret []byte
}

// Coordinator drives pairing attempts. A fresh Initiate abandons any
// prior in-flight attempt, so at most one poll loop runs at a time.
type Coordinator struct {
	baseURL     string
	deviceID    string
	pairingFile string
	secretFile  string
	client      *http.Client

	pollInterval time.Duration

	mu         sync.Mutex
	abandoning context.CancelFunc
}

// NewCoordinator builds a coordinator that talks to the pairing service
// at baseURL and persists the binding under the given paths.
func NewCoordinator(baseURL, deviceID, pairingFile, secretFile string) *Coordinator {
	return &Coordinator{
		baseURL:      baseURL,
		deviceID:     deviceID,
		pairingFile:  pairingFile,
		secretFile:   secretFile,
		client:       &http.Client{Timeout: 10 * time.Second},
		pollInterval: statusPollInterval,
	}
}

// Initiate starts a fresh pairing attempt and returns its session. Any
// prior attempt's poll loop is stopped first; the host invalidates the
// prior code when it issues a new one.
func (c *Coordinator) Initiate(ctx context.Context) (*Session, error) {
	c.abandonCurrent()

	publicKey, privateKey, err := crypto.GenerateBoxKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: generate key pair: %v", ErrPairingFailed, err)
	}

	body, err := json.Marshal(wire.PairInitiateRequest{
		DeviceID:  c.deviceID,
		PublicKey: base64.StdEncoding.EncodeToString(publicKey[:]),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pair/initiate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairingFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPairingFailed, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: initiate: %s", ErrPairingFailed, httpError(resp.StatusCode, respBody))
	}

	var initiate wire.PairInitiateResponse
	if err := json.Unmarshal(respBody, &initiate); err != nil {
		return nil, fmt.Errorf("%w: parse initiate response: %v", ErrPairingFailed, err)
	}
	if initiate.Code == "" || initiate.WatchToken == "" {
		return nil, fmt.Errorf("%w: initiate response missing code or token", ErrPairingFailed)
	}

	logger.Infof("pairing code issued: %s (valid until %s)", initiate.Code, initiate.ExpiresAt.Format(time.Kitchen))
	return &Session{
		Code:       initiate.Code,
		WatchToken: initiate.WatchToken,
		ExpiresAt:  initiate.ExpiresAt,
		privateKey: privateKey,
	}, nil
}

// WaitForPaired polls the attempt's status until a terminal outcome:
// host confirms (Result), code expires (ErrPairingExpired), or the
// transport fails (ErrPairingFailed). Cancel ctx to back out; polling
// stops immediately and the context error is returned.
func (c *Coordinator) WaitForPaired(ctx context.Context, session *Session) (*Result, error) {
	if session == nil || session.privateKey == nil {
		return nil, fmt.Errorf("%w: no active session", ErrPairingFailed)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.registerAttempt(cancel)

	pollURL := fmt.Sprintf("%s/pair/status?%s", c.baseURL, url.Values{
		"watchToken": []string{session.WatchToken},
	}.Encode())

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, err := c.checkStatus(ctx, pollURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if status == nil {
			// Attempt not visible yet; keep polling.
			continue
		}
		if status.Expired {
			return nil, ErrPairingExpired
		}
		if !status.Paired {
			continue
		}
		return sessionResult(session, status)
	}
}

// checkStatus performs one status poll. A nil response with nil error
// means "not found yet, keep polling".
func (c *Coordinator) checkStatus(ctx context.Context, pollURL string) (*wire.PairStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairingFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairingFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read status: %v", ErrPairingFailed, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var status wire.PairStatusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, fmt.Errorf("%w: parse status: %v", ErrPairingFailed, err)
		}
		return &status, nil
	case http.StatusNotFound:
		// The attempt may not have propagated yet.
		return nil, nil
	case http.StatusGone:
		return nil, ErrPairingExpired
	default:
		return nil, fmt.Errorf("%w: status: %s", ErrPairingFailed, httpError(resp.StatusCode, body))
	}
}

func sessionResult(session *Session, status *wire.PairStatusResponse) (*Result, error) {
	if status.PairingID == "" || status.Response == "" {
		return nil, fmt.Errorf("%w: paired status missing pairingId or secret", ErrPairingFailed)
	}
	encrypted, err := base64.StdEncoding.DecodeString(status.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: decode channel secret: %v", ErrPairingFailed, err)
	}
	secret, err := crypto.DecryptPairingSecret(encrypted, session.privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt channel secret: %v", ErrPairingFailed, err)
	}
	return &Result{
		PairingID:     status.PairingID,
		WatchToken:    session.WatchToken,
		ChannelSecret: secret,
	}, nil
}

// Finish persists the confirmed binding and the channel secret. The
// pairing session is discarded; only the persisted binding survives.
func (c *Coordinator) Finish(result *Result, mode, serverURL string) error {
	if result == nil || result.PairingID == "" {
		return fmt.Errorf("%w: nothing to persist", ErrPairingFailed)
	}
	if err := storage.SaveSecretKey(c.secretFile, result.ChannelSecret); err != nil {
		return fmt.Errorf("save channel secret: %w", err)
	}
	info := storage.PairingInfo{
		PairingID:  result.PairingID,
		WatchToken: result.WatchToken,
		Mode:       mode,
		ServerURL:  serverURL,
		PairedAtMs: time.Now().UnixMilli(),
	}
	if err := storage.SavePairingInfo(c.pairingFile, info); err != nil {
		return fmt.Errorf("save pairing binding: %w", err)
	}
	logger.Infof("paired: %s (%s mode)", result.PairingID, mode)
	return nil
}

// abandonCurrent stops the previous attempt's poll loop, if any.
func (c *Coordinator) abandonCurrent() {
	c.mu.Lock()
	cancel := c.abandoning
	c.abandoning = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Coordinator) registerAttempt(cancel context.CancelFunc) {
	c.mu.Lock()
	c.abandoning = cancel
	c.mu.Unlock()
}

func httpError(status int, body []byte) string {
	var payload wire.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", status, payload.Error)
	}
	return fmt.Sprintf("HTTP %d", status)
}
