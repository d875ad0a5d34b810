package connection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fotescodev/claude-watch/cli/internal/crypto"
	"github.com/fotescodev/claude-watch/cli/internal/protocol/wire"
	"github.com/fotescodev/claude-watch/cli/pkg/logger"
)

const (
	// pollInterval paces the relay update poll.
	pollInterval = time.Second
	// relayRequestTimeout bounds each relay HTTP call.
	relayRequestTimeout = 10 * time.Second
)

// RelayTransport is the polling transport: a cloud relay reached over
// HTTPS because push is unavailable. Updates are fetched with a cursor;
// payloads travel secretbox-encrypted under the pairing's channel secret,
// so the relay never sees plaintext.
//
// A failed poll fails the Run; the Manager owns retry pacing. The cursor
// survives across Run calls so a reconnect resumes where it left off.
type RelayTransport struct {
	relayURL   string
	watchToken string
	payloadKey *[32]byte
	client     *http.Client
	interval   time.Duration

	cursor int64
}

// NewRelayTransport builds the polling transport. watchToken is the
// bearer credential from pairing; payloadKey is derived from the channel
// secret.
func NewRelayTransport(relayURL, watchToken string, payloadKey *[32]byte) *RelayTransport {
	return &RelayTransport{
		relayURL:   relayURL,
		watchToken: watchToken,
		payloadKey: payloadKey,
		client:     &http.Client{Timeout: relayRequestTimeout},
		interval:   pollInterval,
	}
}

// Run implements Transport. The channel counts as live after the first
// successful poll.
func (t *RelayTransport) Run(ctx context.Context, onReady func(), onUpdate func(*wire.UpdateEnvelope)) error {
	ready := false
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		updates, err := t.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ready {
			ready = true
			onReady()
			logger.Infof("relay channel up: %s", t.relayURL)
		}
		for _, env := range updates {
			onUpdate(env)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll fetches and decrypts one batch of updates.
func (t *RelayTransport) poll(ctx context.Context) ([]*wire.UpdateEnvelope, error) {
	endpoint := fmt.Sprintf("%s/v1/updates?%s", t.relayURL, url.Values{
		"cursor": []string{strconv.FormatInt(t.cursor, 10)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.watchToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll updates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("poll updates: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll updates: %s", relayError(resp.StatusCode, body))
	}

	var batch wire.UpdatesResponse
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("poll updates: decode: %w", err)
	}

	envelopes := make([]*wire.UpdateEnvelope, 0, len(batch.Updates))
	for _, record := range batch.Updates {
		env, err := t.decryptRecord(record)
		if err != nil {
			// A record we cannot read is dropped, not fatal; the host
			// may have rotated ahead of us.
			logger.Warnf("dropping unreadable relay record: %v", err)
			continue
		}
		envelopes = append(envelopes, env)
	}
	t.cursor = batch.Cursor
	return envelopes, nil
}

func (t *RelayTransport) decryptRecord(record wire.EncryptedRecord) (*wire.UpdateEnvelope, error) {
	cipher, err := base64.StdEncoding.DecodeString(record.C)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	var env wire.UpdateEnvelope
	if err := crypto.DecryptPayload(cipher, t.payloadKey, &env); err != nil {
		return nil, fmt.Errorf("decrypt record: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("record missing update type")
	}
	return &env, nil
}

// Send implements Transport. The frame is encrypted and posted to the
// endpoint for its type.
func (t *RelayTransport) Send(ctx context.Context, frame wire.Outbound) error {
	path, err := endpointFor(frame.Kind())
	if err != nil {
		return err
	}

	cipher, err := crypto.EncryptPayload(frame, t.payloadKey)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", frame.Kind(), err)
	}
	payload, err := json.Marshal(wire.OutboundRequest{
		C: base64.StdEncoding.EncodeToString(cipher),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.relayURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.watchToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", frame.Kind(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("send %s: %s", frame.Kind(), relayError(resp.StatusCode, body))
	}
	return nil
}

func endpointFor(kind string) (string, error) {
	switch kind {
	case wire.OutboundDecision:
		return "/v1/decisions", nil
	case wire.OutboundInterrupt:
		return "/v1/interrupts", nil
	case wire.OutboundQuestionAnswer:
		return "/v1/answers", nil
	default:
		return "", fmt.Errorf("no relay endpoint for frame type %q", kind)
	}
}

// relayError renders an HTTP failure, preferring the structured error
// body when the relay sent one.
func relayError(status int, body []byte) string {
	var payload wire.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", status, payload.Error)
	}
	return fmt.Sprintf("HTTP %d", status)
}
