// Package notify raises attention alerts on the user's phone when the watch
// needs a human: a new approval arrived, or a decision could not be
// delivered. Alerts are best-effort and rate-limited per alert key so a
// noisy session cannot flood the user.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// defaultEndpoint is the Pushover message API.
	defaultEndpoint = "https://api.pushover.net/1/messages.json"
	// requestTimeout bounds one delivery attempt.
	requestTimeout = 10 * time.Second
)

// PushoverConfig describes the credentials and pacing for alert delivery.
type PushoverConfig struct {
	// Token is the Pushover application token.
	Token string
	// UserKey is the destination user key.
	UserKey string
	// Priority is the Pushover priority for every alert.
	Priority int
	// Cooldown is the minimum interval between alerts sharing an alert
	// key. Zero disables rate limiting.
	Cooldown time.Duration
	// Endpoint overrides the Pushover API URL. Empty uses the real API.
	Endpoint string
}

// PushoverMessage is one attention alert.
type PushoverMessage struct {
	// Title is the alert headline (e.g. "High-risk action pending").
	Title string
	// Message is the alert body, typically the action title.
	Message string
	// AlertKey groups repeats of the same alert for cooldown purposes;
	// the session keys approval alerts by action id.
	AlertKey string
}

// PushoverNotifier delivers attention alerts through Pushover.
//
// Safe for concurrent use; the effect runtime calls Notify from multiple
// goroutines.
type PushoverNotifier struct {
	token    string
	userKey  string
	priority int
	cooldown time.Duration
	endpoint string

	client *http.Client

	mu        sync.Mutex
	lastSent  map[string]time.Time
	lastError error
}

// NewPushoverNotifier validates the config and builds a notifier.
func NewPushoverNotifier(cfg PushoverConfig) (*PushoverNotifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("pushover token is required")
	}
	if strings.TrimSpace(cfg.UserKey) == "" {
		return nil, fmt.Errorf("pushover user key is required")
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("pushover cooldown must be non-negative")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &PushoverNotifier{
		token:    cfg.Token,
		userKey:  cfg.UserKey,
		priority: cfg.Priority,
		cooldown: cfg.Cooldown,
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
		lastSent: make(map[string]time.Time),
	}, nil
}

// Notify delivers one alert unless its key is still inside the cooldown
// window. A suppressed alert is not an error.
func (n *PushoverNotifier) Notify(ctx context.Context, msg PushoverMessage) error {
	alertKey := strings.TrimSpace(msg.AlertKey)
	if alertKey == "" {
		return fmt.Errorf("pushover alert key is required")
	}
	message := strings.TrimSpace(msg.Message)
	if message == "" {
		return fmt.Errorf("pushover message is required")
	}

	if !n.claim(alertKey, time.Now()) {
		return nil
	}

	if err := n.send(ctx, msg.Title, message); err != nil {
		n.mu.Lock()
		n.lastError = err
		n.mu.Unlock()
		return err
	}
	return nil
}

// LastError returns the most recent delivery error, if any. It resets when
// a later alert for any key goes through.
func (n *PushoverNotifier) LastError() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastError
}

// claim atomically checks the cooldown window for a key and, when clear,
// records the send time. Claiming before the HTTP call keeps concurrent
// effects for the same key from double-sending.
func (n *PushoverNotifier) claim(alertKey string, now time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cooldown > 0 {
		if last, ok := n.lastSent[alertKey]; ok && now.Sub(last) < n.cooldown {
			return false
		}
	}
	n.lastSent[alertKey] = now
	n.lastError = nil
	return true
}

// send performs the HTTP form post to Pushover.
func (n *PushoverNotifier) send(ctx context.Context, title, message string) error {
	form := url.Values{}
	form.Set("token", n.token)
	form.Set("user", n.userKey)
	form.Set("message", message)
	if title = strings.TrimSpace(title); title != "" {
		form.Set("title", title)
	}
	if n.priority != 0 {
		form.Set("priority", fmt.Sprintf("%d", n.priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pushover request build failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pushover response read failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("pushover response %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
