package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Mode values select the transport used for a session.
const (
	// ModeLocal streams updates from a bridge on the same network.
	ModeLocal = "local"
	// ModeCloud polls a relay and requires the pairing handshake.
	ModeCloud = "cloud"
)

type Config struct {
	// ServerURL is the base URL of the local bridge (streaming mode).
	ServerURL string
	// RelayURL is the base URL of the cloud relay (polling mode).
	RelayURL string
	// Mode selects the transport: "local" or "cloud".
	Mode string

	// WatchHome is the directory where claude-watch stores local state.
	WatchHome string
	// PairingFile is the path to the persisted pairing binding.
	PairingFile string
	// SecretFile is the path to the persisted channel secret.
	SecretFile string
	// DeviceFile is the path to the persisted device identifier.
	DeviceFile string

	// Debug enables verbose logging.
	Debug bool
	// LogLevel is the raw log level string ("trace".."error").
	LogLevel string

	// PushoverToken is the Pushover application token (optional).
	PushoverToken string
	// PushoverUserKey is the Pushover destination user key (optional).
	PushoverUserKey string
	// PushoverPriority is the Pushover message priority.
	PushoverPriority int
	// PushoverCooldown is the minimum interval between alerts per key.
	PushoverCooldown time.Duration
	// PushoverNotifyAttention enables alerts for new approvals and delivery
	// failures.
	PushoverNotifyAttention bool
}

// Load loads configuration from environment and defaults.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	watchHome := getenvFirst("CLAUDE_WATCH_HOME_DIR", "WATCH_HOME_DIR")
	if watchHome == "" {
		watchHome = filepath.Join(homeDir, ".claude-watch")
	}
	if err := os.MkdirAll(watchHome, 0700); err != nil {
		return nil, fmt.Errorf("failed to create claude-watch home: %w", err)
	}

	serverURL := getenvFirst("CLAUDE_WATCH_SERVER_URL", "WATCH_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8788" // Default local bridge.
	}
	relayURL := getenvFirst("CLAUDE_WATCH_RELAY_URL", "WATCH_RELAY_URL")
	if relayURL == "" {
		relayURL = "https://claude-watch.fotescodev.workers.dev"
	}

	mode := getenvFirst("CLAUDE_WATCH_MODE", "WATCH_MODE")
	if mode == "" {
		mode = ModeLocal
	}
	if mode != ModeLocal && mode != ModeCloud {
		return nil, fmt.Errorf("invalid CLAUDE_WATCH_MODE %q (expected local or cloud)", mode)
	}

	debug := os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1"
	if !debug {
		debug = getenvFirst("CLAUDE_WATCH_DEBUG", "WATCH_DEBUG") == "true" ||
			getenvFirst("CLAUDE_WATCH_DEBUG", "WATCH_DEBUG") == "1"
	}

	pushoverPriority := 0
	if raw := os.Getenv("CLAUDE_WATCH_PUSHOVER_PRIORITY"); raw != "" {
		pushoverPriority, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CLAUDE_WATCH_PUSHOVER_PRIORITY %q: %w", raw, err)
		}
	}
	pushoverCooldown := 30 * time.Second
	if raw := os.Getenv("CLAUDE_WATCH_PUSHOVER_COOLDOWN"); raw != "" {
		pushoverCooldown, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CLAUDE_WATCH_PUSHOVER_COOLDOWN %q: %w", raw, err)
		}
	}

	return &Config{
		ServerURL:               serverURL,
		RelayURL:                relayURL,
		Mode:                    mode,
		WatchHome:               watchHome,
		PairingFile:             filepath.Join(watchHome, "pairing.json"),
		SecretFile:              filepath.Join(watchHome, "channel.key"),
		DeviceFile:              filepath.Join(watchHome, "device.id"),
		Debug:                   debug,
		LogLevel:                os.Getenv("CLAUDE_WATCH_LOG_LEVEL"),
		PushoverToken:           os.Getenv("CLAUDE_WATCH_PUSHOVER_TOKEN"),
		PushoverUserKey:         os.Getenv("CLAUDE_WATCH_PUSHOVER_USER_KEY"),
		PushoverPriority:        pushoverPriority,
		PushoverCooldown:        pushoverCooldown,
		PushoverNotifyAttention: os.Getenv("CLAUDE_WATCH_PUSHOVER_NOTIFY_ATTENTION") == "true" || os.Getenv("CLAUDE_WATCH_PUSHOVER_NOTIFY_ATTENTION") == "1",
	}, nil
}

// BaseURL returns the server URL for the configured mode.
func (c *Config) BaseURL() string {
	if c.Mode == ModeCloud {
		return c.RelayURL
	}
	return c.ServerURL
}

// PushoverEnabled reports whether Pushover credentials are configured.
func (c *Config) PushoverEnabled() bool {
	return c.PushoverToken != "" && c.PushoverUserKey != ""
}

func getenvFirst(primary, fallback string) string {
	if val := os.Getenv(primary); val != "" {
		return val
	}
	return os.Getenv(fallback)
}
