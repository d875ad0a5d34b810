package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/fotescodev/claude-watch/cli/internal/config"
	"github.com/fotescodev/claude-watch/cli/internal/pairing"
	"github.com/fotescodev/claude-watch/cli/internal/session"
	"github.com/fotescodev/claude-watch/cli/internal/storage"
	"github.com/fotescodev/claude-watch/cli/internal/version"
	"github.com/fotescodev/claude-watch/cli/pkg/logger"
	"github.com/fotescodev/claude-watch/cli/pkg/types"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := configureLogging(cfg); err != nil {
		return err
	}

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "pair":
		return pairCommand(cfg, args[1:])
	case "run":
		return runCommand(cfg)
	case "status":
		return statusCommand(cfg)
	case "unpair":
		return unpairCommand(cfg)
	case "version", "--version", "-v":
		fmt.Printf("claude-watch %s\n", version.RichVersion())
		return nil
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func configureLogging(cfg *config.Config) error {
	if cfg.LogLevel != "" {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid CLAUDE_WATCH_LOG_LEVEL: %w", err)
		}
		logger.SetLevel(level)
		return nil
	}
	if cfg.Debug {
		logger.SetLevel(logger.LevelDebug)
	}
	return nil
}

// pairCommand runs the pairing handshake: show a code (and QR), wait for
// the host to confirm it, persist the binding.
func pairCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("pair", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	mode := fs.String("mode", cfg.Mode, "Transport to pair for (local|cloud)")
	server := fs.String("server", "", "Override the pairing server URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mode != config.ModeLocal && *mode != config.ModeCloud {
		return fmt.Errorf("invalid --mode %q (expected local or cloud)", *mode)
	}

	baseURL := *server
	if baseURL == "" {
		if *mode == config.ModeCloud {
			baseURL = cfg.RelayURL
		} else {
			baseURL = cfg.ServerURL
		}
	}

	deviceID, err := storage.GetOrCreateDeviceID(cfg.DeviceFile)
	if err != nil {
		return fmt.Errorf("load device id: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := pairing.NewCoordinator(baseURL, deviceID, cfg.PairingFile, cfg.SecretFile)
	attempt, err := coordinator.Initiate(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Scan this QR code from the claude-watch companion on your host:")
	printQRCode(fmt.Sprintf("claude-watch://pair?code=%s", attempt.Code))
	fmt.Printf("Or enter the code manually: %s\n", attempt.Code)
	if remaining := attempt.Remaining(time.Now()); remaining > 0 {
		fmt.Printf("The code expires in %s.\n", remaining.Round(time.Second))
	}
	fmt.Println("\nWaiting for the host to confirm...")

	result, err := coordinator.WaitForPaired(ctx, attempt)
	switch {
	case errors.Is(err, pairing.ErrPairingExpired):
		return fmt.Errorf("the pairing code expired before the host confirmed it; run \"claude-watch pair\" again")
	case errors.Is(err, context.Canceled):
		fmt.Println("Pairing canceled.")
		return nil
	case err != nil:
		return err
	}

	if err := coordinator.Finish(result, *mode, baseURL); err != nil {
		return err
	}
	fmt.Printf("Paired to %s (%s mode).\n", baseURL, *mode)
	return nil
}

// runCommand connects the paired watch and keeps the session client running
// until interrupted.
func runCommand(cfg *config.Config) error {
	mgr, err := session.NewManager(cfg, session.WithSessionListener(logSessionActivity))
	if errors.Is(err, session.ErrNotPaired) {
		return fmt.Errorf("not paired; run \"claude-watch pair\" first")
	}
	if err != nil {
		return err
	}
	defer mgr.Close()

	fmt.Printf("claude-watch %s\n", version.Version())
	fmt.Printf("Pairing: %s (%s mode)\n", mgr.Pairing().PairingID, mgr.Pairing().Mode)
	fmt.Printf("Device:  %s\n", mgr.DeviceID())
	fmt.Println("Press Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr.Start()
	<-ctx.Done()

	fmt.Println("\nShutting down.")
	return nil
}

// logSessionActivity surfaces noteworthy session changes in the run log.
// It runs on the store loop, so it only formats and logs.
func logSessionActivity(prev, next types.SessionState) {
	if len(next.PendingActions) > len(prev.PendingActions) {
		newest := next.PendingActions[len(next.PendingActions)-1]
		logger.Infof("approval needed (%d pending): %s", len(next.PendingActions), newest.Title)
	}
	if next.PendingQuestion != nil && (prev.PendingQuestion == nil || prev.PendingQuestion.ID != next.PendingQuestion.ID) {
		logger.Infof("question from host: %s", next.PendingQuestion.Text)
	}
	if next.Status != prev.Status {
		logger.Infof("session status: %s", next.Status)
	}
}

// statusCommand prints the persisted binding and probes the server.
func statusCommand(cfg *config.Config) error {
	info, ok, err := storage.LoadPairingInfo(cfg.PairingFile)
	if err != nil {
		return fmt.Errorf("read pairing: %w", err)
	}
	if !ok {
		fmt.Println("Not paired. Run \"claude-watch pair\" to pair with a host.")
		return nil
	}

	server := info.ServerURL
	if server == "" {
		server = cfg.BaseURL()
	}

	fmt.Printf("Pairing ID: %s\n", info.PairingID)
	fmt.Printf("Mode:       %s\n", info.Mode)
	fmt.Printf("Server:     %s\n", server)
	if info.PairedAtMs > 0 {
		fmt.Printf("Paired at:  %s\n", time.UnixMilli(info.PairedAtMs).Format(time.RFC1123))
	}
	if deviceID, err := storage.GetOrCreateDeviceID(cfg.DeviceFile); err == nil {
		fmt.Printf("Device ID:  %s\n", deviceID)
	}
	fmt.Printf("Health:     %s\n", probeServer(server))
	return nil
}

// probeServer reports best-effort reachability of the pairing/update server.
func probeServer(base string) string {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/health")
	if err != nil {
		return fmt.Sprintf("unreachable (%v)", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Sprintf("degraded (HTTP %d)", resp.StatusCode)
	}
	return "reachable"
}

// unpairCommand removes the binding and the channel secret. The device id
// survives so re-pairing replaces the host-side binding instead of
// accumulating stale ones.
func unpairCommand(cfg *config.Config) error {
	if err := storage.ClearPairingInfo(cfg.PairingFile); err != nil {
		return fmt.Errorf("clear pairing: %w", err)
	}
	if err := storage.ClearSecretKey(cfg.SecretFile); err != nil {
		return fmt.Errorf("clear channel secret: %w", err)
	}
	fmt.Println("Unpaired. Pairing binding and channel secret removed.")
	return nil
}

// printQRCode prints a QR code to the terminal.
func printQRCode(data string) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		logger.Warnf("Failed to generate QR code: %v", err)
		fmt.Printf("Pairing URL: %s\n", data)
		return
	}
	fmt.Println(qr.ToSmallString(false))
}

func printUsage() {
	fmt.Println(`claude-watch - wrist-worn remote control client for a coding agent host

Usage:
  claude-watch pair      Pair this watch with a host (QR code + manual code)
  claude-watch run       Connect and run the session client
  claude-watch status    Show the persisted pairing and server reachability
  claude-watch unpair    Remove the pairing binding and channel secret
  claude-watch version   Show version information
  claude-watch help      Show this help message

Environment Variables:
  CLAUDE_WATCH_SERVER_URL   Local bridge URL (default: http://localhost:8788)
  CLAUDE_WATCH_RELAY_URL    Cloud relay URL
  CLAUDE_WATCH_MODE         Transport mode (local|cloud, default: local)
  CLAUDE_WATCH_HOME_DIR     State directory (default: ~/.claude-watch)
  CLAUDE_WATCH_LOG_LEVEL    Log level (trace|debug|info|warn|error)
  CLAUDE_WATCH_PUSHOVER_TOKEN
  CLAUDE_WATCH_PUSHOVER_USER_KEY
  CLAUDE_WATCH_PUSHOVER_PRIORITY
  CLAUDE_WATCH_PUSHOVER_COOLDOWN
  CLAUDE_WATCH_PUSHOVER_NOTIFY_ATTENTION
                            Optional Pushover attention alerts
  DEBUG                     Enable debug logging (true/1)

Pair Flags:
  --mode     Transport to pair for (local|cloud)
  --server   Override the pairing server URL

Examples:
  # Pair against a local bridge
  claude-watch pair

  # Pair through the cloud relay
  claude-watch pair --mode cloud

  # Run the client after pairing
  claude-watch run`)
}
