package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// PairingInfo is the durable watch-to-host binding persisted under the
// claude-watch home directory.
//
// The channel secret is intentionally not part of this file; it lives next to
// it in its own 0600 key file (see SaveSecretKey).
type PairingInfo struct {
	// PairingID is the host-assigned binding id returned by the handshake.
	PairingID string `json:"pairingId"`
	// WatchToken is the bearer token presented on relay and status calls.
	WatchToken string `json:"watchToken"`
	// Mode is the transport the binding was created for ("local" or "cloud").
	Mode string `json:"mode"`
	// ServerURL is the base URL the binding belongs to.
	ServerURL string `json:"serverUrl"`
	// PairedAtMs is the wall-clock timestamp (ms since epoch) of the handshake.
	PairedAtMs int64 `json:"pairedAtMs,omitempty"`
	// UpdatedAtMs is the wall-clock timestamp of the most recent write.
	UpdatedAtMs int64 `json:"updatedAtMs,omitempty"`
}

// LoadPairingInfo reads the persisted pairing binding.
//
// ok is false when the watch has never paired (or was unpaired).
func LoadPairingInfo(path string) (info PairingInfo, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PairingInfo{}, false, nil
		}
		return PairingInfo{}, false, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return PairingInfo{}, false, err
	}
	return info, true, nil
}

// SavePairingInfo writes the pairing binding to disk atomically.
func SavePairingInfo(path string, info PairingInfo) error {
	if strings.TrimSpace(info.PairingID) == "" {
		return fmt.Errorf("missing pairing id")
	}

	info.UpdatedAtMs = time.Now().UnixMilli()
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// UpdatePairingInfo loads, mutates, and persists the pairing binding.
func UpdatePairingInfo(path string, update func(*PairingInfo)) error {
	info, ok, err := LoadPairingInfo(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not paired")
	}
	update(&info)
	return SavePairingInfo(path, info)
}

// ClearPairingInfo removes the persisted binding (unpair).
//
// Clearing an absent binding is not an error.
func ClearPairingInfo(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
