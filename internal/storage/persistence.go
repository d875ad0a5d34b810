package storage

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// SaveSecretKey saves a 32-byte secret key to a file.
func SaveSecretKey(path string, key []byte) error {
	// Encode as base64 for readability
	encoded := base64.StdEncoding.EncodeToString(key)

	// Write with restrictive permissions
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	return nil
}

// LoadSecretKey loads a secret key from a file.
func LoadSecretKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	// Decode from base64
	key, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}

	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length: %d (expected 32)", len(key))
	}

	return key, nil
}

// ClearSecretKey removes the persisted secret key (unpair).
//
// Clearing an absent key is not an error.
func ClearSecretKey(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GenerateDeviceID generates a new UUID-based watch device ID.
func GenerateDeviceID() (string, error) {
	// Generate 16 random bytes for UUID v4
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate device ID: %w", err)
	}

	// Set version (4) and variant bits
	b[6] = (b[6] & 0x0f) | 0x40 // Version 4
	b[8] = (b[8] & 0x3f) | 0x80 // Variant 10

	// Format as UUID string
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}

// GetOrCreateDeviceID loads or generates a stable watch device ID.
//
// The id survives re-pairing so the host can replace a stale binding for the
// same physical device instead of accumulating them.
func GetOrCreateDeviceID(path string) (string, error) {
	// Try to load existing ID
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}

	// Generate new ID
	id, err := GenerateDeviceID()
	if err != nil {
		return "", err
	}

	// Save it with restrictive permissions
	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		return "", fmt.Errorf("failed to save device ID: %w", err)
	}

	return id, nil
}
