package crypto

import (
	"testing"
	"time"
)

func testChannelSecret(seed byte) []byte {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i) + seed
	}
	return secret
}

// TestDeviceTokenRoundtrip mints a token and verifies it with the same
// derived key.
func TestDeviceTokenRoundtrip(t *testing.T) {
	manager, err := NewTokenManager(testChannelSecret(0))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	token, err := manager.MintDeviceToken("device-1", "pairing-1", time.Minute)
	if err != nil {
		t.Fatalf("MintDeviceToken failed: %v", err)
	}

	claims, err := manager.VerifyDeviceToken(token)
	if err != nil {
		t.Fatalf("VerifyDeviceToken failed: %v", err)
	}
	if claims.DeviceID != "device-1" {
		t.Errorf("device claim mismatch: got %q", claims.DeviceID)
	}
	if claims.PairingID != "pairing-1" {
		t.Errorf("pairing claim mismatch: got %q", claims.PairingID)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) <= 0 {
		t.Errorf("expected a future expiry, got %v", claims.ExpiresAt)
	}
}

// TestDeviceTokenWrongSecret verifies tokens from a different channel secret
// are rejected.
func TestDeviceTokenWrongSecret(t *testing.T) {
	mintManager, err := NewTokenManager(testChannelSecret(0))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	verifyManager, err := NewTokenManager(testChannelSecret(1))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	token, err := mintManager.MintDeviceToken("device-1", "pairing-1", time.Minute)
	if err != nil {
		t.Fatalf("MintDeviceToken failed: %v", err)
	}

	if _, err := verifyManager.VerifyDeviceToken(token); err == nil {
		t.Error("VerifyDeviceToken should have failed across secrets")
	}
}

// TestDeviceTokenExpired verifies expired tokens are rejected.
func TestDeviceTokenExpired(t *testing.T) {
	manager, err := NewTokenManager(testChannelSecret(0))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	token, err := manager.MintDeviceToken("device-1", "pairing-1", -time.Minute)
	if err != nil {
		t.Fatalf("MintDeviceToken failed: %v", err)
	}

	if _, err := manager.VerifyDeviceToken(token); err == nil {
		t.Error("VerifyDeviceToken should have failed for an expired token")
	}
}
