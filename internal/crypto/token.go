package crypto

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeviceClaims represents the device JWT payload presented during the
// streaming handshake.
type DeviceClaims struct {
	DeviceID  string `json:"device"`
	PairingID string `json:"pairing"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies device tokens. Both the watch and the host
// derive the same Ed25519 key from the channel secret, so tokens minted here
// verify on the host without any extra key exchange.
type TokenManager struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewTokenManager creates a token manager from the pairing channel secret.
func NewTokenManager(channelSecret []byte) (*TokenManager, error) {
	seed, err := DeriveTokenSeed(channelSecret)
	if err != nil {
		return nil, err
	}
	privateKey := ed25519.NewKeyFromSeed(seed)
	publicKey := privateKey.Public().(ed25519.PublicKey)

	return &TokenManager{
		privateKey: privateKey,
		publicKey:  publicKey,
	}, nil
}

// MintDeviceToken creates a short-lived device token.
func (m *TokenManager) MintDeviceToken(deviceID, pairingID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := DeviceClaims{
		DeviceID:  deviceID,
		PairingID: pairingID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "claude-watch",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(m.privateKey)
}

// VerifyDeviceToken verifies and parses a device token.
func (m *TokenManager) VerifyDeviceToken(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*DeviceClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
