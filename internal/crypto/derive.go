package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
)

// Key derivation uses an HMAC-SHA512 tree so the single 32-byte channel
// secret established at pairing can fan out into independent keys. Both ends
// of the channel derive the same tree.

// deriveUsage namespaces the tree for this application.
const deriveUsage = "Claude Watch"

// DeriveKey derives a 32-byte key from master using a usage string and a
// path of child indexes.
func DeriveKey(master []byte, usage string, path []string) ([]byte, error) {
	key, chain, err := deriveSecretKeyTreeRoot(master, usage)
	if err != nil {
		return nil, err
	}
	for _, index := range path {
		key, chain, err = deriveSecretKeyTreeChild(chain, index)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

// DerivePayloadKey derives the secretbox key used for relay payloads.
func DerivePayloadKey(channelSecret []byte) (*[32]byte, error) {
	seed, err := DeriveKey(channelSecret, deriveUsage, []string{"payload"})
	if err != nil {
		return nil, err
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("invalid payload key length: %d", len(seed))
	}
	var key [32]byte
	copy(key[:], seed)
	return &key, nil
}

// DeriveTokenSeed derives the Ed25519 seed for device token signing.
func DeriveTokenSeed(channelSecret []byte) ([]byte, error) {
	seed, err := DeriveKey(channelSecret, deriveUsage, []string{"token"})
	if err != nil {
		return nil, err
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("invalid token seed length: %d", len(seed))
	}
	return seed, nil
}

func deriveSecretKeyTreeRoot(seed []byte, usage string) ([]byte, []byte, error) {
	h := hmac.New(sha512.New, []byte(usage+" Master Seed"))
	if _, err := h.Write(seed); err != nil {
		return nil, nil, err
	}
	sum := h.Sum(nil)
	return sum[:32], sum[32:], nil
}

func deriveSecretKeyTreeChild(chainCode []byte, index string) ([]byte, []byte, error) {
	data := append([]byte{0x00}, []byte(index)...)
	h := hmac.New(sha512.New, chainCode)
	if _, err := h.Write(data); err != nil {
		return nil, nil, err
	}
	sum := h.Sum(nil)
	return sum[:32], sum[32:], nil
}
