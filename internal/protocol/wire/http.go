package wire

import "time"

// PairInitiateRequest starts a pairing attempt.
type PairInitiateRequest struct {
	// DeviceID is the watch's stable device identifier.
	DeviceID string `json:"deviceId"`
	// PublicKey is the watch's base64 NaCl box public key for this
	// attempt. The host seals the channel secret to it.
	PublicKey string `json:"publicKey"`
}

// PairInitiateResponse carries the short code the user types on the host.
type PairInitiateResponse struct {
	// Code is the human-entered pairing code.
	Code string `json:"code"`
	// WatchToken authorizes status polling and, in cloud mode, relay
	// access after pairing completes.
	WatchToken string `json:"watchToken"`
	// ExpiresAt is when the code stops being accepted.
	ExpiresAt time.Time `json:"expiresAt"`
}

// PairStatusResponse reports the state of a pairing attempt.
type PairStatusResponse struct {
	// Paired is true once the host has confirmed the code.
	Paired bool `json:"paired"`
	// PairingID identifies the established binding. Set when paired.
	PairingID string `json:"pairingId,omitempty"`
	// Expired is true when the code's window has lapsed.
	Expired bool `json:"expired,omitempty"`
	// Response is the base64 box-encrypted channel secret. Set when
	// paired.
	Response string `json:"response,omitempty"`
}

// EncryptedRecord is one secretbox-encrypted update fetched from the relay.
type EncryptedRecord struct {
	// C is the base64 ciphertext.
	C string `json:"c"`
}

// UpdatesResponse is the relay's reply to an updates poll.
type UpdatesResponse struct {
	// Updates are the records published since the request's cursor.
	Updates []EncryptedRecord `json:"updates"`
	// Cursor is the position to resume from on the next poll.
	Cursor int64 `json:"cursor"`
}

// OutboundRequest wraps one secretbox-encrypted watch-to-host frame for
// the relay.
type OutboundRequest struct {
	// C is the base64 ciphertext.
	C string `json:"c"`
}

// ErrorResponse is the error body returned by the pairing and relay
// endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
