// Package share implements SPEC_FULL.md §4.I: one-shot encrypted share
// payload issuance and out-of-band token redemption.
package share

import "github.com/sharme-dev/sharme/internal/syncengine"

// Payload is the plaintext JSON encrypted under a share's one-time key.
type Payload struct {
	V            int                     `json:"v"`
	CreatedAt    string                  `json:"createdAt"`
	Conversation syncengine.Conversation `json:"conversation"`
}

// Token is the JSON shape of a share URL's decoded payload
// (SPEC_FULL.md §6).
type Token struct {
	V    int    `json:"v"`
	SID  string `json:"sid"`
	K    string `json:"k"` // base64url(32-byte share key)
	TxID string `json:"t,omitempty"`
}
