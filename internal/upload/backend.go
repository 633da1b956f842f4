// Package upload implements SPEC_FULL.md §4.F: the pluggable upload
// backend. The real backend submits bytes+tags to the archive over HTTP; a
// mainnet/testnet switch selects the target endpoint. It does not sign the
// payload itself: callers sign before uploading and pass the signature in
// the Signature tag.
package upload

import "context"

// Backend uploads signed, tagged bytes to the archive and returns the
// resulting transaction id. Implementations are stateless beyond
// credentials/endpoint configuration.
type Backend interface {
	Upload(ctx context.Context, data []byte, tags map[string]string) (txID string, err error)
}
