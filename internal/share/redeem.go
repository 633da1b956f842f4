package share

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sharme-dev/sharme/internal/archive"
	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/sharmeerrors"
	"github.com/sharme-dev/sharme/internal/store"
)

// ShareDownloadCapBytes is the share download cap from SPEC_FULL.md §6.
const ShareDownloadCapBytes = 2 * 1024 * 1024

// Redeemer redeems share tokens against the archive and the local store.
type Redeemer struct {
	Archive *archive.Client
	Store   *store.Store
}

// ParseShareURL extracts the base64url token from a sharme://share/<token>
// URL (path form) or an https://... ?token=<token> gateway link (query
// form), per SPEC_FULL.md §4.I.
func ParseShareURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", sharmeerrors.Wrap(sharmeerrors.InvalidToken, "parse share url", err)
	}
	if u.Scheme == "sharme" && u.Host == "share" && u.Path != "" {
		return strings.TrimPrefix(u.Path, "/"), nil
	}
	if t := u.Query().Get("token"); t != "" {
		return t, nil
	}
	return "", sharmeerrors.New(sharmeerrors.InvalidToken, "no token found in url")
}

// DecodeToken base64url-decodes and JSON-decodes a share token, validating
// its shape and that k decodes to exactly 32 bytes.
func DecodeToken(raw string) (Token, []byte, error) {
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return Token{}, nil, sharmeerrors.Wrap(sharmeerrors.InvalidToken, "base64 decode", err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, nil, sharmeerrors.Wrap(sharmeerrors.InvalidToken, "json decode", err)
	}
	if tok.V != 1 || tok.SID == "" || tok.K == "" {
		return Token{}, nil, sharmeerrors.New(sharmeerrors.InvalidToken, "missing required fields")
	}
	key, err := base64.URLEncoding.DecodeString(tok.K)
	if err != nil || len(key) != 32 {
		return Token{}, nil, sharmeerrors.New(sharmeerrors.InvalidToken, "share key must decode to 32 bytes")
	}
	return tok, key, nil
}

// Redeem redeems the sharme:// (or gateway https://) URL raw: it parses and
// decodes the token, resolves and downloads the share payload (trying a
// direct transaction id first, falling back to a Share-Id query), verifies
// the signature when the query path supplied one, decrypts, validates the
// payload shape, and records the import. Redeeming the same share id twice
// is a no-op. This is a single-object critical path: it fails loudly.
func (r *Redeemer) Redeem(ctx context.Context, rawURL string) (*Payload, error) {
	tokenStr, err := ParseShareURL(rawURL)
	if err != nil {
		return nil, err
	}
	tok, shareKey, err := DecodeToken(tokenStr)
	if err != nil {
		return nil, err
	}

	already, err := r.Store.HasSharedConversationImport(tok.SID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, sharmeerrors.New(sharmeerrors.DuplicateImport, "already imported")
	}

	envelope, verified, err := r.resolveAndDownload(ctx, tok, shareKey)
	if err != nil {
		return nil, err
	}
	_ = verified // wallet verification, when available, already happened in resolveAndDownload

	plaintext, err := cryptoutil.Decrypt(envelope, shareKey)
	if err != nil {
		return nil, sharmeerrors.Wrap(sharmeerrors.DecryptFailed, "decrypt share payload", err)
	}
	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, sharmeerrors.Wrap(sharmeerrors.InvalidToken, "malformed share payload", err)
	}
	if payload.V != 1 || payload.Conversation.ID == "" {
		return nil, sharmeerrors.New(sharmeerrors.InvalidToken, "invalid share payload shape")
	}

	if err := r.Store.SaveSharedConversationImport(store.SharedConversationImport{
		ShareID:        tok.SID,
		ConversationID: payload.Conversation.ID,
		RawPayload:     string(plaintext),
	}); err != nil {
		return nil, err
	}
	return &payload, nil
}

// resolveAndDownload tries tok.TxID directly first (when present), falling
// back to a Share-Id query. When the query path resolves signature+wallet
// tags, it verifies before returning; a direct-by-txid hit with only t
// present is accepted without wallet verification, since possession of the
// share key is itself proof of authorization.
func (r *Redeemer) resolveAndDownload(ctx context.Context, tok Token, shareKey []byte) ([]byte, bool, error) {
	if tok.TxID != "" {
		data, err := r.Archive.Download(ctx, tok.TxID, ShareDownloadCapBytes)
		if err == nil {
			return data, false, nil
		}
	}

	hit, ok, err := r.Archive.QueryShare(ctx, tok.SID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, sharmeerrors.New(sharmeerrors.InvalidToken, "share id not found")
	}
	data, err := r.Archive.Download(ctx, hit.TxID, ShareDownloadCapBytes)
	if err != nil {
		return nil, false, sharmeerrors.Wrap(sharmeerrors.NetworkUnavailable, "download share payload", err)
	}
	if hit.Signature != "" && hit.Wallet != "" {
		if !cryptoutil.Verify(data, hit.Signature, hit.Wallet) {
			return nil, false, sharmeerrors.New(sharmeerrors.SignatureInvalid, fmt.Sprintf("share %s signature mismatch", tok.SID))
		}
		return data, true, nil
	}
	return data, false, nil
}
