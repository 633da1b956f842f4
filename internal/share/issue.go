package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/syncengine"
	"github.com/sharme-dev/sharme/internal/upload"
)

// Issuer issues share links for conversations under a device identity.
type Issuer struct {
	Upload  upload.Backend
	ID      syncengine.Identity
}

// Issue builds, encrypts, signs, and uploads a one-shot share payload for
// conversation, and returns the redeemable token and its sharme:// URL
// form, per SPEC_FULL.md §4.I.
func (iss *Issuer) Issue(ctx context.Context, conversation syncengine.Conversation) (Token, string, error) {
	shareID := uuid.New().String()
	shareKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, shareKey); err != nil {
		return Token{}, "", err
	}

	payload := Payload{V: 1, CreatedAt: time.Now().UTC().Format(time.RFC3339), Conversation: conversation}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return Token{}, "", err
	}
	envelope, err := cryptoutil.Encrypt(plaintext, shareKey)
	if err != nil {
		return Token{}, "", err
	}
	sig, err := cryptoutil.Sign(envelope, iss.ID.PrivateKey)
	if err != nil {
		return Token{}, "", err
	}

	tags := map[string]string{
		"App-Name":     "sharme",
		"Type":         "conversation-share",
		"Share-Id":     shareID,
		"Wallet":       iss.ID.Address,
		"Timestamp":    strconv.FormatInt(time.Now().Unix(), 10),
		"Signature":    sig,
		"Content-Type": "application/octet-stream",
	}
	txID, err := iss.Upload.Upload(ctx, envelope, tags)
	if err != nil {
		return Token{}, "", err
	}

	token := Token{V: 1, SID: shareID, K: base64.URLEncoding.EncodeToString(shareKey), TxID: txID}
	raw, err := json.Marshal(token)
	if err != nil {
		return Token{}, "", err
	}
	url := fmt.Sprintf("sharme://share/%s", base64.URLEncoding.EncodeToString(raw))
	return token, url, nil
}
