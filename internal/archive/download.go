package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sharme-dev/sharme/internal/sharmeerrors"
)

// Download fetches the transaction data for txID, enforcing maxBytes twice:
// first against the Content-Length response header (rejecting before
// reading the body), then against the actual bytes received. Tries each
// configured data endpoint in order.
func (c *Client) Download(ctx context.Context, txID string, maxBytes int64) ([]byte, error) {
	if len(c.dataEndpoints) == 0 {
		return nil, sharmeerrors.New(sharmeerrors.GatewayError, "no data endpoints configured")
	}

	var reasons []string
	for _, endpoint := range c.dataEndpoints {
		data, err := c.tryDownload(ctx, endpoint, txID, maxBytes)
		if err == nil {
			return data, nil
		}
		if se, ok := err.(*sharmeerrors.Error); ok && se.Kind == sharmeerrors.BlobTooLarge {
			return nil, err // oversized is a definitive rejection, not a gateway fault
		}
		reasons = append(reasons, fmt.Sprintf("%s: %v", endpoint, err))
	}
	return nil, sharmeerrors.New(sharmeerrors.GatewayError, "all data endpoints exhausted: "+strings.Join(reasons, "; "))
}

func (c *Client) tryDownload(ctx context.Context, endpoint, txID string, maxBytes int64) ([]byte, error) {
	url := strings.TrimRight(endpoint, "/") + "/" + txID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > maxBytes {
			return nil, sharmeerrors.New(sharmeerrors.BlobTooLarge, fmt.Sprintf("content-length %d exceeds cap %d", n, maxBytes))
		}
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, sharmeerrors.New(sharmeerrors.BlobTooLarge, fmt.Sprintf("received bytes exceed cap %d", maxBytes))
	}
	return data, nil
}
