// Package archive implements SPEC_FULL.md §4.E: paginated tagged queries
// against the archive's GraphQL index, multi-gateway failover, and
// size-capped downloads. No GraphQL client library was found anywhere in
// the example pack this project draws on, so queries are issued as plain
// HTTP POST + encoding/json, matching the pack's general preference for
// net/http over third-party HTTP clients (see DESIGN.md).
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sharme-dev/sharme/internal/sharmeerrors"
	"github.com/sharme-dev/sharme/pkg/logging"
)

// Client queries and downloads from the archive, failing over across a
// configured ordered list of endpoints for each concern.
type Client struct {
	gqlEndpoints  []string
	dataEndpoints []string
	http          *http.Client
}

// New builds a Client. gqlEndpoints and dataEndpoints fail over
// independently: a GQL failure at index i does not imply the data endpoint
// at index i is unhealthy.
func New(gqlEndpoints, dataEndpoints []string, timeout time.Duration) *Client {
	return &Client{
		gqlEndpoints:  gqlEndpoints,
		dataEndpoints: dataEndpoints,
		http:          &http.Client{Timeout: timeout},
	}
}

// gqlRequest is the envelope every GraphQL POST sends.
type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// postGQL tries each configured GQL endpoint in order, returning the first
// successful response body. Failures (network, non-2xx, GraphQL "errors"
// field) fall through to the next endpoint; only exhaustion surfaces a
// GatewayError with an aggregated reason.
func (c *Client) postGQL(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	if len(c.gqlEndpoints) == 0 {
		return nil, sharmeerrors.New(sharmeerrors.GatewayError, "no gql endpoints configured")
	}
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, err
	}

	var reasons []string
	for _, endpoint := range c.gqlEndpoints {
		data, err := c.tryPostGQL(ctx, endpoint, body)
		if err == nil {
			return data, nil
		}
		reasons = append(reasons, fmt.Sprintf("%s: %v", endpoint, err))
		logging.Sugar().Warnw("gql endpoint failed, trying next", "endpoint", endpoint, "error", err)
	}
	return nil, sharmeerrors.New(sharmeerrors.GatewayError, "all gql endpoints exhausted: "+strings.Join(reasons, "; "))
}

func (c *Client) tryPostGQL(ctx context.Context, endpoint string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", out.Errors[0].Message)
	}
	return out.Data, nil
}
