package archive

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/sharme-dev/sharme/internal/sharmeerrors"
)

const (
	// MaxPages and maxItemsPerPage bound the cursor-paginated query loop
	// (SPEC_FULL.md §4.E): exceeding either is fatal, preventing runaway
	// loops under adversarial gateways. maxItemsPerPage is also the page
	// size requested from the gateway.
	MaxPages         = 1000
	maxItemsPerPage  = 1000
	appName          = "sharme"
)

// Tag is one archive transaction tag.
type Tag struct {
	Name  string
	Value string
}

// Transaction is a raw query hit before strict-acceptance filtering.
type Transaction struct {
	ID          string
	Tags        map[string]string
	BlockHeight int64
}

type gqlTxNode struct {
	ID   string `json:"id"`
	Tags []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"tags"`
	Block *struct {
		Height int64 `json:"height"`
	} `json:"block"`
}

type gqlEdge struct {
	Cursor string    `json:"cursor"`
	Node   gqlTxNode `json:"node"`
}

type gqlTransactionsResult struct {
	Transactions struct {
		Edges    []gqlEdge `json:"edges"`
		PageInfo struct {
			HasNextPage bool `json:"hasNextPage"`
		} `json:"pageInfo"`
	} `json:"transactions"`
}

const transactionsQuery = `
query($tags: [TagFilter!], $after: String, $first: Int) {
  transactions(tags: $tags, after: $after, first: $first, sort: HEIGHT_ASC) {
    pageInfo { hasNextPage }
    edges {
      cursor
      node {
        id
        block { height }
        tags { name value }
      }
    }
  }
}`

// queryByTags issues paginated tagged queries against the archive,
// returning every matching transaction, deduplicated by transaction id.
// Exceeding MaxPages, or receiving more than maxItemsPerPage transactions
// in one page, is a fatal error.
func (c *Client) queryByTags(ctx context.Context, tags []Tag) ([]Transaction, error) {
	gqlTags := make([]map[string]string, 0, len(tags))
	for _, t := range tags {
		gqlTags = append(gqlTags, map[string]string{"name": t.Name, "values": t.Value})
	}

	seen := make(map[string]bool)
	var out []Transaction
	var after *string

	for page := 0; ; page++ {
		if page >= MaxPages {
			return nil, sharmeerrors.New(sharmeerrors.PaginationBlown, "exceeded max page count")
		}
		vars := map[string]any{"tags": gqlTags, "first": maxItemsPerPage}
		if after != nil {
			vars["after"] = *after
		}
		raw, err := c.postGQL(ctx, transactionsQuery, vars)
		if err != nil {
			return nil, err
		}
		var result gqlTransactionsResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, sharmeerrors.Wrap(sharmeerrors.GatewayError, "decode transactions page", err)
		}
		if len(result.Transactions.Edges) > maxItemsPerPage {
			return nil, sharmeerrors.New(sharmeerrors.PaginationBlown, "exceeded max items per page")
		}

		for _, edge := range result.Transactions.Edges {
			if seen[edge.Node.ID] {
				continue
			}
			seen[edge.Node.ID] = true
			tx := Transaction{ID: edge.Node.ID, Tags: make(map[string]string, len(edge.Node.Tags))}
			for _, t := range edge.Node.Tags {
				tx.Tags[t.Name] = t.Value
			}
			if edge.Node.Block != nil {
				tx.BlockHeight = edge.Node.Block.Height
			}
			out = append(out, tx)
		}

		if !result.Transactions.PageInfo.HasNextPage || len(result.Transactions.Edges) == 0 {
			break
		}
		last := result.Transactions.Edges[len(result.Transactions.Edges)-1].Cursor
		after = &last
	}
	return out, nil
}

// ShardHit is an accepted shard transaction after strict filtering,
// ready for download in ascending-version replay order.
type ShardHit struct {
	TxID      string
	Type      string
	Wallet    string
	Version   int
	Salt      string
	Signature string
}

// QueryShards queries delta/snapshot/identity shards tagged for wallet,
// applies the strict acceptance rules of SPEC_FULL.md §4.E, and returns
// hits sorted by Version ascending (stable) — the canonical replay order.
func (c *Client) QueryShards(ctx context.Context, wallet string) ([]ShardHit, error) {
	txs, err := c.queryByTags(ctx, []Tag{
		{Name: "App-Name", Value: appName},
		{Name: "Wallet", Value: wallet},
	})
	if err != nil {
		return nil, err
	}

	var hits []ShardHit
	for _, tx := range txs {
		typ := tx.Tags["Type"]
		if typ != "delta" && typ != "snapshot" && typ != "identity" {
			continue
		}
		if !strings.EqualFold(tx.Tags["Wallet"], wallet) {
			continue
		}
		if tx.Tags["Signature"] == "" {
			continue
		}
		hit := ShardHit{TxID: tx.ID, Type: typ, Wallet: tx.Tags["Wallet"], Salt: tx.Tags["Salt"], Signature: tx.Tags["Signature"]}
		if typ == "identity" {
			hit.Version = 0
		} else {
			v, err := strconv.Atoi(tx.Tags["Version"])
			if err != nil || v < 1 {
				continue
			}
			hit.Version = v
		}
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Version < hits[j].Version })
	return hits, nil
}
