package archive

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// ChunkHit is an accepted conversation-chunk transaction after strict
// filtering (SPEC_FULL.md §4.E, §4.H).
type ChunkHit struct {
	TxID       string
	Client     string
	Project    string
	Session    string
	Offset     int
	Count      int
	ChunkIndex int
	ChunkTotal int
	Timestamp  int64
	Signature  string
}

// QueryConversationChunks queries conversation chunks tagged for wallet,
// applies strict acceptance, and sorts by (session, offset, chunkIndex,
// timestamp).
func (c *Client) QueryConversationChunks(ctx context.Context, wallet string) ([]ChunkHit, error) {
	txs, err := c.queryByTags(ctx, []Tag{
		{Name: "App-Name", Value: appName},
		{Name: "Wallet", Value: wallet},
		{Name: "Type", Value: "conversation"},
	})
	if err != nil {
		return nil, err
	}

	var hits []ChunkHit
	for _, tx := range txs {
		client := tx.Tags["Client"]
		if client != "cursor" && client != "claude-code" {
			continue
		}
		project, session := tx.Tags["Project"], tx.Tags["Session"]
		if project == "" || session == "" {
			continue
		}
		if tx.Tags["Signature"] == "" {
			continue
		}
		idx, total, ok := parseChunkTag(tx.Tags["Chunk"])
		if !ok || idx < 1 || total < 1 || idx > total {
			continue
		}
		offset, err := strconv.Atoi(tx.Tags["Offset"])
		if err != nil || offset < 0 {
			continue
		}
		count, err := strconv.Atoi(tx.Tags["Count"])
		if err != nil || count < 0 {
			continue
		}
		ts, _ := strconv.ParseInt(tx.Tags["Timestamp"], 10, 64)

		hits = append(hits, ChunkHit{
			TxID: tx.ID, Client: client, Project: project, Session: session,
			Offset: offset, Count: count, ChunkIndex: idx, ChunkTotal: total,
			Timestamp: ts, Signature: tx.Tags["Signature"],
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Session != b.Session {
			return a.Session < b.Session
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		if a.ChunkIndex != b.ChunkIndex {
			return a.ChunkIndex < b.ChunkIndex
		}
		return a.Timestamp < b.Timestamp
	})
	return hits, nil
}

func parseChunkTag(v string) (idx, total int, ok bool) {
	parts := strings.SplitN(v, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	i, err1 := strconv.Atoi(parts[0])
	t, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return i, t, true
}

// ShareHit is the most recent conversation-share transaction for a share id.
type ShareHit struct {
	TxID      string
	Wallet    string
	Signature string
}

// QueryShare resolves the newest conversation-share transaction tagged
// shareID, or ok=false if none exists.
func (c *Client) QueryShare(ctx context.Context, shareID string) (ShareHit, bool, error) {
	txs, err := c.queryByTags(ctx, []Tag{
		{Name: "App-Name", Value: appName},
		{Name: "Type", Value: "conversation-share"},
		{Name: "Share-Id", Value: shareID},
	})
	if err != nil {
		return ShareHit{}, false, err
	}
	if len(txs) == 0 {
		return ShareHit{}, false, nil
	}
	sort.SliceStable(txs, func(i, j int) bool {
		ti, _ := strconv.ParseInt(txs[i].Tags["Timestamp"], 10, 64)
		tj, _ := strconv.ParseInt(txs[j].Tags["Timestamp"], 10, 64)
		return ti > tj
	})
	newest := txs[0]
	return ShareHit{TxID: newest.ID, Wallet: newest.Tags["Wallet"], Signature: newest.Tags["Signature"]}, true, nil
}
