package syncengine

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/sharme-dev/sharme/internal/archive"
	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/shard"
	"github.com/sharme-dev/sharme/pkg/logging"
)

// segmentKey groups chunk hits into one segment, per SPEC_FULL.md §4.H.
type segmentKey struct {
	client, session string
	offset, count   int
	timestamp       int64
}

// ReconstructedConversation is one (client, session) conversation
// assembled from pulled segments.
type ReconstructedConversation struct {
	Client   string
	Session  string
	Project  string
	Messages []Message
}

// PullConversations implements SPEC_FULL.md §4.H's pull protocol: query
// chunk metadata, group into segments, download+verify+decrypt each
// segment, then merge per (client, session) ordered by offset, dropping
// any segment whose offset overlaps an already-merged range.
func (e *Engine) PullConversations(ctx context.Context) ([]ReconstructedConversation, error) {
	hits, err := e.Archive.QueryConversationChunks(ctx, e.ID.Address)
	if err != nil {
		return nil, err
	}

	groups := map[segmentKey][]archive.ChunkHit{}
	var order []segmentKey
	for _, h := range hits {
		key := segmentKey{h.Client, h.Session, h.Offset, h.Count, h.Timestamp}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], h)
	}

	type rawSegment struct {
		key      segmentKey
		project  string
		messages []Message
	}
	var segments []rawSegment

	for _, key := range order {
		chunks := groups[key]
		sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
		if !validChunkSet(chunks) {
			continue
		}

		payload, ok := e.downloadAndVerifySegment(ctx, chunks)
		if !ok {
			continue
		}
		segments = append(segments, rawSegment{key: key, project: payload.Project, messages: payload.Messages})
	}

	// Merge per (client, session), ordered by offset ascending, dropping
	// overlaps against the earlier (lower-offset) segment.
	byConv := map[[2]string][]rawSegment{}
	var convOrder [][2]string
	for _, s := range segments {
		ck := [2]string{s.key.client, s.key.session}
		if _, ok := byConv[ck]; !ok {
			convOrder = append(convOrder, ck)
		}
		byConv[ck] = append(byConv[ck], s)
	}

	var out []ReconstructedConversation
	for _, ck := range convOrder {
		segs := byConv[ck]
		sort.SliceStable(segs, func(i, j int) bool { return segs[i].key.offset < segs[j].key.offset })

		rc := ReconstructedConversation{Client: ck[0], Session: ck[1]}
		nextOffset := 0
		for _, s := range segs {
			if s.key.offset < nextOffset {
				continue // overlaps an already-merged range: keep the earlier segment
			}
			if rc.Project == "" {
				rc.Project = s.project
			}
			rc.Messages = append(rc.Messages, s.messages...)
			nextOffset = s.key.offset + s.key.count
		}
		out = append(out, rc)
	}
	return out, nil
}

// validChunkSet requires every hit in the group to agree on ChunkTotal, and
// that every index 1..total is present exactly once.
func validChunkSet(chunks []archive.ChunkHit) bool {
	if len(chunks) == 0 {
		return false
	}
	total := chunks[0].ChunkTotal
	seen := make(map[int]bool, total)
	for _, c := range chunks {
		if c.ChunkTotal != total {
			return false
		}
		seen[c.ChunkIndex] = true
	}
	for i := 1; i <= total; i++ {
		if !seen[i] {
			return false
		}
	}
	return len(chunks) == total
}

func (e *Engine) downloadAndVerifySegment(ctx context.Context, chunks []archive.ChunkHit) (*segmentPayload, bool) {
	byteChunks := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		data, err := e.Archive.Download(ctx, c.TxID, PullDownloadCapBytes)
		if err != nil {
			logging.Sugar().Warnw("conversation pull: chunk download failed, skipping segment", "tx", c.TxID, "error", err)
			return nil, false
		}
		byteChunks = append(byteChunks, data)
	}
	envelope := shard.JoinSegment(byteChunks)

	sig := chunks[0].Signature
	if !cryptoutil.Verify(envelope, sig, e.ID.Address) {
		logging.Sugar().Warnw("conversation pull: signature invalid, skipping segment")
		return nil, false
	}
	plaintext, err := cryptoutil.Decrypt(envelope, e.AESKey)
	if err != nil {
		logging.Sugar().Warnw("conversation pull: decrypt failed, skipping segment", "error", err)
		return nil, false
	}
	var payload segmentPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		logging.Sugar().Warnw("conversation pull: malformed segment json, skipping", "error", err)
		return nil, false
	}
	return &payload, true
}
