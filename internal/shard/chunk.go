package shard

import (
	"encoding/json"
	"strconv"
)

// CreateBudgetBytes is the per-shard creation size budget from
// SPEC_FULL.md §6 (90 KiB), minus a fixed safety margin for the AEAD
// envelope overhead (12-byte nonce + 16-byte tag) added after
// serialization.
const CreateBudgetBytes = 90*1024 - 64

// opSize returns the serialized byte length of op as it would appear
// inside a shard's operations array.
func opSize(op Op) int {
	b, err := json.Marshal(op)
	if err != nil {
		return 0
	}
	return len(b)
}

// CreateChunkedShards greedily bin-packs ops into one or more Shards of
// type delta, starting at startVersion and incrementing ShardVersion for
// each new shard, such that no shard's serialized JSON (header, operations
// and separators) exceeds CreateBudgetBytes. Every shard carries at least
// one op, even if that op alone exceeds the budget (SPEC_FULL.md §4.C).
func CreateChunkedShards(ops []Op, startVersion uint32, shardIDSeed string) []Shard {
	if len(ops) == 0 {
		return nil
	}

	newShard := func(v uint32) (Shard, int) {
		s := Shard{ShardVersion: v, ShardID: shardIDForVersion(shardIDSeed, v), Type: TypeDelta}
		header, _ := Serialize(Shard{ShardVersion: v, ShardID: s.ShardID, Type: s.Type, Operations: []Op{}})
		return s, len(header)
	}

	var shards []Shard
	version := startVersion
	current, currentSize := newShard(version)

	for _, op := range ops {
		size := opSize(op)
		if len(current.Operations) > 0 {
			size++ // comma separating it from the previous op
		}
		if len(current.Operations) > 0 && currentSize+size > CreateBudgetBytes {
			shards = append(shards, current)
			version++
			current, currentSize = newShard(version)
			size-- // first op of a shard has no separator
		}
		current.Operations = append(current.Operations, op)
		currentSize += size
	}
	shards = append(shards, current)
	return shards
}

func shardIDForVersion(seed string, version uint32) string {
	return seed + "-" + strconv.FormatUint(uint64(version), 10)
}
