package shard

// SegmentChunkBudgetBytes is the maximum size of one conversation segment
// chunk (SPEC_FULL.md §6, §4.C): segments are split after encryption, so
// unlike CreateBudgetBytes no envelope-overhead margin is needed here.
const SegmentChunkBudgetBytes = 90 * 1024

// SplitSegment splits an already-encrypted segment payload into ordered
// byte-range chunks of at most SegmentChunkBudgetBytes each. Always returns
// at least one chunk, even for an empty payload.
func SplitSegment(ciphertext []byte) [][]byte {
	if len(ciphertext) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for start := 0; start < len(ciphertext); start += SegmentChunkBudgetBytes {
		end := start + SegmentChunkBudgetBytes
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		chunks = append(chunks, ciphertext[start:end])
	}
	return chunks
}

// JoinSegment concatenates ordered chunks back into the full ciphertext.
func JoinSegment(chunks [][]byte) []byte {
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
