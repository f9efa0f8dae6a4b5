package hashtable

import "encoding/binary"

// Sentinel values reserved in the first 32-bit little-endian word of every
// bucket's value.
const (
	sentinelEmpty   uint32 = 0xFFFFFFFF
	sentinelDeleted uint32 = 0xFFFFFFFE

	// MaxValue is the usable maximum for the first value word: for NSIndex
	// this bounds the segment number, for ChunkIndex the refcount.
	MaxValue uint32 = 0xFFFFFFFD
)

func firstWord(value []byte) uint32 {
	return binary.LittleEndian.Uint32(value[0:4])
}

func putFirstWord(value []byte, w uint32) {
	binary.LittleEndian.PutUint32(value[0:4], w)
}

func isEmptyValue(value []byte) bool {
	return firstWord(value) == sentinelEmpty
}

func isDeletedValue(value []byte) bool {
	return firstWord(value) == sentinelDeleted
}

func isOccupiedValue(value []byte) bool {
	w := firstWord(value)
	return w != sentinelEmpty && w != sentinelDeleted
}

func markEmpty(value []byte) {
	putFirstWord(value, sentinelEmpty)
}
