package hashtable

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the first 8 bytes of every on-disk table, matching the original
// borg on-disk format bit-for-bit.
var Magic = [8]byte{'B', 'O', 'R', 'G', '_', 'I', 'D', 'X'}

// headerSize is the fixed 18-byte header preceding the bucket array.
const headerSize = 18

// KeySize is the fixed key width in bytes (a cryptographic content hash).
const KeySize = 32

// header is the bit-exact 18-byte on-disk header preceding the bucket array.
type header struct {
	NumEntries uint32
	NumBuckets uint32
	KeySize    uint8
	ValueSize  uint8
}

func (h *header) bytes() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.NumEntries)
	binary.LittleEndian.PutUint32(buf[12:16], h.NumBuckets)
	buf[16] = h.KeySize
	buf[17] = h.ValueSize
	return buf
}

func loadHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("%w: short header (%d bytes)", ErrFormatError, len(buf))
	}
	if *(*[8]byte)(buf[0:8]) != Magic {
		return header{}, fmt.Errorf("%w: bad magic", ErrFormatError)
	}
	h := header{
		NumEntries: binary.LittleEndian.Uint32(buf[8:12]),
		NumBuckets: binary.LittleEndian.Uint32(buf[12:16]),
		KeySize:    buf[16],
		ValueSize:  buf[17],
	}
	if h.KeySize != KeySize {
		return header{}, fmt.Errorf("%w: key_size %d, want %d", ErrFormatError, h.KeySize, KeySize)
	}
	if h.ValueSize != 8 && h.ValueSize != 12 {
		return header{}, fmt.Errorf("%w: value_size %d, want 8 or 12", ErrFormatError, h.ValueSize)
	}
	return h, nil
}

// readHeader reads and validates the fixed header from the front of r.
func readHeader(r io.Reader) (header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return header{}, fmt.Errorf("%w: %v", ErrFormatError, err)
		}
		return header{}, err
	}
	return loadHeader(buf)
}

// bucketStride is the on-disk and in-memory width of one bucket: key bytes
// followed by value bytes.
func bucketStride(valueSize int) int {
	return KeySize + valueSize
}

// fileSize returns the exact on-disk footprint for a table with the given
// bucket count and value width: 18 + num_buckets*(32+value_size).
func fileSize(numBuckets uint32, valueSize int) int64 {
	return int64(headerSize) + int64(numBuckets)*int64(bucketStride(valueSize))
}
