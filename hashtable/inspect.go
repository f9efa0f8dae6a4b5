package hashtable

import "os"

// FileInfo summarizes an on-disk table's header without loading its bucket
// array, for use by diagnostic tooling (cmd/borgindex inspect).
type FileInfo struct {
	NumEntries uint32
	NumBuckets uint32
	KeySize    uint8
	ValueSize  uint8
	Size       int64
}

// Stat reads just the header of the table file at path.
func Stat(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer f.Close()

	h, err := readHeader(f)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		NumEntries: h.NumEntries,
		NumBuckets: h.NumBuckets,
		KeySize:    h.KeySize,
		ValueSize:  h.ValueSize,
		Size:       fileSize(h.NumBuckets, int(h.ValueSize)),
	}, nil
}
