package hashtable

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"
)

// OpenMMAP opens a table file as a read-only memory mapping, sized to
// exactly the file's on-disk footprint; the table is read-only until
// Close unmaps it. The bucket array is copied out of the mapping into
// memory at open. The kernel is hinted with posix_fadvise(RANDOM) for the
// point-lookup access pattern a hash table makes against its bucket array.
func OpenMMAP(path string) (*Table, error) {
	if f, err := os.Open(path); err == nil {
		if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
			slog.Warn("hashtable: fadvise(RANDOM) failed", "path", path, "error", err)
		}
		f.Close()
	}

	file, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	h, err := readHeaderAt(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	want := fileSize(h.NumBuckets, int(h.ValueSize))
	if int64(file.Len()) != want {
		file.Close()
		return nil, fmt.Errorf("%w: file is %d bytes, header implies %d", ErrFormatError, file.Len(), want)
	}

	buckets := make([]byte, want-headerSize)
	if want > headerSize {
		if _, err := file.ReadAt(buckets, headerSize); err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: %v", ErrFormatError, err)
		}
	}

	t := &Table{
		valueSize:  int(h.ValueSize),
		stride:     bucketStride(int(h.ValueSize)),
		numBuckets: h.NumBuckets,
		numEntries: h.NumEntries,
		buckets:    buckets,
		mmapFile:   file,
		readOnly:   true,
	}
	return t, nil
}

// Close releases the memory mapping backing a table opened via OpenMMAP.
// It is a no-op for tables not backed by a mapping. Because the bucket
// array was copied at open, the table stays readable after Close and
// accepts mutation from then on.
func (t *Table) Close() error {
	if t.mmapFile == nil {
		return nil
	}
	err := t.mmapFile.Close()
	t.mmapFile = nil
	t.readOnly = false
	return err
}

func readHeaderAt(r interface {
	ReadAt(p []byte, off int64) (int, error)
}) (header, error) {
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrFormatError, err)
	}
	return loadHeader(buf)
}
