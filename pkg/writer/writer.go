// Package writer provides positioned byte sinks for downloads. Chunked
// downloads write concurrently at disjoint offsets, so every sink supports
// io.WriterAt semantics.
package writer

import (
	"fmt"
	"os"
	"sync"
)

// MemWriter is an in-memory positioned writer. It grows on demand and is
// safe for concurrent WriteAt calls.
type MemWriter struct {
	// mu protects buf.
	mu  sync.Mutex
	buf []byte
}

// NewMemWriter returns an empty MemWriter.
func NewMemWriter() *MemWriter {
	return &MemWriter{}
}

// WriteAt writes p at the given offset, growing the buffer as needed.
func (w *MemWriter) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("writer: negative offset %d", off)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if need := off + int64(len(p)); need > int64(len(w.buf)) {
		grown := make([]byte, need)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[off:], p)
	return len(p), nil
}

// Bytes returns a copy of the buffer contents.
func (w *MemWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}

// Len returns the current buffer length.
func (w *MemWriter) Len() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(len(w.buf))
}

// Reset discards the buffer contents.
func (w *MemWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = nil
}

// FileWriter is a positioned writer backed by a file on disk. *os.File
// already supports concurrent WriteAt at disjoint offsets; FileWriter adds
// creation and sizing.
type FileWriter struct {
	file *os.File
}

// CreateFile creates (or truncates) the file at path. When size is positive
// the file is extended to its final length up front, so concurrent chunk
// writes never race on growth.
func CreateFile(path string, size int64) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("writer: create %s: %w", path, err)
	}
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("writer: presize %s: %w", path, err)
		}
	}
	return &FileWriter{file: f}, nil
}

// WriteAt writes p at the given offset.
func (w *FileWriter) WriteAt(p []byte, off int64) (int, error) {
	return w.file.WriteAt(p, off)
}

// Name returns the path of the underlying file.
func (w *FileWriter) Name() string {
	return w.file.Name()
}

// Sync flushes the file to stable storage.
func (w *FileWriter) Sync() error {
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *FileWriter) Close() error {
	return w.file.Close()
}
