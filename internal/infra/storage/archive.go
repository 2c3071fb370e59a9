package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/civforge/civsim/internal/engine"
)

// ArchiveRecorder appends one JSON line per snapshot to a zstd-compressed
// file, one file per run. The archive is the cheap long-term record; the
// SQLite store is the queryable one.
type ArchiveRecorder struct {
	file *os.File
	buf  *bufio.Writer
	zw   *zstd.Encoder
	enc  *json.Encoder
}

// NewArchiveRecorder creates <dir>/<runID>.jsonl.zst and holds it open until
// Close.
func NewArchiveRecorder(dir, runID string) (*ArchiveRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	path := filepath.Join(dir, runID+".jsonl.zst")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	buf := bufio.NewWriter(f)
	zw, err := zstd.NewWriter(buf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}

	return &ArchiveRecorder{file: f, buf: buf, zw: zw, enc: json.NewEncoder(zw)}, nil
}

func (a *ArchiveRecorder) Ready() error {
	if a.file == nil {
		return fmt.Errorf("archive already closed")
	}
	return nil
}

func (a *ArchiveRecorder) Record(snap engine.Snapshot) error {
	if err := a.enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}
	return nil
}

// Close flushes the compressor and releases the file. The recorder is
// unusable afterwards.
func (a *ArchiveRecorder) Close() error {
	if a.file == nil {
		return nil
	}
	zerr := a.zw.Close()
	berr := a.buf.Flush()
	ferr := a.file.Close()
	a.file = nil
	if zerr != nil {
		return fmt.Errorf("failed to flush archive: %w", zerr)
	}
	if berr != nil {
		return fmt.Errorf("failed to flush archive: %w", berr)
	}
	return ferr
}

// ReadArchive decodes every snapshot from a file written by ArchiveRecorder.
func ReadArchive(path string) ([]engine.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd reader: %w", err)
	}
	defer zr.Close()

	var snaps []engine.Snapshot
	dec := json.NewDecoder(zr)
	for dec.More() {
		var snap engine.Snapshot
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to decode archived snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
