package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/fidde/codesnip/pkg/hyperloglog"
)

// SaveFile writes every sketch to path as gzip-compressed JSON. The file is
// replaced atomically.
func (u *UniqueViewers) SaveFile(path string) error {
	data, err := json.Marshal(u.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding viewer sketches: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating viewer file directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".viewers-*")
	if err != nil {
		return fmt.Errorf("creating viewer file: %w", err)
	}
	defer os.Remove(tmp.Name())

	gw := gzip.NewWriter(tmp)
	if _, err := gw.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing viewer file: %w", err)
	}
	if err := gw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing viewer file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing viewer file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFile merges the sketches saved at path into u. A missing file is not an
// error.
func (u *UniqueViewers) LoadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening viewer file: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading viewer file: %w", err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return fmt.Errorf("reading viewer file: %w", err)
	}

	var sketches map[string]*hyperloglog.HyperLogLog
	if err := json.Unmarshal(raw, &sketches); err != nil {
		return fmt.Errorf("decoding viewer file: %w", err)
	}
	return u.Merge(sketches)
}
