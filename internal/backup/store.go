// Package backup saves and restores gzip-compressed JSON snapshots of the
// whole store.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/fidde/codesnip/pkg/models"
)

// Default configuration values
const (
	DefaultDir        = "./data/backups"
	DefaultMaxSize    = 100 * 1024 * 1024 // 100MB
	DefaultMaxBackups = 50
	FileExtension     = ".json.gz"
	CurrentVersion    = 1
)

// Config contains backup storage configuration.
type Config struct {
	// Dir is the directory where backups are stored
	Dir string

	// MaxSize is the maximum uncompressed size of a single backup in bytes
	MaxSize int64

	// MaxBackups is the maximum number of backups to keep
	MaxBackups int
}

// DefaultConfig returns the default backup storage configuration.
func DefaultConfig() Config {
	return Config{
		Dir:        DefaultDir,
		MaxSize:    DefaultMaxSize,
		MaxBackups: DefaultMaxBackups,
	}
}

// Store is a file-based backup storage.
type Store struct {
	config Config
	mu     sync.RWMutex
}

// NewStore creates the backup directory if needed.
func NewStore(config Config) (*Store, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultMaxSize
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = DefaultMaxBackups
	}
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	return &Store{config: config}, nil
}

// Save writes a backup to disk. An existing backup with the same id is
// replaced only when force is set.
func (s *Store) Save(ctx context.Context, b *models.Backup, force bool) error {
	if b == nil {
		return errors.New("backup cannot be nil")
	}
	if err := models.ValidateBackupName(b.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.backupPath(b.ID)
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if exists && !force {
		return models.ErrBackupExists
	}

	if !exists {
		n, err := s.countLocked()
		if err != nil {
			return err
		}
		if n >= s.config.MaxBackups {
			return models.ErrTooManyBackups
		}
	}

	b.Version = CurrentVersion
	if b.Created.IsZero() {
		b.Created = time.Now().UTC()
	}
	b.Stats = b.Data.Stats()

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling backup: %w", err)
	}
	if int64(len(data)) > s.config.MaxSize {
		return models.ErrBackupTooLarge
	}

	if err := writeGzip(path, data); err != nil {
		return fmt.Errorf("writing backup file: %w", err)
	}
	return nil
}

// Load reads a backup from disk.
func (s *Store) Load(ctx context.Context, name string) (*models.Backup, error) {
	if err := models.ValidateBackupName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var b models.Backup
	if err := s.decodeLocked(name, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a backup.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := models.ValidateBackupName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.backupPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return models.ErrBackupNotFound
	}
	if err != nil {
		return fmt.Errorf("removing backup file: %w", err)
	}
	return nil
}

// List returns metadata for all backups, newest first. Unreadable files are
// skipped.
func (s *Store) List(ctx context.Context) ([]*models.BackupMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.namesLocked()
	if err != nil {
		return nil, err
	}

	out := make([]*models.BackupMetadata, 0, len(names))
	for _, name := range names {
		meta, err := s.metadataLocked(name)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	return out, nil
}

// GetMetadata returns a backup's metadata without keeping its data.
func (s *Store) GetMetadata(ctx context.Context, name string) (*models.BackupMetadata, error) {
	if err := models.ValidateBackupName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadataLocked(name)
}

// Exists reports whether a backup exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := models.ValidateBackupName(name); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.backupPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) backupPath(name string) string {
	return filepath.Join(s.config.Dir, name+FileExtension)
}

// header is a Backup without its data.
type header struct {
	ID          string             `json:"id"`
	Description string             `json:"description"`
	Created     time.Time          `json:"created"`
	Stats       models.BackupStats `json:"stats"`
}

func (s *Store) metadataLocked(name string) (*models.BackupMetadata, error) {
	info, err := os.Stat(s.backupPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrBackupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}

	var h header
	if err := s.decodeLocked(name, &h); err != nil {
		return nil, err
	}
	return &models.BackupMetadata{
		ID:          name,
		Description: h.Description,
		Created:     h.Created,
		SizeBytes:   info.Size(),
		Stats:       h.Stats,
	}, nil
}

func (s *Store) decodeLocked(name string, v any) error {
	file, err := os.Open(s.backupPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return models.ErrBackupNotFound
	}
	if err != nil {
		return fmt.Errorf("opening backup file: %w", err)
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("reading backup file: %w", err)
	}
	defer gr.Close()

	// Refuse to inflate past the size limit.
	r := io.LimitReader(gr, s.config.MaxSize+1)
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("unmarshaling backup: %w", err)
	}
	return nil
}

func (s *Store) namesLocked() ([]string, error) {
	entries, err := os.ReadDir(s.config.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExtension) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), FileExtension)
		if models.ValidateBackupName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Store) countLocked() (int, error) {
	names, err := s.namesLocked()
	return len(names), err
}

// writeGzip writes data to a temporary file and renames it into place, so a
// failed write never leaves a truncated backup behind.
func writeGzip(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	gw := gzip.NewWriter(tmp)
	if _, err := gw.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
