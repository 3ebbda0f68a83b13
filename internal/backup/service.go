package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fidde/codesnip/internal/analytics"
	"github.com/fidde/codesnip/internal/storage"
	"github.com/fidde/codesnip/pkg/models"
)

// Service snapshots a storage backend into backups and restores them.
type Service struct {
	files   *Store
	data    storage.Storage
	viewers *analytics.UniqueViewers
	logger  *slog.Logger
}

// NewService creates a backup service. When viewers is non-nil its sketches
// are saved with every backup and replaced on restore.
func NewService(files *Store, data storage.Storage, viewers *analytics.UniqueViewers, logger *slog.Logger) *Service {
	return &Service{files: files, data: data, viewers: viewers, logger: logger}
}

// Create snapshots the store and saves it under opts.Name.
func (s *Service) Create(ctx context.Context, opts models.BackupSaveOptions) (*models.BackupMetadata, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ds, err := s.data.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting store: %w", err)
	}

	b := &models.Backup{
		ID:          opts.Name,
		Description: opts.Description,
		Data:        *ds,
	}
	if s.viewers != nil {
		b.Viewers = s.viewers.Snapshot()
	}
	if err := s.files.Save(ctx, b, opts.Force); err != nil {
		return nil, err
	}

	meta, err := s.files.GetMetadata(ctx, opts.Name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("backup saved", "name", meta.ID, "snippets", meta.Stats.Snippets, "size_bytes", meta.SizeBytes)
	return meta, nil
}

// Restore replaces the store contents with a saved backup. Sessions are not
// part of backups, so everybody is signed out.
func (s *Service) Restore(ctx context.Context, name string) (*models.RestoreResult, error) {
	b, err := s.files.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.data.Restore(ctx, &b.Data); err != nil {
		return nil, fmt.Errorf("restoring backup %s: %w", name, err)
	}
	if s.viewers != nil {
		s.viewers.Replace(b.Viewers)
	}

	stats := b.Data.Stats()
	s.logger.Info("backup restored", "name", name, "users", stats.Users, "snippets", stats.Snippets)
	return &models.RestoreResult{BackupID: b.ID, Restored: true, Stats: stats}, nil
}

// List returns all backups, newest first.
func (s *Service) List(ctx context.Context) ([]*models.BackupMetadata, error) {
	return s.files.List(ctx)
}

// Get returns one backup's metadata.
func (s *Service) Get(ctx context.Context, name string) (*models.BackupMetadata, error) {
	return s.files.GetMetadata(ctx, name)
}

// Delete removes a backup.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.files.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("backup deleted", "name", name)
	return nil
}
