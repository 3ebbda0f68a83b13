package main

import (
	"github.com/fidde/codesnip/internal/analytics"
	"github.com/fidde/codesnip/internal/backup"
	"github.com/fidde/codesnip/internal/storage"
)

func openStore() (storage.Storage, error) {
	storageCfg := storage.DefaultConfig()
	storageCfg.Backend = cfg.Storage.Backend
	storageCfg.SQLitePath = cfg.Storage.SQLitePath
	storageCfg.BoltPath = cfg.Storage.BoltPath
	return storage.NewStorage(storageCfg, logger)
}

// loadViewers merges the saved unique-viewer sketches into viewers. A broken
// file only costs the estimates, so it is logged and skipped.
func loadViewers(viewers *analytics.UniqueViewers) {
	if cfg.Analytics.ViewersFile == "" {
		return
	}
	if err := viewers.LoadFile(cfg.Analytics.ViewersFile); err != nil {
		logger.Warn("failed to load viewer sketches", "file", cfg.Analytics.ViewersFile, "error", err)
	}
}

func saveViewers(viewers *analytics.UniqueViewers) error {
	if cfg.Analytics.ViewersFile == "" {
		return nil
	}
	return viewers.SaveFile(cfg.Analytics.ViewersFile)
}

func openBackups(store storage.Storage, viewers *analytics.UniqueViewers) (*backup.Service, error) {
	files, err := backup.NewStore(backup.Config{
		Dir:        cfg.Backup.Dir,
		MaxSize:    cfg.Backup.MaxSize,
		MaxBackups: cfg.Backup.MaxBackups,
	})
	if err != nil {
		return nil, err
	}
	return backup.NewService(files, store, viewers, logger), nil
}
