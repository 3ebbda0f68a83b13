package models

import (
	"regexp"
	"time"

	"github.com/fidde/codesnip/pkg/hyperloglog"
)

var backupNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*[a-z0-9]$|^[a-z0-9]$`)

// ValidateBackupName checks that name is lowercase alphanumeric with hyphens
// and at most 128 characters.
func ValidateBackupName(name string) error {
	if name == "" || len(name) > 128 {
		return ErrInvalidBackupName
	}
	if !backupNameRegex.MatchString(name) {
		return ErrInvalidBackupName
	}
	return nil
}

// Dataset is the full content of a store. Sessions are not part of it, so a
// restore logs everybody out.
type Dataset struct {
	Users    []*UserRecord `json:"users"`
	Snippets []*Snippet    `json:"snippets"`
	Tags     []*Tag        `json:"tags"`
}

// Stats returns the record counts of the dataset.
func (d *Dataset) Stats() BackupStats {
	return BackupStats{
		Users:    len(d.Users),
		Snippets: len(d.Snippets),
		Tags:     len(d.Tags),
	}
}

// UserRecord is a User including its password hash, used only inside backups.
type UserRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Username     string    `json:"username"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	SnippetCount int       `json:"snippet_count"`
}

// NewUserRecord copies u into a UserRecord.
func NewUserRecord(u *User) *UserRecord {
	return &UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Username:     u.Username,
		PhotoURL:     u.PhotoURL,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		SnippetCount: u.SnippetCount,
	}
}

// User converts the record back into a User.
func (r *UserRecord) User() *User {
	return &User{
		ID:           r.ID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		Username:     r.Username,
		PhotoURL:     r.PhotoURL,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		SnippetCount: r.SnippetCount,
	}
}

// BackupStats contains summary counts.
type BackupStats struct {
	Users    int `json:"users"`
	Snippets int `json:"snippets"`
	Tags     int `json:"tags"`
}

// Backup is a complete snapshot of the store.
type Backup struct {
	// Version is the file format version.
	Version     int         `json:"version"`
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Created     time.Time   `json:"created"`
	Stats       BackupStats `json:"stats"`
	Data        Dataset     `json:"data"`
	// Viewers holds the unique-viewer sketch of each snippet.
	Viewers map[string]*hyperloglog.HyperLogLog `json:"viewers,omitempty"`
}

// BackupMetadata describes a saved backup without its data.
type BackupMetadata struct {
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Created     time.Time   `json:"created"`
	SizeBytes   int64       `json:"size_bytes"`
	Stats       BackupStats `json:"stats"`
}

// BackupSaveOptions is the body of a save call.
type BackupSaveOptions struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Force overwrites an existing backup with the same name.
	Force bool `json:"force,omitempty"`
}

// Validate checks the backup name.
func (o *BackupSaveOptions) Validate() error {
	return ValidateBackupName(o.Name)
}

// RestoreResult reports what a restore loaded.
type RestoreResult struct {
	BackupID string      `json:"backup_id"`
	Restored bool        `json:"restored"`
	Stats    BackupStats `json:"stats"`
}
