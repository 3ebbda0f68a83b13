// Package storage defines the persistence interface for users, snippets, tags
// and login sessions.
package storage

import (
	"context"
	"time"

	"github.com/fidde/codesnip/pkg/models"
)

// Storage is the interface for storing and retrieving codesnip data.
// Implementations must be safe for concurrent use. Multi-record writes
// (snippet plus its tag and user counters) are atomic.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Snippet operations. CreateSnippet increments the owner's snippet count
	// and the counter of every tag; UpdateSnippet adjusts tag counters by the
	// difference between the old and new tags; DeleteSnippet reverses
	// CreateSnippet and removes tags whose count reaches zero.
	CreateSnippet(ctx context.Context, snippet *models.Snippet) error
	GetSnippet(ctx context.Context, id string) (*models.Snippet, error)
	GetSnippetBySlug(ctx context.Context, slug string) (*models.Snippet, error)
	UpdateSnippet(ctx context.Context, snippet *models.Snippet) error
	DeleteSnippet(ctx context.Context, id string) error
	ListSnippets(ctx context.Context, opts models.ListOptions) (*models.SnippetPage, error)
	IncrementViewCount(ctx context.Context, id string) error

	// Tag operations
	ListTags(ctx context.Context, opts models.TagListOptions) ([]*models.Tag, error)
	GetTagBySlug(ctx context.Context, slug string) (*models.Tag, error)

	// Login session operations, keyed by token hash
	CreateSession(ctx context.Context, session *models.AuthSession) error
	GetSession(ctx context.Context, tokenHash string) (*models.AuthSession, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)

	// Snapshot returns every user, snippet and tag.
	Snapshot(ctx context.Context) (*models.Dataset, error)
	// Restore replaces all data with ds. Sessions are dropped.
	Restore(ctx context.Context, ds *models.Dataset) error

	// Clear all data
	Clear(ctx context.Context) error

	// Close the storage (for cleanup, e.g., DB connections)
	Close() error
}
