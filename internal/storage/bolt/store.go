// Package bolt provides a bbolt-backed storage implementation. Records are
// JSON documents in buckets; listings are evaluated in Go.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fidde/codesnip/internal/storage/query"
	"github.com/fidde/codesnip/pkg/models"
)

var (
	bucketUsers     = []byte("users")
	bucketUsernames = []byte("users_by_username")
	bucketEmails    = []byte("users_by_email")
	bucketSnippets  = []byte("snippets")
	bucketSlugs     = []byte("snippets_by_slug")
	bucketTags      = []byte("tags")
	bucketSessions  = []byte("sessions")
	allBuckets      = [][]byte{bucketUsers, bucketUsernames, bucketEmails, bucketSnippets, bucketSlugs, bucketTags, bucketSessions}
)

// Config holds bbolt store configuration.
type Config struct {
	Path string
	// OpenTimeout bounds waiting for the file lock held by another process.
	OpenTimeout time.Duration
}

// DefaultConfig returns default bbolt configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		OpenTimeout: 2 * time.Second,
	}
}

// Store is a bbolt-backed storage.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database file and its buckets.
func New(cfg Config) (*Store, error) {
	db, err := bbolt.Open(cfg.Path, 0600, &bbolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

type sessionDoc struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func get[T any](b *bbolt.Bucket, key string) (*T, bool, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return nil, false, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return &v, true, nil
}

func put(b *bbolt.Bucket, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return b.Put([]byte(key), raw)
}

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		emails, names := tx.Bucket(bucketEmails), tx.Bucket(bucketUsernames)
		if emails.Get([]byte(user.Email)) != nil {
			return models.ErrEmailTaken
		}
		if names.Get([]byte(user.Username)) != nil {
			return models.ErrUsernameTaken
		}
		if err := put(tx.Bucket(bucketUsers), user.ID, models.NewUserRecord(user)); err != nil {
			return err
		}
		if err := emails.Put([]byte(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return names.Put([]byte(user.Username), []byte(user.ID))
	})
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		user, err = userByID(tx, id)
		return err
	})
	return user, err
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userByIndex(bucketUsernames, username)
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.userByIndex(bucketEmails, email)
}

func (s *Store) userByIndex(index []byte, key string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(index).Get([]byte(key))
		if id == nil {
			return models.ErrUserNotFound
		}
		var err error
		user, err = userByID(tx, string(id))
		return err
	})
	return user, err
}

func userByID(tx *bbolt.Tx, id string) (*models.User, error) {
	rec, ok, err := get[models.UserRecord](tx.Bucket(bucketUsers), id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return rec.User(), nil
}

func snippetByID(tx *bbolt.Tx, id string) (*models.Snippet, error) {
	sn, ok, err := get[models.Snippet](tx.Bucket(bucketSnippets), id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrSnippetNotFound
	}
	if sn.Tags == nil {
		sn.Tags = []string{}
	}
	return sn, nil
}

func bumpSnippetCount(tx *bbolt.Tx, userID string, delta int) error {
	users := tx.Bucket(bucketUsers)
	rec, ok, err := get[models.UserRecord](users, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("snippet owner %s: %w", userID, models.ErrUserNotFound)
	}
	rec.SnippetCount = max(0, rec.SnippetCount+delta)
	return put(users, userID, rec)
}

func adjustTags(tx *bbolt.Tx, added, removed []query.TagRef) error {
	tags := tx.Bucket(bucketTags)
	for _, r := range added {
		t, ok, err := get[models.Tag](tags, r.Slug)
		if err != nil {
			return err
		}
		if !ok {
			t = &models.Tag{Name: r.Name, Slug: r.Slug}
		}
		t.Count++
		if err := put(tags, r.Slug, t); err != nil {
			return err
		}
	}
	for _, r := range removed {
		t, ok, err := get[models.Tag](tags, r.Slug)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		t.Count--
		if t.Count <= 0 {
			if err := tags.Delete([]byte(r.Slug)); err != nil {
				return err
			}
			continue
		}
		if err := put(tags, r.Slug, t); err != nil {
			return err
		}
	}
	return nil
}

// CreateSnippet stores a new snippet and bumps the owner and tag counters.
func (s *Store) CreateSnippet(ctx context.Context, snippet *models.Snippet) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		slugs := tx.Bucket(bucketSlugs)
		if slugs.Get([]byte(snippet.Slug)) != nil {
			return models.ErrSlugTaken
		}
		if err := bumpSnippetCount(tx, snippet.UserID, 1); err != nil {
			return err
		}
		if err := put(tx.Bucket(bucketSnippets), snippet.ID, snippet); err != nil {
			return err
		}
		if err := slugs.Put([]byte(snippet.Slug), []byte(snippet.ID)); err != nil {
			return err
		}
		return adjustTags(tx, query.Refs(snippet.Tags), nil)
	})
}

// GetSnippet retrieves a snippet by id.
func (s *Store) GetSnippet(ctx context.Context, id string) (*models.Snippet, error) {
	var sn *models.Snippet
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		sn, err = snippetByID(tx, id)
		return err
	})
	return sn, err
}

// GetSnippetBySlug retrieves a snippet by slug.
func (s *Store) GetSnippetBySlug(ctx context.Context, slug string) (*models.Snippet, error) {
	var sn *models.Snippet
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketSlugs).Get([]byte(slug))
		if id == nil {
			return models.ErrSnippetNotFound
		}
		var err error
		sn, err = snippetByID(tx, string(id))
		return err
	})
	return sn, err
}

// UpdateSnippet replaces a snippet's content. Slug, owner, creation time and
// view count are kept.
func (s *Store) UpdateSnippet(ctx context.Context, snippet *models.Snippet) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		existing, err := snippetByID(tx, snippet.ID)
		if err != nil {
			return err
		}

		next := snippet.Clone()
		next.Slug = existing.Slug
		next.UserID = existing.UserID
		next.ViewCount = existing.ViewCount
		next.CreatedAt = existing.CreatedAt
		if err := put(tx.Bucket(bucketSnippets), next.ID, next); err != nil {
			return err
		}

		added, removed := query.Diff(existing.Tags, next.Tags)
		return adjustTags(tx, added, removed)
	})
}

// DeleteSnippet removes a snippet and reverses its counter updates.
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		existing, err := snippetByID(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketSnippets).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketSlugs).Delete([]byte(existing.Slug)); err != nil {
			return err
		}
		if err := bumpSnippetCount(tx, existing.UserID, -1); err != nil && !errors.Is(err, models.ErrUserNotFound) {
			return err
		}
		return adjustTags(tx, nil, query.Refs(existing.Tags))
	})
}

// ListSnippets returns one page of snippets matching opts.
func (s *Store) ListSnippets(ctx context.Context, opts models.ListOptions) (*models.SnippetPage, error) {
	opts.Normalize()

	var all []*models.Snippet
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		all, err = allSnippets(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return query.Page(all, opts), nil
}

func allSnippets(tx *bbolt.Tx) ([]*models.Snippet, error) {
	var out []*models.Snippet
	err := tx.Bucket(bucketSnippets).ForEach(func(k, v []byte) error {
		var sn models.Snippet
		if err := json.Unmarshal(v, &sn); err != nil {
			return fmt.Errorf("decoding snippet %s: %w", k, err)
		}
		if sn.Tags == nil {
			sn.Tags = []string{}
		}
		out = append(out, &sn)
		return nil
	})
	return out, err
}

// IncrementViewCount adds one view to a snippet.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		sn, err := snippetByID(tx, id)
		if err != nil {
			return err
		}
		sn.ViewCount++
		return put(tx.Bucket(bucketSnippets), id, sn)
	})
}

// ListTags returns tags matching opts.
func (s *Store) ListTags(ctx context.Context, opts models.TagListOptions) ([]*models.Tag, error) {
	opts.Normalize()

	var all []*models.Tag
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		all, err = allTags(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return query.FilterTags(all, opts), nil
}

func allTags(tx *bbolt.Tx) ([]*models.Tag, error) {
	var out []*models.Tag
	err := tx.Bucket(bucketTags).ForEach(func(k, v []byte) error {
		var t models.Tag
		if err := json.Unmarshal(v, &t); err != nil {
			return fmt.Errorf("decoding tag %s: %w", k, err)
		}
		out = append(out, &t)
		return nil
	})
	return out, err
}

// GetTagBySlug retrieves a tag by slug.
func (s *Store) GetTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag *models.Tag
	err := s.db.View(func(tx *bbolt.Tx) error {
		t, ok, err := get[models.Tag](tx.Bucket(bucketTags), slug)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrTagNotFound
		}
		tag = t
		return nil
	})
	return tag, err
}

// CreateSession stores a login session.
func (s *Store) CreateSession(ctx context.Context, session *models.AuthSession) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket(bucketSessions), session.TokenHash, sessionDoc{
			UserID:    session.UserID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		})
	})
}

// GetSession retrieves a login session by token hash.
func (s *Store) GetSession(ctx context.Context, tokenHash string) (*models.AuthSession, error) {
	var sess *models.AuthSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		doc, ok, err := get[sessionDoc](tx.Bucket(bucketSessions), tokenHash)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrSessionNotFound
		}
		sess = &models.AuthSession{
			TokenHash: tokenHash,
			UserID:    doc.UserID,
			CreatedAt: doc.CreatedAt,
			ExpiresAt: doc.ExpiresAt,
		}
		return nil
	})
	return sess, err
}

// DeleteSession removes a login session.
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(tokenHash))
	})
}

// DeleteExpiredSessions removes sessions expired at now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)

		// collect first; deleting while iterating with ForEach is not allowed
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var doc sessionDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decoding session: %w", err)
			}
			if !now.Before(doc.ExpiresAt) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(expired)
		return nil
	})
	return n, err
}

// Snapshot returns all users, snippets and tags.
func (s *Store) Snapshot(ctx context.Context) (*models.Dataset, error) {
	ds := &models.Dataset{Users: []*models.UserRecord{}}
	err := s.db.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var rec models.UserRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding user %s: %w", k, err)
			}
			ds.Users = append(ds.Users, &rec)
			return nil
		})
		if err != nil {
			return err
		}
		if ds.Snippets, err = allSnippets(tx); err != nil {
			return err
		}
		ds.Tags, err = allTags(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if ds.Snippets == nil {
		ds.Snippets = []*models.Snippet{}
	}
	if ds.Tags == nil {
		ds.Tags = []*models.Tag{}
	}
	query.SortSnippets(ds.Snippets, models.SortOldest)
	query.SortTags(ds.Tags, models.TagSortName)
	return ds, nil
}

// Restore replaces all data with ds in one transaction.
func (s *Store) Restore(ctx context.Context, ds *models.Dataset) error {
	ds = query.Recount(ds)

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := resetBuckets(tx); err != nil {
			return err
		}

		users := tx.Bucket(bucketUsers)
		for _, u := range ds.Users {
			if err := put(users, u.ID, u); err != nil {
				return err
			}
			if err := tx.Bucket(bucketEmails).Put([]byte(u.Email), []byte(u.ID)); err != nil {
				return err
			}
			if err := tx.Bucket(bucketUsernames).Put([]byte(u.Username), []byte(u.ID)); err != nil {
				return err
			}
		}

		snippets := tx.Bucket(bucketSnippets)
		for _, sn := range ds.Snippets {
			if err := put(snippets, sn.ID, sn); err != nil {
				return err
			}
			if err := tx.Bucket(bucketSlugs).Put([]byte(sn.Slug), []byte(sn.ID)); err != nil {
				return err
			}
		}

		tags := tx.Bucket(bucketTags)
		for _, t := range ds.Tags {
			if err := put(tags, t.Slug, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.Update(resetBuckets)
}

func resetBuckets(tx *bbolt.Tx) error {
	for _, name := range allBuckets {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("dropping bucket %s: %w", name, err)
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return fmt.Errorf("creating bucket %s: %w", name, err)
		}
	}
	return nil
}
