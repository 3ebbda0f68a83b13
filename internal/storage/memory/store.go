// Package memory provides an in-memory storage implementation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fidde/codesnip/internal/storage/query"
	"github.com/fidde/codesnip/pkg/models"
)

// Store is an in-memory storage. A single lock guards all maps so that
// snippet writes and their counter updates are atomic.
type Store struct {
	mu sync.RWMutex

	users      map[string]*models.User
	byUsername map[string]string
	byEmail    map[string]string

	snippets map[string]*models.Snippet
	bySlug   map[string]string

	// tags: slug -> tag
	tags map[string]*models.Tag

	// sessions: token hash -> session
	sessions map[string]*models.AuthSession
}

// New creates a new in-memory store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.users = make(map[string]*models.User)
	s.byUsername = make(map[string]string)
	s.byEmail = make(map[string]string)
	s.snippets = make(map[string]*models.Snippet)
	s.bySlug = make(map[string]string)
	s.tags = make(map[string]*models.Tag)
	s.sessions = make(map[string]*models.AuthSession)
}

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return errors.New("user id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return models.ErrEmailTaken
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return models.ErrUsernameTaken
	}

	u := *user
	s.users[u.ID] = &u
	s.byEmail[u.Email] = u.ID
	s.byUsername[u.Username] = u.ID
	return nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userLocked(id)
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userLocked(s.byUsername[username])
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userLocked(s.byEmail[email])
}

func (s *Store) userLocked(id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// CreateSnippet stores a new snippet and bumps the owner and tag counters.
func (s *Store) CreateSnippet(ctx context.Context, snippet *models.Snippet) error {
	if snippet == nil || snippet.ID == "" {
		return errors.New("snippet id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bySlug[snippet.Slug]; ok {
		return models.ErrSlugTaken
	}
	owner, ok := s.users[snippet.UserID]
	if !ok {
		return fmt.Errorf("snippet owner %s: %w", snippet.UserID, models.ErrUserNotFound)
	}

	s.snippets[snippet.ID] = snippet.Clone()
	s.bySlug[snippet.Slug] = snippet.ID
	owner.SnippetCount++
	s.adjustTagsLocked(query.Refs(snippet.Tags), nil)
	return nil
}

// GetSnippet retrieves a snippet by id.
func (s *Store) GetSnippet(ctx context.Context, id string) (*models.Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snippetLocked(id)
}

// GetSnippetBySlug retrieves a snippet by slug.
func (s *Store) GetSnippetBySlug(ctx context.Context, slug string) (*models.Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snippetLocked(s.bySlug[slug])
}

func (s *Store) snippetLocked(id string) (*models.Snippet, error) {
	sn, ok := s.snippets[id]
	if !ok {
		return nil, models.ErrSnippetNotFound
	}
	return sn.Clone(), nil
}

// UpdateSnippet replaces a snippet's content. The slug, owner and view count
// of the stored snippet are kept.
func (s *Store) UpdateSnippet(ctx context.Context, snippet *models.Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.snippets[snippet.ID]
	if !ok {
		return models.ErrSnippetNotFound
	}

	added, removed := query.Diff(existing.Tags, snippet.Tags)

	next := snippet.Clone()
	next.Slug = existing.Slug
	next.UserID = existing.UserID
	next.ViewCount = existing.ViewCount
	next.CreatedAt = existing.CreatedAt
	s.snippets[next.ID] = next

	s.adjustTagsLocked(added, removed)
	return nil
}

// DeleteSnippet removes a snippet and reverses its counter updates.
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.snippets[id]
	if !ok {
		return models.ErrSnippetNotFound
	}

	delete(s.snippets, id)
	delete(s.bySlug, existing.Slug)
	if owner, ok := s.users[existing.UserID]; ok && owner.SnippetCount > 0 {
		owner.SnippetCount--
	}
	s.adjustTagsLocked(nil, query.Refs(existing.Tags))
	return nil
}

// adjustTagsLocked increments added tags (creating them at count 1) and
// decrements removed ones, deleting tags that reach zero.
func (s *Store) adjustTagsLocked(added, removed []query.TagRef) {
	for _, r := range added {
		if t, ok := s.tags[r.Slug]; ok {
			t.Count++
			continue
		}
		s.tags[r.Slug] = &models.Tag{Name: r.Name, Slug: r.Slug, Count: 1}
	}
	for _, r := range removed {
		t, ok := s.tags[r.Slug]
		if !ok {
			continue
		}
		t.Count--
		if t.Count <= 0 {
			delete(s.tags, r.Slug)
		}
	}
}

// ListSnippets returns one page of snippets matching opts.
func (s *Store) ListSnippets(ctx context.Context, opts models.ListOptions) (*models.SnippetPage, error) {
	opts.Normalize()

	s.mu.RLock()
	all := make([]*models.Snippet, 0, len(s.snippets))
	for _, sn := range s.snippets {
		all = append(all, sn)
	}
	page := query.Page(all, opts)
	for i, sn := range page.Snippets {
		page.Snippets[i] = sn.Clone()
	}
	s.mu.RUnlock()

	return page, nil
}

// IncrementViewCount adds one view to a snippet.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, ok := s.snippets[id]
	if !ok {
		return models.ErrSnippetNotFound
	}
	sn.ViewCount++
	return nil
}

// ListTags returns tags matching opts.
func (s *Store) ListTags(ctx context.Context, opts models.TagListOptions) ([]*models.Tag, error) {
	opts.Normalize()

	s.mu.RLock()
	all := make([]*models.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		c := *t
		all = append(all, &c)
	}
	s.mu.RUnlock()

	return query.FilterTags(all, opts), nil
}

// GetTagBySlug retrieves a tag by slug.
func (s *Store) GetTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tags[slug]
	if !ok {
		return nil, models.ErrTagNotFound
	}
	c := *t
	return &c, nil
}

// CreateSession stores a login session.
func (s *Store) CreateSession(ctx context.Context, session *models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *session
	s.sessions[c.TokenHash] = &c
	return nil
}

// GetSession retrieves a login session by token hash.
func (s *Store) GetSession(ctx context.Context, tokenHash string) (*models.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	c := *sess
	return &c, nil
}

// DeleteSession removes a login session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

// DeleteExpiredSessions removes sessions expired at now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}

// Snapshot returns copies of all users, snippets and tags.
func (s *Store) Snapshot(ctx context.Context) (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := &models.Dataset{
		Users:    make([]*models.UserRecord, 0, len(s.users)),
		Snippets: make([]*models.Snippet, 0, len(s.snippets)),
		Tags:     make([]*models.Tag, 0, len(s.tags)),
	}
	for _, u := range s.users {
		ds.Users = append(ds.Users, models.NewUserRecord(u))
	}
	for _, sn := range s.snippets {
		ds.Snippets = append(ds.Snippets, sn.Clone())
	}
	query.SortSnippets(ds.Snippets, models.SortOldest)
	for _, t := range s.tags {
		c := *t
		ds.Tags = append(ds.Tags, &c)
	}
	query.SortTags(ds.Tags, models.TagSortName)
	return ds, nil
}

// Restore replaces all data with ds.
func (s *Store) Restore(ctx context.Context, ds *models.Dataset) error {
	ds = query.Recount(ds)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for _, r := range ds.Users {
		u := r.User()
		s.users[u.ID] = u
		s.byEmail[u.Email] = u.ID
		s.byUsername[u.Username] = u.ID
	}
	for _, sn := range ds.Snippets {
		s.snippets[sn.ID] = sn
		s.bySlug[sn.Slug] = sn.ID
	}
	for _, t := range ds.Tags {
		s.tags[t.Slug] = t
	}
	return nil
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
