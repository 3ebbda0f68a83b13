// Package storagetest is a conformance suite run against every storage backend.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidde/codesnip/internal/storage"
	"github.com/fidde/codesnip/pkg/models"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Storage

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"Users", testUsers},
		{"SnippetCRUD", testSnippetCRUD},
		{"TagCounters", testTagCounters},
		{"ListFilters", testListFilters},
		{"ListSortAndPaging", testListSortAndPaging},
		{"Tags", testTags},
		{"ViewCount", testViewCount},
		{"ConcurrentViews", testConcurrentViews},
		{"Sessions", testSessions},
		{"SnapshotRestore", testSnapshotRestore},
		{"Clear", testClear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewUser returns a user with predictable fields.
func NewUser(id string) *models.User {
	return &models.User{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  "User " + id,
		Username:     "user-" + id,
		PasswordHash: "hash-" + id,
		CreatedAt:    base,
	}
}

// NewSnippet returns a public snippet owned by userID created n minutes
// after a fixed base time.
func NewSnippet(id, userID string, n int, tags ...string) *models.Snippet {
	at := base.Add(time.Duration(n) * time.Minute)
	if tags == nil {
		tags = []string{}
	}
	return &models.Snippet{
		ID:         id,
		Title:      "Snippet " + id,
		Slug:       "snippet-" + id,
		Code:       "console.log(" + id + ")",
		Language:   "javascript",
		Tags:       tags,
		UserID:     userID,
		Username:   "user-" + userID,
		Complexity: "O(1)",
		IsPublic:   true,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func ids(list []*models.Snippet) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func testUsers(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	u := NewUser("u1")
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

	got, err = s.GetUserByUsername(ctx, "user-u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	got, err = s.GetUserByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	_, err = s.GetUserByUsername(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	dupEmail := NewUser("u2")
	dupEmail.Email = u.Email
	assert.ErrorIs(t, s.CreateUser(ctx, dupEmail), models.ErrEmailTaken)

	dupName := NewUser("u3")
	dupName.Username = u.Username
	assert.ErrorIs(t, s.CreateUser(ctx, dupName), models.ErrUsernameTaken)
}

func testSnippetCRUD(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))

	sn := NewSnippet("s1", "u1", 0, "Go", "sorting")
	require.NoError(t, s.CreateSnippet(ctx, sn))

	got, err := s.GetSnippetBySlug(ctx, "snippet-s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, []string{"Go", "sorting"}, got.Tags)
	assert.True(t, got.IsPublic)

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, user.SnippetCount)

	dup := NewSnippet("s2", "u1", 1)
	dup.Slug = sn.Slug
	assert.ErrorIs(t, s.CreateSnippet(ctx, dup), models.ErrSlugTaken)

	orphan := NewSnippet("s3", "nobody", 1)
	assert.ErrorIs(t, s.CreateSnippet(ctx, orphan), models.ErrUserNotFound)

	got.Title = "Renamed"
	got.Slug = "ignored"
	got.IsPublic = false
	got.UpdatedAt = got.UpdatedAt.Add(time.Hour)
	require.NoError(t, s.UpdateSnippet(ctx, got))

	got, err = s.GetSnippet(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "snippet-s1", got.Slug)
	assert.False(t, got.IsPublic)

	assert.ErrorIs(t, s.UpdateSnippet(ctx, NewSnippet("missing", "u1", 0)), models.ErrSnippetNotFound)

	require.NoError(t, s.DeleteSnippet(ctx, "s1"))
	_, err = s.GetSnippet(ctx, "s1")
	assert.ErrorIs(t, err, models.ErrSnippetNotFound)
	assert.ErrorIs(t, s.DeleteSnippet(ctx, "s1"), models.ErrSnippetNotFound)

	user, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, user.SnippetCount)
}

func tagCount(t *testing.T, s storage.Storage, slug string) int {
	t.Helper()
	tag, err := s.GetTagBySlug(context.Background(), slug)
	if err != nil {
		require.ErrorIs(t, err, models.ErrTagNotFound)
		return 0
	}
	return tag.Count
}

func testTagCounters(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))

	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("a", "u1", 0, "Go", "algorithms")))
	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("b", "u1", 1, "go", "web")))

	assert.Equal(t, 2, tagCount(t, s, "go"))
	assert.Equal(t, 1, tagCount(t, s, "algorithms"))
	assert.Equal(t, 1, tagCount(t, s, "web"))

	tag, err := s.GetTagBySlug(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, "Go", tag.Name, "first spelling wins")

	b, err := s.GetSnippet(ctx, "b")
	require.NoError(t, err)
	b.Tags = []string{"web", "testing"}
	require.NoError(t, s.UpdateSnippet(ctx, b))

	assert.Equal(t, 1, tagCount(t, s, "go"))
	assert.Equal(t, 1, tagCount(t, s, "web"))
	assert.Equal(t, 1, tagCount(t, s, "testing"))

	require.NoError(t, s.DeleteSnippet(ctx, "a"))
	assert.Equal(t, 0, tagCount(t, s, "go"))
	assert.Equal(t, 0, tagCount(t, s, "algorithms"))
	assert.Equal(t, 1, tagCount(t, s, "web"))
}

func testListFilters(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))
	require.NoError(t, s.CreateUser(ctx, NewUser("u2")))

	a := NewSnippet("a", "u1", 0, "sorting")
	a.Title = "Quick sort"
	b := NewSnippet("b", "u1", 1)
	b.Title = "Écoles de tri"
	b.Language = "python"
	b.Topic = "Dynamic Programming"
	c := NewSnippet("c", "u2", 2, "Sorting")
	c.Code = "arr.sort((x, y) => x - y) // 100%_done"
	d := NewSnippet("d", "u2", 3)
	d.IsPublic = false
	for _, sn := range []*models.Snippet{a, b, c, d} {
		require.NoError(t, s.CreateSnippet(ctx, sn))
	}

	tests := []struct {
		name string
		opts models.ListOptions
		want []string
	}{
		{"all", models.ListOptions{}, []string{"d", "c", "b", "a"}},
		{"public", models.ListOptions{IsPublic: models.Bool(true)}, []string{"c", "b", "a"}},
		{"user", models.ListOptions{UserID: "u2"}, []string{"d", "c"}},
		{"language", models.ListOptions{Language: "python"}, []string{"b"}},
		{"tag slug", models.ListOptions{Tag: "sorting"}, []string{"c", "a"}},
		{"tag name", models.ListOptions{Tag: "Sorting"}, []string{"c", "a"}},
		{"search title", models.ListOptions{Search: "QUICK"}, []string{"a"}},
		{"search topic", models.ListOptions{Search: "dynamic"}, []string{"b"}},
		{"search code", models.ListOptions{Search: "arr.sort"}, []string{"c"}},
		{"search wildcard literal", models.ListOptions{Search: "%_done"}, []string{"c"}},
		{"search non-ASCII lower", models.ListOptions{Search: "écoles"}, []string{"b"}},
		{"search non-ASCII upper", models.ListOptions{Search: "ÉCOLES DE"}, []string{"b"}},
		{"no match", models.ListOptions{Search: "zzz"}, []string{}},
		{"combined", models.ListOptions{IsPublic: models.Bool(true), UserID: "u1", Tag: "sorting"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.ListSnippets(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(page.Snippets))
			assert.Equal(t, len(tt.want), page.Total)
		})
	}
}

func testListSortAndPaging(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))

	for i := 0; i < 15; i++ {
		sn := NewSnippet(fmt.Sprintf("s%02d", i), "u1", i)
		sn.ViewCount = int64(i % 4)
		require.NoError(t, s.CreateSnippet(ctx, sn))
	}

	page, err := s.ListSnippets(ctx, models.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 15, page.Total)
	require.Len(t, page.Snippets, models.DefaultListLimit)
	assert.Equal(t, "s14", page.Snippets[0].ID)

	page, err = s.ListSnippets(ctx, models.ListOptions{Sort: models.SortOldest, Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"s03", "s04"}, ids(page.Snippets))

	page, err = s.ListSnippets(ctx, models.ListOptions{Sort: models.SortViews, Limit: 5})
	require.NoError(t, err)
	// views 3 for s03, s07, s11; newest first among equals
	assert.Equal(t, []string{"s11", "s07", "s03", "s14", "s10"}, ids(page.Snippets))

	page, err = s.ListSnippets(ctx, models.ListOptions{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, page.Snippets)
	assert.Equal(t, 15, page.Total)
}

func testTags(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))

	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("a", "u1", 0, "react", "hooks")))
	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("b", "u1", 1, "react", "algorithms")))
	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("c", "u1", 2, "react", "hooks")))

	tags, err := s.ListTags(ctx, models.TagListOptions{})
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "react", tags[0].Slug)
	assert.Equal(t, 3, tags[0].Count)
	assert.Equal(t, "hooks", tags[1].Slug)

	tags, err = s.ListTags(ctx, models.TagListOptions{Sort: models.TagSortName})
	require.NoError(t, err)
	assert.Equal(t, "algorithms", tags[0].Slug)

	tags, err = s.ListTags(ctx, models.TagListOptions{Search: "OOK"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "hooks", tags[0].Slug)

	tags, err = s.ListTags(ctx, models.TagListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, tags, 1)

	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("d", "u1", 3, "Élan")))
	tags, err = s.ListTags(ctx, models.TagListOptions{Search: "élan"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "Élan", tags[0].Name)

	_, err = s.GetTagBySlug(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrTagNotFound)
}

func testViewCount(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))
	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("a", "u1", 0)))

	require.NoError(t, s.IncrementViewCount(ctx, "a"))
	require.NoError(t, s.IncrementViewCount(ctx, "a"))

	got, err := s.GetSnippet(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)

	assert.ErrorIs(t, s.IncrementViewCount(ctx, "missing"), models.ErrSnippetNotFound)

	// updates keep the stored view count
	got.ViewCount = 0
	require.NoError(t, s.UpdateSnippet(ctx, got))
	got, err = s.GetSnippet(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)
}

func testConcurrentViews(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))
	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("a", "u1", 0)))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementViewCount(ctx, "a"))
		}()
	}
	wg.Wait()

	got, err := s.GetSnippet(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.ViewCount)
}

func testSessions(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))

	live := &models.AuthSession{TokenHash: "live", UserID: "u1", CreatedAt: base, ExpiresAt: base.Add(time.Hour)}
	dead := &models.AuthSession{TokenHash: "dead", UserID: "u1", CreatedAt: base, ExpiresAt: base.Add(-time.Minute)}
	require.NoError(t, s.CreateSession(ctx, live))
	require.NoError(t, s.CreateSession(ctx, dead))

	got, err := s.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, live.ExpiresAt.Equal(got.ExpiresAt))

	n, err := s.DeleteExpiredSessions(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetSession(ctx, "dead")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	require.NoError(t, s.DeleteSession(ctx, "live"))
	_, err = s.GetSession(ctx, "live")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	require.NoError(t, s.DeleteSession(ctx, "live"))
}

func testSnapshotRestore(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))
	require.NoError(t, s.CreateUser(ctx, NewUser("u2")))
	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("a", "u1", 0, "Go")))
	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("b", "u2", 1, "go", "web")))
	require.NoError(t, s.IncrementViewCount(ctx, "b"))
	require.NoError(t, s.CreateSession(ctx, &models.AuthSession{TokenHash: "t", UserID: "u1", CreatedAt: base, ExpiresAt: base.Add(time.Hour)}))

	ds, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.BackupStats{Users: 2, Snippets: 2, Tags: 2}, ds.Stats())
	assert.Equal(t, []string{"a", "b"}, ids(ds.Snippets))
	for _, u := range ds.Users {
		assert.NotEmpty(t, u.PasswordHash)
	}

	require.NoError(t, s.Clear(ctx))
	page, err := s.ListSnippets(ctx, models.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	// counters in the dataset are recomputed on restore
	ds.Tags[0].Count = 99
	ds.Users[0].SnippetCount = 42
	require.NoError(t, s.Restore(ctx, ds))

	got, err := s.GetSnippetBySlug(ctx, "snippet-b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)
	assert.Equal(t, []string{"go", "web"}, got.Tags)

	assert.Equal(t, 2, tagCount(t, s, "go"))
	u1, err := s.GetUserByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, u1.SnippetCount)
	assert.Equal(t, "hash-u1", u1.PasswordHash)

	_, err = s.GetSession(ctx, "t")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func testClear(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))
	require.NoError(t, s.CreateSnippet(ctx, NewSnippet("a", "u1", 0, "go")))
	require.NoError(t, s.Clear(ctx))

	_, err := s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	tags, err := s.ListTags(ctx, models.TagListOptions{})
	require.NoError(t, err)
	assert.Empty(t, tags)

	// usable after clear
	require.NoError(t, s.CreateUser(ctx, NewUser("u1")))
}
