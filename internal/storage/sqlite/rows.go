package sqlite

import (
	"time"

	"github.com/fidde/codesnip/pkg/models"
)

// Row types mirror the tables. Timestamps are stored as unix nanoseconds.

type userRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	DisplayName  string `db:"display_name"`
	Username     string `db:"username"`
	PhotoURL     string `db:"photo_url"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
	SnippetCount int    `db:"snippet_count"`
}

func toUserRow(u *models.User) userRow {
	return userRow{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Username:     u.Username,
		PhotoURL:     u.PhotoURL,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UnixNano(),
		SnippetCount: u.SnippetCount,
	}
}

func (r *userRow) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		Username:     r.Username,
		PhotoURL:     r.PhotoURL,
		PasswordHash: r.PasswordHash,
		CreatedAt:    fromNanos(r.CreatedAt),
		SnippetCount: r.SnippetCount,
	}
}

type snippetRow struct {
	ID              string `db:"id"`
	Title           string `db:"title"`
	Slug            string `db:"slug"`
	Code            string `db:"code"`
	Language        string `db:"language"`
	Topic           string `db:"topic"`
	UserID          string `db:"user_id"`
	UserDisplayName string `db:"user_display_name"`
	Username        string `db:"username"`
	Complexity      string `db:"complexity"`
	IsPublic        bool   `db:"is_public"`
	CreatedAt       int64  `db:"created_at"`
	UpdatedAt       int64  `db:"updated_at"`
	ViewCount       int64  `db:"view_count"`
}

func toSnippetRow(s *models.Snippet) snippetRow {
	return snippetRow{
		ID:              s.ID,
		Title:           s.Title,
		Slug:            s.Slug,
		Code:            s.Code,
		Language:        s.Language,
		Topic:           s.Topic,
		UserID:          s.UserID,
		UserDisplayName: s.UserDisplayName,
		Username:        s.Username,
		Complexity:      s.Complexity,
		IsPublic:        s.IsPublic,
		CreatedAt:       s.CreatedAt.UnixNano(),
		UpdatedAt:       s.UpdatedAt.UnixNano(),
		ViewCount:       s.ViewCount,
	}
}

func (r *snippetRow) toModel() *models.Snippet {
	return &models.Snippet{
		ID:              r.ID,
		Title:           r.Title,
		Slug:            r.Slug,
		Code:            r.Code,
		Language:        r.Language,
		Topic:           r.Topic,
		Tags:            []string{},
		UserID:          r.UserID,
		UserDisplayName: r.UserDisplayName,
		Username:        r.Username,
		Complexity:      r.Complexity,
		IsPublic:        r.IsPublic,
		CreatedAt:       fromNanos(r.CreatedAt),
		UpdatedAt:       fromNanos(r.UpdatedAt),
		ViewCount:       r.ViewCount,
	}
}

type snippetTagRow struct {
	SnippetID string `db:"snippet_id"`
	Name      string `db:"name"`
}

type tagRow struct {
	Slug  string `db:"slug"`
	Name  string `db:"name"`
	Count int    `db:"count"`
}

func (r *tagRow) toModel() *models.Tag {
	return &models.Tag{Name: r.Name, Slug: r.Slug, Count: r.Count}
}

type sessionRow struct {
	TokenHash string `db:"token_hash"`
	UserID    string `db:"user_id"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
}

func toSessionRow(s *models.AuthSession) sessionRow {
	return sessionRow{
		TokenHash: s.TokenHash,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt.UnixNano(),
		ExpiresAt: s.ExpiresAt.UnixNano(),
	}
}

func (r *sessionRow) toModel() *models.AuthSession {
	return &models.AuthSession{
		TokenHash: r.TokenHash,
		UserID:    r.UserID,
		CreatedAt: fromNanos(r.CreatedAt),
		ExpiresAt: fromNanos(r.ExpiresAt),
	}
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
