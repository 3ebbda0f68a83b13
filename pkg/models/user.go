package models

import (
	"strings"
	"time"
)

// User is a registered author.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Username     string    `json:"username"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	SnippetCount int       `json:"snippet_count"`
}

// PublicUser is the view of a user other people may see.
type PublicUser struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Username     string    `json:"username"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	SnippetCount int       `json:"snippet_count"`
}

// Public strips private fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		DisplayName:  u.DisplayName,
		Username:     u.Username,
		PhotoURL:     u.PhotoURL,
		CreatedAt:    u.CreatedAt,
		SnippetCount: u.SnippetCount,
	}
}

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=80"`
}

// Normalize trims input and lowercases the email.
func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
}

// Validate checks the request against its field rules.
func (r *RegisterRequest) Validate() error {
	return validateStruct(r)
}

// LoginRequest is the body of a login call.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Validate checks the request against its field rules.
func (r *LoginRequest) Validate() error {
	return validateStruct(r)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuthSession is a server-side login session. Only the hash of the bearer
// token is stored.
type AuthSession struct {
	TokenHash string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *AuthSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NameCount is a name with an occurrence count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ProfileStats summarizes a user's snippets.
type ProfileStats struct {
	TotalSnippets int         `json:"total_snippets"`
	TotalViews    int64       `json:"total_views"`
	Languages     []NameCount `json:"languages"`
	TopTags       []NameCount `json:"top_tags"`
}

// Profile is everything shown on a user's profile page.
type Profile struct {
	User         PublicUser   `json:"user"`
	IsOwnProfile bool         `json:"is_own_profile"`
	Stats        ProfileStats `json:"stats"`
	Snippets     []*Snippet   `json:"snippets"`
}
