package models

import (
	"strings"
	"time"
)

// Snippet is a piece of shared code.
type Snippet struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Code            string    `json:"code"`
	Language        string    `json:"language"`
	Topic           string    `json:"topic,omitempty"`
	Tags            []string  `json:"tags"`
	UserID          string    `json:"user_id"`
	UserDisplayName string    `json:"user_display_name"`
	Username        string    `json:"username"`
	Complexity      string    `json:"complexity,omitempty"`
	IsPublic        bool      `json:"is_public"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ViewCount       int64     `json:"view_count"`
}

// Clone returns a deep copy so stores can hand out snippets without sharing
// the tag slice.
func (s *Snippet) Clone() *Snippet {
	c := *s
	c.Tags = append([]string{}, s.Tags...)
	return &c
}

// VisibleTo reports whether userID may read the snippet.
func (s *Snippet) VisibleTo(userID string) bool {
	return s.IsPublic || (userID != "" && s.UserID == userID)
}

// SnippetInput is the body of a create or update call.
type SnippetInput struct {
	Title      string   `json:"title" validate:"required,min=3,max=200"`
	Code       string   `json:"code" validate:"required,max=100000"`
	Language   string   `json:"language" validate:"required"`
	Topic      string   `json:"topic" validate:"max=100"`
	Tags       []string `json:"tags" validate:"max=5,dive,min=1,max=32"`
	IsPublic   *bool    `json:"is_public"`
	Complexity string   `json:"complexity" validate:"omitempty,complexity"`
}

// Normalize trims fields and de-duplicates tags case-insensitively, keeping
// the first spelling and the original order.
func (in *SnippetInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Language = strings.TrimSpace(in.Language)
	in.Topic = strings.TrimSpace(in.Topic)
	in.Complexity = strings.TrimSpace(in.Complexity)
	in.Tags = NormalizeTags(in.Tags)
}

// Validate checks the input against its field rules.
func (in *SnippetInput) Validate() error {
	return validateStruct(in)
}

// Public returns the visibility flag, defaulting to public.
func (in *SnippetInput) Public() bool {
	if in.IsPublic == nil {
		return true
	}
	return *in.IsPublic
}

// NormalizeTags trims, drops empty entries and removes case-insensitive duplicates.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Tag is a label with the number of snippets carrying it.
type Tag struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// TagDetail is a tag with its public snippets.
type TagDetail struct {
	Tag      *Tag       `json:"tag"`
	Snippets []*Snippet `json:"snippets"`
}

// Sort orders for snippet listings.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortViews  = "views"
)

// Sort orders for tag listings.
const (
	TagSortCount = "count"
	TagSortName  = "name"
)

// Listing limits.
const (
	DefaultListLimit = 12
	MaxListLimit     = 100
)

// ListOptions filters and orders a snippet listing.
type ListOptions struct {
	UserID   string
	Language string
	Tag      string
	Search   string
	// IsPublic restricts by visibility when set.
	IsPublic *bool
	Sort     string
	Limit    int
	Offset   int
}

// Normalize applies defaults and clamps the page size.
func (o *ListOptions) Normalize() {
	o.Search = strings.TrimSpace(o.Search)
	o.Tag = strings.TrimSpace(o.Tag)
	switch o.Sort {
	case SortOldest, SortViews:
	default:
		o.Sort = SortNewest
	}
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// SnippetPage is one page of a snippet listing.
type SnippetPage struct {
	Snippets []*Snippet `json:"snippets"`
	Total    int        `json:"total"`
}

// TagListOptions filters and orders the tag index.
type TagListOptions struct {
	Search string
	Sort   string
	// Limit of zero means no limit.
	Limit int
}

// Normalize applies defaults.
func (o *TagListOptions) Normalize() {
	o.Search = strings.TrimSpace(o.Search)
	if o.Sort != TagSortName {
		o.Sort = TagSortCount
	}
	if o.Limit < 0 {
		o.Limit = 0
	}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
