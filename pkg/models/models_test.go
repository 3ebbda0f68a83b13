package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() SnippetInput {
	return SnippetInput{
		Title:    "Binary search",
		Code:     "function binarySearch(a, x) {}",
		Language: "javascript",
		Tags:     []string{"search"},
	}
}

func TestSnippetInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *SnippetInput)
		field  string
		msg    string
	}{
		{
			name:   "short title",
			mutate: func(in *SnippetInput) { in.Title = "ab" },
			field:  "title",
			msg:    "Title must be at least 3 characters",
		},
		{
			name:   "long title",
			mutate: func(in *SnippetInput) { in.Title = strings.Repeat("x", 201) },
			field:  "title",
			msg:    "Title must be at most 200 characters",
		},
		{
			name:   "missing code",
			mutate: func(in *SnippetInput) { in.Code = "" },
			field:  "code",
			msg:    "Code is required",
		},
		{
			name:   "missing language",
			mutate: func(in *SnippetInput) { in.Language = "" },
			field:  "language",
			msg:    "Please select a language",
		},
		{
			name:   "too many tags",
			mutate: func(in *SnippetInput) { in.Tags = []string{"a", "b", "c", "d", "e", "f"} },
			field:  "tags",
			msg:    "Maximum 5 tags allowed",
		},
		{
			name:   "long tag",
			mutate: func(in *SnippetInput) { in.Tags = []string{strings.Repeat("t", 33)} },
			field:  "tags",
			msg:    "Tag must be at most 32 characters",
		},
		{
			name:   "unknown complexity",
			mutate: func(in *SnippetInput) { in.Complexity = "O(n^3)" },
			field:  "complexity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			err := in.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Contains(t, verr.Fields, tt.field)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, verr.Fields[tt.field])
			}
		})
	}
}

func TestSnippetInput_ValidAndDefaults(t *testing.T) {
	in := validInput()
	in.Complexity = "O(log n)"
	require.NoError(t, in.Validate())
	assert.True(t, in.Public())

	in.IsPublic = Bool(false)
	assert.False(t, in.Public())
}

func TestSnippetInput_Normalize(t *testing.T) {
	in := SnippetInput{
		Title: "  Quick sort  ",
		Topic: " algorithms ",
		Tags:  []string{" Go ", "go", "", "sorting", "GO", "  "},
	}
	in.Normalize()

	assert.Equal(t, "Quick sort", in.Title)
	assert.Equal(t, "algorithms", in.Topic)
	assert.Equal(t, []string{"Go", "sorting"}, in.Tags)
}

func TestRegisterRequest_Validate(t *testing.T) {
	req := RegisterRequest{Email: "  Ada@Example.COM ", Password: "secret1", DisplayName: " Ada "}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "ada@example.com", req.Email)
	assert.Equal(t, "Ada", req.DisplayName)

	bad := RegisterRequest{Email: "nope", Password: "123", DisplayName: "A"}
	err := bad.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid email address", verr.Fields["email"])
	assert.Equal(t, "Password must be at least 6 characters", verr.Fields["password"])
	assert.Equal(t, "Display name must be at least 2 characters", verr.Fields["display_name"])
}

func TestLoginRequest_Validate(t *testing.T) {
	req := LoginRequest{Email: "ada@example.com", Password: "secret1"}
	require.NoError(t, req.Validate())

	req.Password = ""
	var verr *ValidationError
	require.ErrorAs(t, req.Validate(), &verr)
	assert.Equal(t, "Password is required", verr.Fields["password"])
}

func TestListOptions_Normalize(t *testing.T) {
	o := ListOptions{Sort: "bogus", Limit: 0, Offset: -4}
	o.Normalize()
	assert.Equal(t, SortNewest, o.Sort)
	assert.Equal(t, DefaultListLimit, o.Limit)
	assert.Equal(t, 0, o.Offset)

	o = ListOptions{Sort: SortViews, Limit: 1000}
	o.Normalize()
	assert.Equal(t, SortViews, o.Sort)
	assert.Equal(t, MaxListLimit, o.Limit)

	to := TagListOptions{Sort: "whatever", Limit: -1}
	to.Normalize()
	assert.Equal(t, TagSortCount, to.Sort)
	assert.Equal(t, 0, to.Limit)
}

func TestSnippet_VisibleTo(t *testing.T) {
	s := &Snippet{UserID: "u1", IsPublic: false}
	assert.True(t, s.VisibleTo("u1"))
	assert.False(t, s.VisibleTo("u2"))
	assert.False(t, s.VisibleTo(""))

	s.IsPublic = true
	assert.True(t, s.VisibleTo(""))
}

func TestSnippet_CloneDoesNotShareTags(t *testing.T) {
	s := &Snippet{Tags: []string{"go"}}
	c := s.Clone()
	c.Tags[0] = "rust"
	assert.Equal(t, "go", s.Tags[0])
}

func TestValidateBackupName(t *testing.T) {
	for _, name := range []string{"a", "nightly", "pre-release-2024"} {
		assert.NoError(t, ValidateBackupName(name), name)
	}
	for _, name := range []string{"", "-lead", "trail-", "Upper", "has space", "dots.json", strings.Repeat("a", 129)} {
		assert.ErrorIs(t, ValidateBackupName(name), ErrInvalidBackupName, name)
	}
}

func TestUserRecordRoundTrip(t *testing.T) {
	u := &User{ID: "u1", Email: "a@b.c", PasswordHash: "hash", CreatedAt: time.Unix(10, 0).UTC()}
	assert.Equal(t, u, NewUserRecord(u).User())
}

func TestNotFoundErrors(t *testing.T) {
	for _, err := range []error{ErrUserNotFound, ErrSnippetNotFound, ErrTagNotFound, ErrSessionNotFound, ErrBackupNotFound} {
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.NotErrorIs(t, ErrSnippetNotFound, ErrUserNotFound)
	assert.NotErrorIs(t, ErrEmailTaken, ErrNotFound)
}
