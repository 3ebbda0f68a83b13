// Package query holds the filtering, ordering and counter rules shared by the
// storage backends that evaluate listings in Go.
package query

import (
	"sort"
	"strings"

	"github.com/fidde/codesnip/internal/slug"
	"github.com/fidde/codesnip/pkg/models"
)

// TagSlug returns the identity of a tag name. Two names with the same slug are
// the same tag.
func TagSlug(name string) string {
	return slug.Make(name)
}

// MatchSnippet reports whether s passes the filters in opts.
func MatchSnippet(s *models.Snippet, opts models.ListOptions) bool {
	if opts.UserID != "" && s.UserID != opts.UserID {
		return false
	}
	if opts.IsPublic != nil && s.IsPublic != *opts.IsPublic {
		return false
	}
	if opts.Language != "" && !strings.EqualFold(s.Language, opts.Language) {
		return false
	}
	if opts.Tag != "" && !HasTag(s, TagSlug(opts.Tag)) {
		return false
	}
	if opts.Search != "" {
		q := strings.ToLower(opts.Search)
		if !strings.Contains(strings.ToLower(s.Title), q) &&
			!strings.Contains(strings.ToLower(s.Code), q) &&
			!strings.Contains(strings.ToLower(s.Topic), q) {
			return false
		}
	}
	return true
}

// HasTag reports whether s carries the tag with the given slug.
func HasTag(s *models.Snippet, tagSlug string) bool {
	if tagSlug == "" {
		return false
	}
	for _, t := range s.Tags {
		if TagSlug(t) == tagSlug {
			return true
		}
	}
	return false
}

// SortSnippets orders list in place. Ties fall back to id so the order is
// stable across calls.
func SortSnippets(list []*models.Snippet, order string) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch order {
		case models.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case models.SortViews:
			if a.ViewCount != b.ViewCount {
				return a.ViewCount > b.ViewCount
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}

// Page filters, sorts and slices all according to opts. opts must already be
// normalized.
func Page(all []*models.Snippet, opts models.ListOptions) *models.SnippetPage {
	matched := make([]*models.Snippet, 0, len(all))
	for _, s := range all {
		if MatchSnippet(s, opts) {
			matched = append(matched, s)
		}
	}
	SortSnippets(matched, opts.Sort)

	total := len(matched)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)

	return &models.SnippetPage{
		Snippets: matched[start:end],
		Total:    total,
	}
}

// FilterTags applies search, ordering and limit to a tag list.
func FilterTags(all []*models.Tag, opts models.TagListOptions) []*models.Tag {
	q := strings.ToLower(opts.Search)
	out := make([]*models.Tag, 0, len(all))
	for _, t := range all {
		if q != "" && !strings.Contains(strings.ToLower(t.Name), q) {
			continue
		}
		out = append(out, t)
	}
	SortTags(out, opts.Sort)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// SortTags orders tags by count descending or by name ascending.
func SortTags(tags []*models.Tag, order string) {
	sort.SliceStable(tags, func(i, j int) bool {
		a, b := tags[i], tags[j]
		if order != models.TagSortName && a.Count != b.Count {
			return a.Count > b.Count
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.Slug < b.Slug
	})
}

// TagRef is a tag name with its slug.
type TagRef struct {
	Name string
	Slug string
}

// Refs converts tag names to refs, dropping names with an empty slug and
// duplicates by slug.
func Refs(names []string) []TagRef {
	out := make([]TagRef, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		s := TagSlug(n)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, TagRef{Name: n, Slug: s})
	}
	return out
}

// Diff returns the tags present only in next (added) and only in prev
// (removed), compared by slug.
func Diff(prev, next []string) (added, removed []TagRef) {
	p, n := Refs(prev), Refs(next)

	inPrev := make(map[string]struct{}, len(p))
	for _, r := range p {
		inPrev[r.Slug] = struct{}{}
	}
	inNext := make(map[string]struct{}, len(n))
	for _, r := range n {
		inNext[r.Slug] = struct{}{}
		if _, ok := inPrev[r.Slug]; !ok {
			added = append(added, r)
		}
	}
	for _, r := range p {
		if _, ok := inNext[r.Slug]; !ok {
			removed = append(removed, r)
		}
	}
	return added, removed
}

// Recount returns a copy of ds whose tag counters and user snippet counts are
// derived from its snippets. Existing tag display names are kept.
func Recount(ds *models.Dataset) *models.Dataset {
	names := make(map[string]string, len(ds.Tags))
	for _, t := range ds.Tags {
		if t.Slug != "" {
			names[t.Slug] = t.Name
		}
	}

	counts := make(map[string]*models.Tag)
	perUser := make(map[string]int)
	snippets := make([]*models.Snippet, 0, len(ds.Snippets))
	for _, s := range ds.Snippets {
		snippets = append(snippets, s.Clone())
		perUser[s.UserID]++
		for _, r := range Refs(s.Tags) {
			t, ok := counts[r.Slug]
			if !ok {
				name := names[r.Slug]
				if name == "" {
					name = r.Name
				}
				t = &models.Tag{Name: name, Slug: r.Slug}
				counts[r.Slug] = t
			}
			t.Count++
		}
	}

	users := make([]*models.UserRecord, 0, len(ds.Users))
	for _, u := range ds.Users {
		c := *u
		c.SnippetCount = perUser[u.ID]
		users = append(users, &c)
	}

	tags := make([]*models.Tag, 0, len(counts))
	for _, t := range counts {
		tags = append(tags, t)
	}
	SortTags(tags, models.TagSortName)

	return &models.Dataset{Users: users, Snippets: snippets, Tags: tags}
}
