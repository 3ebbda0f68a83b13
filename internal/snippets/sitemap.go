package snippets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fidde/codesnip/internal/slug"
)

// SitemapEntry is one URL of the sitemap.
type SitemapEntry struct {
	Loc      string
	LastMod  time.Time
	Priority float64 // zero means unset
}

// Sitemap lists the landing pages, every public snippet and every tag that
// appears on a public snippet.
func (s *Service) Sitemap(ctx context.Context, baseURL string) ([]SitemapEntry, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	now := s.now().UTC()

	ds, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("building sitemap: %w", err)
	}

	entries := []SitemapEntry{
		{Loc: baseURL, LastMod: now, Priority: 1},
		{Loc: baseURL + "/snippets", LastMod: now, Priority: 0.8},
		{Loc: baseURL + "/tags", LastMod: now, Priority: 0.8},
	}

	publicTags := make(map[string]bool)
	for _, sn := range ds.Snippets {
		if !sn.IsPublic {
			continue
		}
		lastMod := sn.UpdatedAt
		if lastMod.IsZero() {
			lastMod = now
		}
		entries = append(entries, SitemapEntry{Loc: baseURL + "/snippets/" + sn.Slug, LastMod: lastMod})
		for _, t := range sn.Tags {
			publicTags[slug.Make(t)] = true
		}
	}

	for _, t := range ds.Tags {
		if !publicTags[t.Slug] {
			continue
		}
		entries = append(entries, SitemapEntry{Loc: baseURL + "/tags/" + t.Slug, LastMod: now})
	}
	return entries, nil
}

