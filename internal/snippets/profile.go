package snippets

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/fidde/codesnip/internal/slug"
	"github.com/fidde/codesnip/pkg/models"
)

const topTagsLimit = 5

// Profile returns a user with their snippets and aggregate stats. The owner
// sees private snippets too. opts controls the page of snippets returned;
// stats always cover every visible snippet.
func (s *Service) Profile(ctx context.Context, username string, viewer *models.User, opts models.ListOptions) (*models.Profile, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	own := viewer != nil && viewer.ID == user.ID
	opts.UserID = user.ID
	opts.IsPublic = nil
	if !own {
		opts.IsPublic = models.Bool(true)
	}
	opts.Language, opts.Tag, opts.Search = "", "", ""
	opts.Normalize()

	var (
		page  *models.SnippetPage
		stats models.ProfileStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.ListSnippets(gctx, opts)
		if err != nil {
			return fmt.Errorf("listing profile snippets: %w", err)
		}
		page = p
		return nil
	})
	g.Go(func() error {
		all, err := s.allSnippets(gctx, models.ListOptions{UserID: user.ID, IsPublic: opts.IsPublic})
		if err != nil {
			return fmt.Errorf("collecting profile stats: %w", err)
		}
		stats = ComputeStats(all)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.Profile{
		User:         user.Public(),
		IsOwnProfile: own,
		Stats:        stats,
		Snippets:     page.Snippets,
	}, nil
}

// allSnippets pages through every snippet matching opts.
func (s *Service) allSnippets(ctx context.Context, opts models.ListOptions) ([]*models.Snippet, error) {
	opts.Sort = models.SortNewest
	opts.Limit = models.MaxListLimit
	opts.Offset = 0

	var out []*models.Snippet
	for {
		page, err := s.store.ListSnippets(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Snippets...)
		if len(page.Snippets) < opts.Limit || len(out) >= page.Total {
			return out, nil
		}
		opts.Offset += len(page.Snippets)
	}
}

// ComputeStats aggregates snippet counts, views, languages and tags.
// Languages are ordered by count descending then name; tags likewise, capped
// at five.
func ComputeStats(list []*models.Snippet) models.ProfileStats {
	stats := models.ProfileStats{
		TotalSnippets: len(list),
		Languages:     []models.NameCount{},
		TopTags:       []models.NameCount{},
	}

	langs := make(map[string]int)
	tagCounts := make(map[string]int)
	tagNames := make(map[string]string)
	for _, sn := range list {
		stats.TotalViews += sn.ViewCount
		langs[sn.Language]++
		for _, t := range sn.Tags {
			key := slug.Make(t)
			if _, ok := tagNames[key]; !ok {
				tagNames[key] = t
			}
			tagCounts[key]++
		}
	}

	for name, n := range langs {
		stats.Languages = append(stats.Languages, models.NameCount{Name: name, Count: n})
	}
	sortCounts(stats.Languages)

	for key, n := range tagCounts {
		stats.TopTags = append(stats.TopTags, models.NameCount{Name: tagNames[key], Count: n})
	}
	sortCounts(stats.TopTags)
	if len(stats.TopTags) > topTagsLimit {
		stats.TopTags = stats.TopTags[:topTagsLimit]
	}
	return stats
}

func sortCounts(list []models.NameCount) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Name < list[j].Name
	})
}
