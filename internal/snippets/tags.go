package snippets

import (
	"context"
	"fmt"

	"github.com/fidde/codesnip/internal/slug"
	"github.com/fidde/codesnip/pkg/models"
)

// Tags returns the tag index.
func (s *Service) Tags(ctx context.Context, opts models.TagListOptions) ([]*models.Tag, error) {
	tags, err := s.store.ListTags(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// TagDetail returns a tag with its newest public snippets.
func (s *Service) TagDetail(ctx context.Context, tagSlug string) (*models.TagDetail, error) {
	tagSlug = slug.Make(tagSlug)
	if tagSlug == "" {
		return nil, models.ErrTagNotFound
	}

	tag, err := s.store.GetTagBySlug(ctx, tagSlug)
	if err != nil {
		return nil, err
	}

	page, err := s.store.ListSnippets(ctx, models.ListOptions{
		Tag:      tagSlug,
		IsPublic: models.Bool(true),
		Limit:    models.MaxListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing tag snippets: %w", err)
	}

	return &models.TagDetail{Tag: tag, Snippets: page.Snippets}, nil
}
