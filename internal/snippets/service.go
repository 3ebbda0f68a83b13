// Package snippets implements snippet authoring, browsing, profiles and the
// tag index on top of a storage backend.
package snippets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fidde/codesnip/internal/analytics"
	"github.com/fidde/codesnip/internal/complexity"
	"github.com/fidde/codesnip/internal/config"
	"github.com/fidde/codesnip/internal/metrics"
	"github.com/fidde/codesnip/internal/slug"
	"github.com/fidde/codesnip/internal/storage"
	"github.com/fidde/codesnip/pkg/models"
)

const slugAttempts = 3

// Service is the snippet application service.
type Service struct {
	store     storage.Storage
	languages *config.Languages
	recorder  *analytics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a snippet service. A nil catalogue means the built-in
// languages; a nil recorder discards view events.
func NewService(store storage.Storage, languages *config.Languages, recorder *analytics.Recorder, logger *slog.Logger) *Service {
	if languages == nil {
		languages = config.DefaultLanguages()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = analytics.NewRecorder(nil, logger)
	}
	return &Service{
		store:     store,
		languages: languages,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Languages returns the language catalogue.
func (s *Service) Languages() *config.Languages {
	return s.languages
}

// Analyze runs the complexity estimator.
func (s *Service) Analyze(code string) complexity.Estimate {
	est := complexity.EstimateComplexity(code)
	metrics.ObserveEstimate(string(est.Class))
	return est
}

// prepare normalizes and validates input, resolving the language to its
// catalogue name.
func (s *Service) prepare(in *models.SnippetInput) error {
	in.Normalize()

	verr := &models.ValidationError{}
	if err := in.Validate(); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}

	if in.Language != "" {
		name, ok := s.languages.Canonical(in.Language)
		if ok {
			in.Language = name
		} else {
			verr.Add("language", fmt.Sprintf("Unsupported language %q", in.Language))
		}
	}
	for _, t := range in.Tags {
		if slug.Make(t) == "" {
			verr.Add("tags", "Tags must contain letters or digits")
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Create validates input and stores a new snippet owned by user.
func (s *Service) Create(ctx context.Context, user *models.User, in models.SnippetInput) (*models.Snippet, error) {
	if user == nil {
		return nil, models.ErrUnauthorized
	}
	if err := s.prepare(&in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sn := &models.Snippet{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Code:            in.Code,
		Language:        in.Language,
		Topic:           in.Topic,
		Tags:            in.Tags,
		UserID:          user.ID,
		UserDisplayName: user.DisplayName,
		Username:        user.Username,
		Complexity:      in.Complexity,
		IsPublic:        in.Public(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if sn.Complexity == "" {
		sn.Complexity = string(s.Analyze(sn.Code).Class)
	}

	base := slug.MakeOr(in.Title, "snippet")
	var err error
	for attempt := 0; attempt < slugAttempts; attempt++ {
		sn.Slug = slug.WithSuffix(base)
		err = s.store.CreateSnippet(ctx, sn)
		if !errors.Is(err, models.ErrSlugTaken) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	metrics.SnippetCreated()
	s.logger.Info("snippet created", "slug", sn.Slug, "user_id", user.ID, "complexity", sn.Complexity)
	return sn, nil
}

// Get returns a snippet by slug. Private snippets are only visible to their
// owner. A view by anyone but the owner is counted; clientKey identifies
// anonymous viewers.
func (s *Service) Get(ctx context.Context, slugStr string, viewer *models.User, clientKey string) (*models.Snippet, error) {
	sn, err := s.store.GetSnippetBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}

	viewerID := ""
	if viewer != nil {
		viewerID = viewer.ID
	}
	if !sn.VisibleTo(viewerID) {
		return nil, models.ErrSnippetNotFound
	}
	if viewerID == sn.UserID {
		return sn, nil
	}

	if err := s.store.IncrementViewCount(ctx, sn.ID); err != nil {
		s.logger.Warn("failed to count view", "slug", sn.Slug, "error", err)
		return sn, nil
	}
	sn.ViewCount++
	metrics.SnippetViewed()

	key := "anon:" + clientKey
	if viewerID != "" {
		key = "user:" + viewerID
	}
	s.recorder.Record(analytics.ViewEvent{SnippetID: sn.ID, ViewerKey: key, At: s.now()})
	return sn, nil
}

// owned loads a snippet and checks that user owns it.
func (s *Service) owned(ctx context.Context, user *models.User, slugStr string) (*models.Snippet, error) {
	if user == nil {
		return nil, models.ErrUnauthorized
	}
	sn, err := s.store.GetSnippetBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	if sn.UserID != user.ID {
		if !sn.IsPublic {
			return nil, models.ErrSnippetNotFound
		}
		return nil, models.ErrForbidden
	}
	return sn, nil
}

// Update replaces a snippet's content. The slug never changes. Complexity is
// re-estimated when the code changes and no class is supplied.
func (s *Service) Update(ctx context.Context, user *models.User, slugStr string, in models.SnippetInput) (*models.Snippet, error) {
	existing, err := s.owned(ctx, user, slugStr)
	if err != nil {
		return nil, err
	}
	if err := s.prepare(&in); err != nil {
		return nil, err
	}

	next := existing.Clone()
	next.Title = in.Title
	next.Code = in.Code
	next.Language = in.Language
	next.Topic = in.Topic
	next.Tags = in.Tags
	if in.IsPublic != nil {
		next.IsPublic = *in.IsPublic
	}
	switch {
	case in.Complexity != "":
		next.Complexity = in.Complexity
	case in.Code != existing.Code || existing.Complexity == "":
		next.Complexity = string(s.Analyze(in.Code).Class)
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateSnippet(ctx, next); err != nil {
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated", "slug", next.Slug, "user_id", user.ID)
	return next, nil
}

// Delete removes a snippet owned by user.
func (s *Service) Delete(ctx context.Context, user *models.User, slugStr string) error {
	sn, err := s.owned(ctx, user, slugStr)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSnippet(ctx, sn.ID); err != nil {
		return fmt.Errorf("deleting snippet: %w", err)
	}

	s.recorder.Forget(sn.ID)
	metrics.SnippetDeleted()
	s.logger.Info("snippet deleted", "slug", sn.Slug, "user_id", user.ID)
	return nil
}

// List returns one page of snippets. Private snippets are included only when
// the viewer lists their own.
func (s *Service) List(ctx context.Context, opts models.ListOptions, viewer *models.User) (*models.SnippetPage, error) {
	if viewer == nil || opts.UserID == "" || opts.UserID != viewer.ID {
		opts.IsPublic = models.Bool(true)
	}
	if opts.Language != "" {
		if name, ok := s.languages.Canonical(opts.Language); ok {
			opts.Language = name
		}
	}
	if opts.Tag != "" {
		opts.Tag = slug.Make(opts.Tag)
	}
	opts.Normalize()

	page, err := s.store.ListSnippets(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return page, nil
}

// ViewStats is a snippet's view counter with its estimated unique viewers.
type ViewStats struct {
	Slug          string `json:"slug"`
	Views         int64  `json:"views"`
	UniqueViewers uint64 `json:"unique_viewers"`
}

// ViewStats returns view statistics. It does not count as a view.
func (s *Service) ViewStats(ctx context.Context, slugStr string, viewer *models.User) (*ViewStats, error) {
	sn, err := s.store.GetSnippetBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	viewerID := ""
	if viewer != nil {
		viewerID = viewer.ID
	}
	if !sn.VisibleTo(viewerID) {
		return nil, models.ErrSnippetNotFound
	}
	return &ViewStats{
		Slug:          sn.Slug,
		Views:         sn.ViewCount,
		UniqueViewers: s.recorder.UniqueViewers(sn.ID),
	}, nil
}
