package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fidde/codesnip/pkg/models"
)

// listLanguages returns the language catalogue.
// GET /api/v1/languages
func (s *Server) listLanguages(w http.ResponseWriter, r *http.Request) {
	langs := s.snippets.Languages().All()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"languages": langs,
		"total":     len(langs),
	})
}

// AnalyzeRequest is the body of a complexity call.
type AnalyzeRequest struct {
	Code string `json:"code"`
}

// analyze runs the complexity estimator on submitted code.
// POST /api/v1/complexity
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if req.Code == "" {
		s.respondErr(w, r, models.NewValidationError("code", "Code is required"))
		return
	}

	respondJSON(w, http.StatusOK, s.snippets.Analyze(req.Code))
}

// listSnippets returns a page of snippets.
// GET /api/v1/snippets?search=&language=&tag=&user_id=&sort=&limit=&offset=
func (s *Server) listSnippets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := parsePaginationParams(r)

	page, err := s.snippets.List(r.Context(), models.ListOptions{
		UserID:   q.Get("user_id"),
		Language: q.Get("language"),
		Tag:      q.Get("tag"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Limit:    params.Limit,
		Offset:   params.Offset,
	}, currentUser(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, paginated(page.Snippets, page.Total, params))
}

// createSnippet stores a new snippet.
// POST /api/v1/snippets
func (s *Server) createSnippet(w http.ResponseWriter, r *http.Request) {
	var in models.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondErr(w, r, err)
		return
	}

	sn, err := s.snippets.Create(r.Context(), currentUser(r), in)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/snippets/"+sn.Slug)
	respondJSON(w, http.StatusCreated, sn)
}

// getSnippet returns a snippet and counts the view.
// GET /api/v1/snippets/{slug}
func (s *Server) getSnippet(w http.ResponseWriter, r *http.Request) {
	sn, err := s.snippets.Get(r.Context(), chi.URLParam(r, "slug"), currentUser(r), clientKey(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sn)
}

// updateSnippet replaces a snippet's content.
// PUT /api/v1/snippets/{slug}
func (s *Server) updateSnippet(w http.ResponseWriter, r *http.Request) {
	var in models.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondErr(w, r, err)
		return
	}

	sn, err := s.snippets.Update(r.Context(), currentUser(r), chi.URLParam(r, "slug"), in)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sn)
}

// deleteSnippet removes a snippet.
// DELETE /api/v1/snippets/{slug}
func (s *Server) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	if err := s.snippets.Delete(r.Context(), currentUser(r), chi.URLParam(r, "slug")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// snippetStats returns view counts without counting a view.
// GET /api/v1/snippets/{slug}/stats
func (s *Server) snippetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.snippets.ViewStats(r.Context(), chi.URLParam(r, "slug"), currentUser(r))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// listTags returns the tag index.
// GET /api/v1/tags?search=&sort=count|name&limit=
func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	tags, err := s.snippets.Tags(r.Context(), models.TagListOptions{
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
		Limit:  limit,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if tags == nil {
		tags = []*models.Tag{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tags":  tags,
		"total": len(tags),
	})
}

// getTag returns a tag with its public snippets.
// GET /api/v1/tags/{slug}
func (s *Server) getTag(w http.ResponseWriter, r *http.Request) {
	detail, err := s.snippets.TagDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if detail.Snippets == nil {
		detail.Snippets = []*models.Snippet{}
	}
	respondJSON(w, http.StatusOK, detail)
}

// getProfile returns a user's profile.
// GET /api/v1/users/{username}?sort=&limit=&offset=
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	profile, err := s.snippets.Profile(r.Context(), chi.URLParam(r, "username"), currentUser(r), models.ListOptions{
		Sort:   r.URL.Query().Get("sort"),
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if profile.Snippets == nil {
		profile.Snippets = []*models.Snippet{}
	}
	respondJSON(w, http.StatusOK, profile)
}
