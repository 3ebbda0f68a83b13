package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fidde/codesnip/internal/analytics"
	"github.com/fidde/codesnip/internal/auth"
	"github.com/fidde/codesnip/internal/backup"
	"github.com/fidde/codesnip/internal/logging"
	"github.com/fidde/codesnip/internal/snippets"
	"github.com/fidde/codesnip/internal/storage/memory"
	"github.com/fidde/codesnip/pkg/models"
)

const testAdminToken = "test-admin-token"

func setupTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	logger := logging.Discard()
	store := memory.New()

	files, err := backup.NewStore(backup.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create backup store: %v", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://codesnip.test"
	}
	if cfg.AdminToken == "" {
		cfg.AdminToken = testAdminToken
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1000
		cfg.RateBurst = 1000
	}

	authSvc := auth.NewService(store, auth.Config{BcryptCost: 4, SessionTTL: time.Hour}, logger)
	recorder := analytics.NewRecorder(nil, logger)
	snippetSvc := snippets.NewService(store, nil, recorder, logger)
	backups := backup.NewService(files, store, recorder.Viewers(), logger)

	return NewServer(cfg, snippetSvc, authSvc, backups, logger)
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func register(t *testing.T, s *Server, email, name string) AuthResponse {
	t.Helper()
	w := doRequest(t, s, http.MethodPost, "/api/v1/auth/register", models.RegisterRequest{
		Email:       email,
		Password:    "secret123",
		DisplayName: name,
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[AuthResponse](t, w)
}

func createSnippet(t *testing.T, s *Server, token string, in models.SnippetInput) *models.Snippet {
	t.Helper()
	w := doRequest(t, s, http.MethodPost, "/api/v1/snippets", in, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[*models.Snippet](t, w)
}

func sampleInput(title string, tags ...string) models.SnippetInput {
	return models.SnippetInput{
		Title:    title,
		Code:     "for (let i = 0; i < n; i++) {\n  for (let j = 0; j < n; j++) { x++; }\n}",
		Language: "javascript",
		Tags:     tags,
	}
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t, Config{})

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := doRequest(t, s, http.MethodGet, path, nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, w.Code)
		}
		resp := decode[HealthResponse](t, w)
		if resp.Status != "ok" {
			t.Errorf("%s: expected status ok, got %q", path, resp.Status)
		}
	}
}

func TestRegisterLoginMe(t *testing.T) {
	s := setupTestServer(t, Config{})

	reg := register(t, s, "Ada@Example.com", "Ada Lovelace")
	if !strings.HasPrefix(reg.Token, auth.TokenPrefix) {
		t.Errorf("Expected token with prefix %q, got %q", auth.TokenPrefix, reg.Token)
	}
	if reg.User.Email != "ada@example.com" {
		t.Errorf("Expected normalized email, got %q", reg.User.Email)
	}

	w := doRequest(t, s, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{
		Email:    "ada@example.com",
		Password: "secret123",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	login := decode[AuthResponse](t, w)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != login.Token || !cookie.HttpOnly {
		t.Errorf("Expected HttpOnly session cookie carrying the token, got %+v", cookie)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/auth/me", nil, login.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected status 200, got %d", w.Code)
	}
	me := decode[models.User](t, w)
	if me.ID != reg.User.ID {
		t.Errorf("Expected user %s, got %s", reg.User.ID, me.ID)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("Response leaks password hash")
	}
}

func TestMeUsesCookie(t *testing.T) {
	s := setupTestServer(t, Config{})
	reg := register(t, s, "ada@example.com", "Ada")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: reg.Token})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestAuthFailures(t *testing.T) {
	s := setupTestServer(t, Config{})
	register(t, s, "ada@example.com", "Ada")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		token  string
		status int
	}{
		{"wrong password", http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "ada@example.com", Password: "wrong-pass"}, "", http.StatusUnauthorized},
		{"unknown email", http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "bob@example.com", Password: "secret123"}, "", http.StatusUnauthorized},
		{"duplicate email", http.MethodPost, "/api/v1/auth/register", models.RegisterRequest{Email: "ada@example.com", Password: "secret123", DisplayName: "Ada"}, "", http.StatusConflict},
		{"invalid registration", http.MethodPost, "/api/v1/auth/register", models.RegisterRequest{Email: "nope", Password: "1", DisplayName: "A"}, "", http.StatusBadRequest},
		{"me without token", http.MethodGet, "/api/v1/auth/me", nil, "", http.StatusUnauthorized},
		{"me with bad token", http.MethodGet, "/api/v1/auth/me", nil, "csn_deadbeef", http.StatusUnauthorized},
		{"create without token", http.MethodPost, "/api/v1/snippets", sampleInput("Nested loops"), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, tt.method, tt.path, tt.body, tt.token)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestLoginSameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	s := setupTestServer(t, Config{})
	register(t, s, "ada@example.com", "Ada")

	wrong := doRequest(t, s, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "ada@example.com", Password: "wrong-pass"}, "")
	unknown := doRequest(t, s, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "bob@example.com", Password: "secret123"}, "")

	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("Expected identical bodies, got %q and %q", wrong.Body.String(), unknown.Body.String())
	}
}

func TestLogout(t *testing.T) {
	s := setupTestServer(t, Config{})
	reg := register(t, s, "ada@example.com", "Ada")

	w := doRequest(t, s, http.MethodPost, "/api/v1/auth/logout", nil, reg.Token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/auth/me", nil, reg.Token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 after logout, got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s := setupTestServer(t, Config{RateLimit: 0.001, RateBurst: 1})
	body := models.LoginRequest{Email: "ada@example.com", Password: "secret123"}

	w := doRequest(t, s, http.MethodPost, "/api/v1/auth/login", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected first attempt to reach the handler, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/auth/login", body, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestSnippetLifecycle(t *testing.T) {
	s := setupTestServer(t, Config{})
	ada := register(t, s, "ada@example.com", "Ada")
	grace := register(t, s, "grace@example.com", "Grace")

	sn := createSnippet(t, s, ada.Token, sampleInput("Nested Loops", "Loops", "loops", "arrays"))
	if !strings.HasPrefix(sn.Slug, "nested-loops-") {
		t.Errorf("Unexpected slug %q", sn.Slug)
	}
	if sn.Complexity != "O(n²)" {
		t.Errorf("Expected computed complexity O(n²), got %q", sn.Complexity)
	}
	if len(sn.Tags) != 2 {
		t.Errorf("Expected duplicate tags collapsed, got %v", sn.Tags)
	}
	if !sn.IsPublic {
		t.Error("Expected snippets to default to public")
	}

	path := "/api/v1/snippets/" + sn.Slug

	w := doRequest(t, s, http.MethodGet, path, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected status 200, got %d", w.Code)
	}
	if got := decode[*models.Snippet](t, w); got.ViewCount != 1 {
		t.Errorf("Expected view count 1, got %d", got.ViewCount)
	}

	w = doRequest(t, s, http.MethodGet, path+"/stats", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected status 200, got %d", w.Code)
	}
	stats := decode[snippets.ViewStats](t, w)
	if stats.Views != 1 || stats.UniqueViewers != 1 {
		t.Errorf("Expected 1 view from 1 viewer, got %+v", stats)
	}

	update := sampleInput("Nested Loops Revised", "loops")
	update.Code = "return a[0];"

	w = doRequest(t, s, http.MethodPut, path, update, grace.Token)
	if w.Code != http.StatusForbidden {
		t.Errorf("update by non-owner: expected status 403, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodPut, path, update, ada.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := decode[*models.Snippet](t, w)
	if updated.Slug != sn.Slug {
		t.Errorf("Expected slug to stay %q, got %q", sn.Slug, updated.Slug)
	}
	if updated.Title != "Nested Loops Revised" {
		t.Errorf("Expected new title, got %q", updated.Title)
	}
	if updated.ViewCount != 1 {
		t.Errorf("Expected view count to survive update, got %d", updated.ViewCount)
	}

	w = doRequest(t, s, http.MethodDelete, path, nil, grace.Token)
	if w.Code != http.StatusForbidden {
		t.Errorf("delete by non-owner: expected status 403, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodDelete, path, nil, ada.Token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected status 204, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, path, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected status 404, got %d", w.Code)
	}
}

func TestCreateSnippetValidation(t *testing.T) {
	s := setupTestServer(t, Config{})
	ada := register(t, s, "ada@example.com", "Ada")

	in := sampleInput("ab")
	in.Language = "cobol"
	in.Code = ""

	w := doRequest(t, s, http.MethodPost, "/api/v1/snippets", in, ada.Token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}

	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Error != "Validation failed" {
		t.Errorf("Expected generic validation message, got %q", resp.Error)
	}
	for _, field := range []string{"title", "code"} {
		if _, ok := resp.Fields[field]; !ok {
			t.Errorf("Expected error for field %q, got %v", field, resp.Fields)
		}
	}
}

func TestCreateSnippetMalformedBody(t *testing.T) {
	s := setupTestServer(t, Config{})
	ada := register(t, s, "ada@example.com", "Ada")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/snippets", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+ada.Token)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestPrivateSnippetVisibility(t *testing.T) {
	s := setupTestServer(t, Config{})
	ada := register(t, s, "ada@example.com", "Ada")
	grace := register(t, s, "grace@example.com", "Grace")

	in := sampleInput("Secret Sauce")
	in.IsPublic = models.Bool(false)
	sn := createSnippet(t, s, ada.Token, in)
	path := "/api/v1/snippets/" + sn.Slug

	if w := doRequest(t, s, http.MethodGet, path, nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("anonymous: expected status 404, got %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodGet, path, nil, grace.Token); w.Code != http.StatusNotFound {
		t.Errorf("other user: expected status 404, got %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodPut, path, sampleInput("Secret Sauce"), grace.Token); w.Code != http.StatusNotFound {
		t.Errorf("other user update: expected status 404, got %d", w.Code)
	}

	w := doRequest(t, s, http.MethodGet, path, nil, ada.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("owner: expected status 200, got %d", w.Code)
	}
	if got := decode[*models.Snippet](t, w); got.ViewCount != 0 {
		t.Errorf("Expected owner views not to count, got %d", got.ViewCount)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/snippets", nil, "")
	if resp := decode[PaginatedResponse](t, w); resp.Total != 0 {
		t.Errorf("Expected private snippet excluded from public listing, got total %d", resp.Total)
	}
}

func TestListSnippets(t *testing.T) {
	s := setupTestServer(t, Config{})
	ada := register(t, s, "ada@example.com", "Ada")

	createSnippet(t, s, ada.Token, sampleInput("Binary Search", "search"))
	createSnippet(t, s, ada.Token, sampleInput("Bubble Sort", "sorting"))
	py := sampleInput("Merge Sort", "sorting")
	py.Language = "python"
	createSnippet(t, s, ada.Token, py)

	tests := []struct {
		name    string
		query   string
		total   int
		count   int
		hasMore bool
	}{
		{"all", "", 3, 3, false},
		{"paged", "?limit=2", 3, 2, true},
		{"second page", "?limit=2&offset=2", 3, 1, false},
		{"by language", "?language=Python", 1, 1, false},
		{"by tag", "?tag=Sorting", 2, 2, false},
		{"by search", "?search=binary", 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodGet, "/api/v1/snippets"+tt.query, nil, "")
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Data    []*models.Snippet `json:"data"`
				Total   int               `json:"total"`
				HasMore bool              `json:"has_more"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if resp.Total != tt.total {
				t.Errorf("Expected total %d, got %d", tt.total, resp.Total)
			}
			if len(resp.Data) != tt.count {
				t.Errorf("Expected %d items, got %d", tt.count, len(resp.Data))
			}
			if resp.HasMore != tt.hasMore {
				t.Errorf("Expected has_more %v, got %v", tt.hasMore, resp.HasMore)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	s := setupTestServer(t, Config{})

	w := doRequest(t, s, http.MethodPost, "/api/v1/complexity", AnalyzeRequest{
		Code: "for (let i = 0; i < n; i++) {\n  for (let j = 0; j < n; j++) { x++; }\n}",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Complexity  string  `json:"complexity"`
		Confidence  float64 `json:"confidence"`
		Explanation string  `json:"explanation"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Complexity != "O(n²)" {
		t.Errorf("Expected O(n²), got %q", resp.Complexity)
	}
	if resp.Explanation == "" {
		t.Error("Expected an explanation")
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/complexity", AnalyzeRequest{}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty code: expected status 400, got %d", w.Code)
	}
}

func TestLanguages(t *testing.T) {
	s := setupTestServer(t, Config{})

	w := doRequest(t, s, http.MethodGet, "/api/v1/languages", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"JavaScript"`) {
		t.Errorf("Expected JavaScript in catalogue, got %s", w.Body.String())
	}
}

func TestTagsAndProfile(t *testing.T) {
	s := setupTestServer(t, Config{})
	ada := register(t, s, "ada@example.com", "Ada Lovelace")

	createSnippet(t, s, ada.Token, sampleInput("Binary Search", "Search", "arrays"))
	createSnippet(t, s, ada.Token, sampleInput("Linear Search", "search"))

	w := doRequest(t, s, http.MethodGet, "/api/v1/tags", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("tags: expected status 200, got %d", w.Code)
	}
	var tags struct {
		Tags  []*models.Tag `json:"tags"`
		Total int           `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&tags); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if tags.Total != 2 || tags.Tags[0].Slug != "search" || tags.Tags[0].Count != 2 {
		t.Errorf("Expected search tag first with count 2, got %+v", tags.Tags)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/tags/search", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("tag detail: expected status 200, got %d", w.Code)
	}
	detail := decode[models.TagDetail](t, w)
	if len(detail.Snippets) != 2 {
		t.Errorf("Expected 2 snippets for tag, got %d", len(detail.Snippets))
	}

	if w := doRequest(t, s, http.MethodGet, "/api/v1/tags/missing", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing tag: expected status 404, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/users/"+ada.User.Username, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("profile: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "ada@example.com") {
		t.Error("Profile leaks email")
	}
	profile := decode[models.Profile](t, w)
	if profile.Stats.TotalSnippets != 2 {
		t.Errorf("Expected 2 snippets in stats, got %d", profile.Stats.TotalSnippets)
	}

	if w := doRequest(t, s, http.MethodGet, "/api/v1/users/nobody", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing user: expected status 404, got %d", w.Code)
	}
}

func TestAdminBackups(t *testing.T) {
	s := setupTestServer(t, Config{})
	ada := register(t, s, "ada@example.com", "Ada")
	sn := createSnippet(t, s, ada.Token, sampleInput("Keep Me", "kept"))

	if w := doRequest(t, s, http.MethodGet, "/api/v1/admin/backups", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected status 401, got %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodGet, "/api/v1/admin/backups", nil, ada.Token); w.Code != http.StatusUnauthorized {
		t.Errorf("user token: expected status 401, got %d", w.Code)
	}

	w := doRequest(t, s, http.MethodPost, "/api/v1/admin/backups", models.BackupSaveOptions{Name: "nightly"}, testAdminToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/admin/backups", models.BackupSaveOptions{Name: "nightly"}, testAdminToken)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate: expected status 409, got %d", w.Code)
	}
	w = doRequest(t, s, http.MethodPost, "/api/v1/admin/backups?force=true", models.BackupSaveOptions{Name: "nightly"}, testAdminToken)
	if w.Code != http.StatusCreated {
		t.Errorf("forced: expected status 201, got %d", w.Code)
	}
	w = doRequest(t, s, http.MethodPost, "/api/v1/admin/backups", models.BackupSaveOptions{Name: "Bad Name"}, testAdminToken)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad name: expected status 400, got %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/admin/backups/nightly", nil, testAdminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected status 200, got %d", w.Code)
	}
	meta := decode[models.BackupMetadata](t, w)
	if meta.Stats.Snippets != 1 || meta.Stats.Users != 1 {
		t.Errorf("Unexpected stats %+v", meta.Stats)
	}

	doRequest(t, s, http.MethodDelete, "/api/v1/snippets/"+sn.Slug, nil, ada.Token)

	w = doRequest(t, s, http.MethodPost, "/api/v1/admin/backups/nightly/restore", nil, testAdminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("restore: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doRequest(t, s, http.MethodGet, "/api/v1/snippets/"+sn.Slug, nil, ""); w.Code != http.StatusOK {
		t.Errorf("Expected restored snippet, got status %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/admin/backups", nil, testAdminToken)
	var list struct {
		Backups []*models.BackupMetadata `json:"backups"`
		Total   int                      `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if list.Total != 1 {
		t.Errorf("Expected 1 backup, got %d", list.Total)
	}

	if w := doRequest(t, s, http.MethodDelete, "/api/v1/admin/backups/nightly", nil, testAdminToken); w.Code != http.StatusNoContent {
		t.Errorf("delete: expected status 204, got %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodGet, "/api/v1/admin/backups/nightly", nil, testAdminToken); w.Code != http.StatusNotFound {
		t.Errorf("get deleted: expected status 404, got %d", w.Code)
	}
}

func TestRobotsAndSitemap(t *testing.T) {
	s := setupTestServer(t, Config{BaseURL: "https://codesnip.test/"})
	ada := register(t, s, "ada@example.com", "Ada")

	pub := createSnippet(t, s, ada.Token, sampleInput("Open Code", "visible"))
	hidden := sampleInput("Hidden Code", "invisible")
	hidden.IsPublic = models.Bool(false)
	priv := createSnippet(t, s, ada.Token, hidden)

	w := doRequest(t, s, http.MethodGet, "/robots.txt", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("robots: expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Sitemap: https://codesnip.test/sitemap.xml") {
		t.Errorf("Expected sitemap reference, got %q", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Disallow: /api/") {
		t.Errorf("Expected api disallowed, got %q", w.Body.String())
	}

	w = doRequest(t, s, http.MethodGet, "/sitemap.xml", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("sitemap: expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "<?xml") {
		t.Errorf("Expected XML header, got %q", body[:min(len(body), 40)])
	}
	for _, want := range []string{
		"<loc>https://codesnip.test</loc>",
		"<priority>1.0</priority>",
		"<loc>https://codesnip.test/snippets/" + pub.Slug + "</loc>",
		"<loc>https://codesnip.test/tags/visible</loc>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected sitemap to contain %q", want)
		}
	}
	for _, unwanted := range []string{priv.Slug, "tags/invisible"} {
		if strings.Contains(body, unwanted) {
			t.Errorf("Sitemap must not contain %q", unwanted)
		}
	}
}

func TestNotFound(t *testing.T) {
	s := setupTestServer(t, Config{})

	w := doRequest(t, s, http.MethodGet, "/api/v1/nope", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON error, got content type %q", ct)
	}
}
