package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/v1/snippets/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/api/v1/snippets/{slug}", "GET", "404"))

	for _, slug := range []string{"a-1", "b-2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snippets/"+slug, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	after := testutil.ToFloat64(httpRequests.WithLabelValues("/api/v1/snippets/{slug}", "GET", "404"))
	assert.Equal(t, before+2, after)
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(estimates.WithLabelValues("O(n)"))
	ObserveEstimate("O(n)")
	assert.Equal(t, before+1, testutil.ToFloat64(estimates.WithLabelValues("O(n)")))

	beforeFail := testutil.ToFloat64(authFailures.WithLabelValues("invalid_credentials"))
	AuthFailure("invalid_credentials")
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(authFailures.WithLabelValues("invalid_credentials")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	SnippetCreated()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "codesnip_snippets_created_total")
}
