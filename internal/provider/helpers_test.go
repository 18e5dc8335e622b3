package provider

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/fyrsmithlabs/ghsock/internal/config"
)

// fakeGitHub serves a mux as the GitHub REST API for one test.
func fakeGitHub(t *testing.T, mux *http.ServeMux) GitHub {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return GitHub{Owner: "o", Repo: "r", Token: config.Secret("test-token"), BaseURL: srv.URL}
}

// setRate writes GitHub rate-limit headers.
func setRate(w http.ResponseWriter, limit, remaining int, reset time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		RatePerSecond:  -1,
	}
}
