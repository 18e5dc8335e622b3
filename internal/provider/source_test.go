package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

func TestReleaseSource_ConditionalPolling(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		setRate(w, 5000, 4000, time.Now().Add(time.Hour))
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		fmt.Fprint(w, `{"body":"op__reply#ok=true release notes follow"}`)
	})
	git := fakeGitHub(t, mux)

	seek, err := NewSeeker(context.Background(), SourceConfig{Kind: SourceRelease, GitHub: git}, nil)
	require.NoError(t, err)

	res, err := seek(context.Background(), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, []string{"op__reply"}, res.Commands.Commands())
	assert.Equal(t, `"v1"`, res.Persist[PersistETag])
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", res.Persist[PersistSince])
	assert.Positive(t, res.Delay)

	res, err = seek(context.Background(), res.Persist)
	require.NoError(t, err)
	assert.Equal(t, []string{"op__reply"}, res.Commands.Commands(), "304 returns the cached batch")
	assert.Equal(t, int32(2), calls.Load())
}

func TestReleaseSource_FatalStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	})
	git := fakeGitHub(t, mux)

	seek, err := NewSeeker(context.Background(), SourceConfig{Kind: SourceRelease, GitHub: git}, nil)
	require.NoError(t, err)

	_, err = seek(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Contains(t, err.Error(), "o/r")
}

func TestReleaseSource_SkipsProse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"body":"Just a normal release"}`)
	})
	git := fakeGitHub(t, mux)
	tl := logging.NewTestLogger()

	seek, err := NewSeeker(context.Background(), SourceConfig{Kind: SourceRelease, GitHub: git}, tl.Logger)
	require.NoError(t, err)

	res, err := seek(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Commands)
	tl.AssertLogged(t, zapcore.WarnLevel, "skipping unparseable body")
}

func TestIssuesSource_ReadsFirstIssues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "o", r.URL.Query().Get("creator"))
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		fmt.Fprint(w, `[{"body":""},{"body":"op__a#v=1/op__b#v=2"},{"body":"op__c#v=3"}]`)
	})
	git := fakeGitHub(t, mux)

	seek, err := NewSeeker(context.Background(), SourceConfig{Kind: SourceIssues, GitHub: git, Issues: 2}, nil)
	require.NoError(t, err)

	res, err := seek(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"op__a", "op__b"}, res.Commands.Commands())
}

func TestIssuesSource_RateLimited(t *testing.T) {
	var served atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		if !served.Swap(true) {
			fmt.Fprint(w, `[{"body":"op__a#v=1"}]`)
			return
		}
		setRate(w, 60, 0, time.Now().Add(10*time.Minute))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
	})
	git := fakeGitHub(t, mux)

	seek, err := NewSeeker(context.Background(), SourceConfig{Kind: SourceIssues, GitHub: git}, nil)
	require.NoError(t, err)

	_, err = seek(context.Background(), nil)
	require.NoError(t, err)

	res, err := seek(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"op__a"}, res.Commands.Commands())
	assert.GreaterOrEqual(t, res.Delay, 9*time.Minute)
	assert.LessOrEqual(t, res.Delay, 11*time.Minute)
}

func TestInstallSource(t *testing.T) {
	var installed atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/o/installation", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		if !installed.Load() {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		fmt.Fprint(w, `{"id":42,"permissions":{"contents":"read","secrets":"write"}}`)
	})
	git := fakeGitHub(t, mux)

	seek, err := NewSeeker(context.Background(), SourceConfig{Kind: SourceInstall, GitHub: git}, nil)
	require.NoError(t, err)

	res, err := seek(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Commands)

	installed.Store(true)
	res, err = seek(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Commands, 1)
	assert.Equal(t, InstallCommand, res.Commands[0].Command)

	id, _ := res.Commands[0].Tree.Text("id")
	assert.Equal(t, "42", id)
	perm, _ := res.Commands[0].Tree.Text("permissions", "secrets")
	assert.Equal(t, "write", perm)
}

func TestInstallSource_RequiresToken(t *testing.T) {
	_, err := NewSeeker(context.Background(), SourceConfig{
		Kind:   SourceInstall,
		GitHub: GitHub{Owner: "o"},
	}, nil)
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox")
	seek, err := NewSeeker(context.Background(), SourceConfig{Kind: SourceFile, Path: path}, nil)
	require.NoError(t, err)

	res, err := seek(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Commands)

	require.NoError(t, os.WriteFile(path, []byte("noop__name#foo=bar\n"), 0600))
	res, err = seek(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "noop__name#foo=bar", command.Format(res.Commands))
	assert.Zero(t, res.Delay)

	require.NoError(t, os.WriteFile(path, []byte("#broken"), 0600))
	_, err = seek(context.Background(), nil)
	assert.ErrorIs(t, err, command.ErrFormat)
}

func TestNewSeeker_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SourceConfig
	}{
		{"unknown kind", SourceConfig{Kind: "carrier-pigeon"}},
		{"release without repo", SourceConfig{Kind: SourceRelease, GitHub: GitHub{Owner: "o"}}},
		{"file without path", SourceConfig{Kind: SourceFile}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSeeker(context.Background(), tt.cfg, nil)
			assert.Error(t, err)
		})
	}

	_, err := NewSeeker(context.Background(), SourceConfig{Kind: "x"}, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}
