package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audittrail/internal/api"
	"audittrail/internal/database"
	"audittrail/internal/importer"
	"audittrail/internal/versions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "api.sqlite"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	imp, err := importer.New(log)
	require.NoError(t, err)

	svc := versions.New(db, nil, imp, versions.Options{CacheSize: 8, CacheTTL: time.Minute}, log)
	server := api.New(svc, api.Options{CORSOrigin: "https://app.example", RequestTimeout: 5 * time.Second}, log)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type versionJSON struct {
	VersionNumber int `json:"versionNumber"`
	Data          struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"data"`
	Diff struct {
		Added     int `json:"added"`
		Removed   int `json:"removed"`
		Changed   int `json:"changed"`
		Unchanged int `json:"unchanged"`
	} `json:"diff"`
	Summary    string    `json:"summary"`
	ChangeNote string    `json:"changeNote"`
	CreatedAt  time.Time `json:"createdAt"`
	Prev       *int      `json:"prev"`
	Next       *int      `json:"next"`
}

func TestVersionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/task/42/version",
		`{"title":"Groceries","content":"milk eggs"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	v1 := decode[versionJSON](t, body)
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, 2, v1.Diff.Added)
	assert.Equal(t, "milk eggs", v1.Summary)
	assert.Equal(t, "Created task", v1.ChangeNote)
	assert.Nil(t, v1.Prev)

	resp, body = do(t, http.MethodPost, srv.URL+"/task/42/version",
		`{"title":"Groceries","content":"milk bread eggs"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	v2 := decode[versionJSON](t, body)
	assert.Equal(t, 2, v2.VersionNumber)
	assert.Equal(t, 1, v2.Diff.Added)
	assert.Equal(t, 2, v2.Diff.Unchanged)
	require.NotNil(t, v2.Prev)
	assert.Equal(t, 1, *v2.Prev)

	resp, body = do(t, http.MethodGet, srv.URL+"/task/42", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[struct {
		TaskID        string        `json:"taskId"`
		Versions      []versionJSON `json:"versions"`
		TotalVersions int           `json:"totalVersions"`
		HeadVersion   *int          `json:"headVersion"`
		TailVersion   *int          `json:"tailVersion"`
	}](t, body)
	assert.Equal(t, "42", history.TaskID)
	assert.Equal(t, 2, history.TotalVersions)
	assert.Equal(t, 1, *history.HeadVersion)
	assert.Equal(t, 2, *history.TailVersion)
	require.NotNil(t, history.Versions[0].Next)
	assert.Equal(t, 2, *history.Versions[0].Next)

	resp, body = do(t, http.MethodGet, srv.URL+"/task/42/version/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "milk eggs", decode[versionJSON](t, body).Data.Content)

	resp, body = do(t, http.MethodGet, srv.URL+"/task/42/version/2/patch", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Regexp(t, `(?m)^\+\s?bread`, string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/task/42/compare?from=2&to=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	cmp := decode[struct {
		Diff struct {
			Added   int `json:"added"`
			Removed int `json:"removed"`
		} `json:"diff"`
		Segments []struct {
			Kind string `json:"kind"`
			Text string `json:"text"`
		} `json:"segments"`
	}](t, body)
	assert.Equal(t, 0, cmp.Diff.Added)
	assert.Equal(t, 1, cmp.Diff.Removed)
	require.Len(t, cmp.Segments, 3)
	assert.Equal(t, "delete", cmp.Segments[1].Kind)
	assert.Equal(t, "bread", cmp.Segments[1].Text)

	resp, body = do(t, http.MethodGet, srv.URL+"/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tasks := decode[[]struct {
		TaskID       string `json:"taskId"`
		Title        string `json:"title"`
		VersionCount int    `json:"versionCount"`
	}](t, body)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Groceries", tasks[0].Title)
	assert.Equal(t, 2, tasks[0].VersionCount)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[struct {
		TotalTasks    int `json:"totalTasks"`
		TotalVersions int `json:"totalVersions"`
		LatestTask    *struct {
			Title   string `json:"title"`
			TimeAgo string `json:"timeAgo"`
		} `json:"latestTask"`
	}](t, body)
	assert.Equal(t, 1, stats.TotalTasks)
	assert.Equal(t, 2, stats.TotalVersions)
	require.NotNil(t, stats.LatestTask)
	assert.Equal(t, "just now", stats.LatestTask.TimeAgo)
}

func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown task", http.MethodGet, "/task/nope", "", http.StatusNotFound},
		{"unknown version", http.MethodGet, "/task/nope/version/1", "", http.StatusNotFound},
		{"bad version number", http.MethodGet, "/task/nope/version/zero", "", http.StatusBadRequest},
		{"empty title", http.MethodPost, "/task/1/version", `{"title":"","content":"x"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/task/1/version", `{"title":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/task/1/version", `{"name":"x"}`, http.StatusBadRequest},
		{"binary content", http.MethodPost, "/task/1/version", `{"title":"t","content":"a\u0000b"}`, http.StatusBadRequest},
		{"bad task id", http.MethodPost, "/task/a.b/version", `{"title":"t","content":"x"}`, http.StatusBadRequest},
		{"compare without range", http.MethodGet, "/task/1/compare", "", http.StatusBadRequest},
		{"import bad url", http.MethodPost, "/task/1/import", `{"url":"file:///etc/passwd"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			require.Equal(t, tt.status, resp.StatusCode, string(body))

			errBody := decode[map[string]string](t, body)
			assert.NotEmpty(t, errBody["error"])
		})
	}
}

func TestStatelessEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/diff", `{"old":"Hello world","new":"Hello brave world"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	diff := decode[struct {
		Diff struct {
			Added     int `json:"added"`
			Unchanged int `json:"unchanged"`
		} `json:"diff"`
		Ops []struct {
			Kind string `json:"kind"`
		} `json:"ops"`
		Summary string `json:"summary"`
	}](t, body)
	assert.Equal(t, 1, diff.Diff.Added)
	assert.Equal(t, 2, diff.Diff.Unchanged)
	assert.Equal(t, "Hello brave world", diff.Summary)
	require.NotEmpty(t, diff.Ops)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/summarize", `{"content":"   "}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Empty note", decode[map[string]string](t, body)["summary"])

	resp, body = do(t, http.MethodGet, srv.URL+"/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := do(t, http.MethodOptions, srv.URL+"/task/1/version", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = do(t, http.MethodGet, srv.URL+"/tasks", "")
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestImportEndpoint(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><head><title>Release page</title></head><body><p>Body text here.</p></body></html>")
	}))
	t.Cleanup(source.Close)

	srv := newTestServer(t)
	payload := `{"url":"` + source.URL + `","watch":true}`

	resp, body := do(t, http.MethodPost, srv.URL+"/task/imp/import", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decode[struct {
		Version versionJSON `json:"version"`
		Created bool        `json:"created"`
	}](t, body)
	assert.True(t, created.Created)
	assert.Equal(t, "Release page", created.Version.Data.Title)
	assert.Equal(t, "Body text here.", created.Version.Data.Content)

	resp, body = do(t, http.MethodPost, srv.URL+"/task/imp/import", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.False(t, decode[struct {
		Created bool `json:"created"`
	}](t, body).Created)
}
