package versions_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"audittrail/internal/database"
	"audittrail/internal/importer"
	"audittrail/internal/summarizer"
	"audittrail/internal/textdiff"
	"audittrail/internal/versions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	calls atomic.Int32
	note  string
	err   error
	last  summarizer.Input
	mu    sync.Mutex
}

func (s *stubSummarizer) Summarize(_ context.Context, input summarizer.Input) (string, error) {
	s.calls.Add(1)

	s.mu.Lock()
	s.last = input
	s.mu.Unlock()

	return s.note, s.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *versions.Service
	db    *database.Database
	clock *clock
}

func newFixture(t *testing.T, s summarizer.Summarizer) fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	imp, err := importer.New(log)
	require.NoError(t, err)

	c := &clock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}

	svc := versions.New(db, s, imp, versions.Options{
		CacheSize: 16,
		CacheTTL:  time.Hour,
		Now:       c.Now,
	}, log)

	return fixture{svc: svc, db: db, clock: c}
}

func TestSaveComputesDiffAndSummary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	v1, err := f.svc.Save(ctx, "task-1", versions.Draft{Title: " Fox ", Content: "The quick fox jumps"})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, "Fox", v1.Data.Title)
	assert.Equal(t, 4, v1.Diff.Added)
	assert.Equal(t, 0, v1.Diff.Removed)
	assert.Equal(t, "The quick fox jumps", v1.Summary)
	assert.Equal(t, "Created task", v1.ChangeNote)
	assert.Nil(t, v1.Prev)
	assert.Nil(t, v1.Next)

	f.clock.Advance(time.Minute)

	v2, err := f.svc.Save(ctx, "task-1", versions.Draft{Title: "Fox", Content: "The quick brown fox jumps high"})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)
	assert.Equal(t, 2, v2.Diff.Added)
	assert.Equal(t, 0, v2.Diff.Removed)
	assert.Equal(t, 4, v2.Diff.Unchanged)
	assert.Equal(t, "Updated content: +2 −0 words", v2.ChangeNote)
	require.NotNil(t, v2.Prev)
	assert.Equal(t, 1, *v2.Prev)
	assert.Equal(t, f.clock.Now(), v2.CreatedAt)

	stored, err := f.svc.Version(ctx, "task-1", 2)
	require.NoError(t, err)
	assert.Equal(t, v2.Diff, stored.Diff)
	assert.Equal(t, v2.Summary, stored.Summary)
}

func TestSaveRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Save(ctx, "t", versions.Draft{Title: " ", Content: "text"})
	require.ErrorIs(t, err, versions.ErrEmptyDraft)

	_, err = f.svc.Save(ctx, "t", versions.Draft{Title: "Title", Content: "\n\t"})
	require.ErrorIs(t, err, versions.ErrEmptyDraft)

	_, err = f.svc.Save(ctx, "../etc", versions.Draft{Title: "Title", Content: "text"})
	require.ErrorIs(t, err, versions.ErrInvalidTaskID)

	_, err = f.svc.Save(ctx, "t", versions.Draft{Title: "Title", Content: "bin\x00ary"})
	require.ErrorIs(t, err, textdiff.ErrInvalidInput)

	_, err = f.svc.Task(ctx, "t")
	require.ErrorIs(t, err, versions.ErrNotFound)
}

func TestSaveTrimsSurroundingWhitespace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	v1, err := f.svc.Save(ctx, "t", versions.Draft{Title: " Groceries\n", Content: "  milk eggs \n"})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", v1.Data.Title)
	assert.Equal(t, "milk eggs", v1.Data.Content)

	v2, err := f.svc.Save(ctx, "t", versions.Draft{Title: "Groceries", Content: "\tmilk eggs bread\n\n"})
	require.NoError(t, err)
	assert.Equal(t, "milk eggs bread", v2.Data.Content)
	assert.Equal(t, 1, v2.Diff.Added)
	assert.Zero(t, v2.Diff.Removed)

	stored, err := f.svc.Version(ctx, "t", 1)
	require.NoError(t, err)
	assert.Equal(t, "milk eggs", stored.Data.Content)
}

func TestConcurrentSavesGetDistinctNumbers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const writers = 3

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Save(ctx, "shared", versions.Draft{
				Title:   "Shared",
				Content: strings.Repeat("word ", i+1),
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	history, err := f.svc.Task(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, writers, history.TotalVersions)
	for i, v := range history.Versions {
		assert.Equal(t, i+1, v.VersionNumber)
	}

	// Every stored diff is relative to the version directly before it.
	for i := 1; i < len(history.Versions); i++ {
		prev := history.Versions[i-1].Data.Content
		cur := history.Versions[i]
		d, err := textdiff.Diff(prev, cur.Data.Content)
		require.NoError(t, err)
		assert.Equal(t, d.Added(), cur.Diff.Added)
		assert.Equal(t, d.Removed(), cur.Diff.Removed)
	}
}

func TestTaskHistoryLinks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, content := range []string{"one", "one two", "one two three"} {
		_, err := f.svc.Save(ctx, "t", versions.Draft{Title: "T", Content: content})
		require.NoError(t, err)
	}

	history, err := f.svc.Task(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 3, history.TotalVersions)
	require.NotNil(t, history.HeadVersion)
	require.NotNil(t, history.TailVersion)
	assert.Equal(t, 1, *history.HeadVersion)
	assert.Equal(t, 3, *history.TailVersion)

	first, middle, last := history.Versions[0], history.Versions[1], history.Versions[2]
	assert.Nil(t, first.Prev)
	assert.Equal(t, 2, *first.Next)
	assert.Equal(t, 1, *middle.Prev)
	assert.Equal(t, 3, *middle.Next)
	assert.Equal(t, 2, *last.Prev)
	assert.Nil(t, last.Next)

	v, err := f.svc.Version(ctx, "t", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, *v.Next)

	latest, err := f.svc.Latest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.VersionNumber)
	assert.Nil(t, latest.Next)

	_, err = f.svc.Version(ctx, "t", 4)
	require.ErrorIs(t, err, versions.ErrNotFound)

	content, ok, err := f.svc.PreviousContent(ctx, "t", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one two", content)

	tasks, err := f.svc.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 3, tasks[0].VersionCount)
}

func TestChangeNoteUsesSummarizer(t *testing.T) {
	stub := &stubSummarizer{note: "Adds a colour to the fox"}
	f := newFixture(t, stub)
	ctx := context.Background()

	_, err := f.svc.Save(ctx, "t", versions.Draft{Title: "Fox", Content: "The fox"})
	require.NoError(t, err)

	v, err := f.svc.Save(ctx, "t", versions.Draft{Title: "Fox", Content: "The brown fox"})
	require.NoError(t, err)
	assert.Equal(t, "Adds a colour to the fox", v.ChangeNote)
	assert.Equal(t, summarizer.Input{Title: "Fox", Previous: "The fox", Current: "The brown fox"}, stub.last)

	// Separator-only edits keep the deterministic note.
	v, err = f.svc.Save(ctx, "t", versions.Draft{Title: "Fox", Content: "The brown fox!"})
	require.NoError(t, err)
	assert.Equal(t, "Updated content: no word changes", v.ChangeNote)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestChangeNoteFallsBackOnSummarizerError(t *testing.T) {
	stub := &stubSummarizer{err: errors.New("quota exceeded")}
	f := newFixture(t, stub)

	v, err := f.svc.Save(context.Background(), "t", versions.Draft{Title: "T", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Created task", v.ChangeNote)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Nil(t, stats.LatestTask)

	_, err = f.svc.Save(ctx, "a", versions.Draft{Title: "Alpha", Content: "x"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Save(ctx, "b", versions.Draft{Title: "Beta", Content: "y"})
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)

	stats, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalTasks)
	assert.Equal(t, 2, stats.TotalVersions)
	require.NotNil(t, stats.LatestTask)
	assert.Equal(t, "Beta", stats.LatestTask.Title)
	assert.Equal(t, "5m ago", stats.LatestTask.TimeAgo)

	recent, err := f.svc.RecentVersions(ctx, f.clock.Now().Add(-5*time.Minute-30*time.Second))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].TaskID)
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		then time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(time.Second), "just now"},
		{now.Add(-59 * time.Minute), "59m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-49 * time.Hour), "2d ago"},
		{now.Add(-6*24*time.Hour - 23*time.Hour), "6d ago"},
		{now.Add(-7 * 24 * time.Hour), "Apr 27, 2026"},
		{now.Add(-20 * 24 * time.Hour), "Apr 14, 2026"},
		{time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC), "Jan 2, 2026"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, versions.TimeAgo(now, tt.then))
	}
}

func TestCompareAndPatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, content := range []string{"alpha beta gamma", "alpha gamma", "alpha gamma delta"} {
		_, err := f.svc.Save(ctx, "t", versions.Draft{Title: "T", Content: content})
		require.NoError(t, err)
	}

	cmp, err := f.svc.Compare(ctx, "t", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp.Result.Added())
	assert.Equal(t, 1, cmp.Result.Removed())
	assert.Equal(t, []string{"beta"}, cmp.Result.Words(textdiff.OpDelete))
	assert.Equal(t, []string{"delta"}, cmp.Result.Words(textdiff.OpInsert))

	reverse, err := f.svc.Compare(ctx, "t", 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"delta"}, reverse.Result.Words(textdiff.OpDelete))

	_, err = f.svc.Compare(ctx, "t", 1, 9)
	require.ErrorIs(t, err, versions.ErrNotFound)

	patch, err := f.svc.Patch(ctx, "t", 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(patch, "@@ "), patch)
	assert.Regexp(t, `(?m)^-\s?beta`, patch)

	first, err := f.svc.Patch(ctx, "t", 1)
	require.NoError(t, err)
	assert.Contains(t, first, "+alpha beta gamma")
}

func TestDiffIsCached(t *testing.T) {
	f := newFixture(t, nil)

	a, err := f.svc.Diff("one two", "one three")
	require.NoError(t, err)
	b, err := f.svc.Diff("one two", "one three")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = f.svc.Diff("ok", "\x01")
	require.ErrorIs(t, err, textdiff.ErrInvalidInput)

	summary, err := f.svc.Summarize("", "Hello world")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", summary.Text)
	assert.Equal(t, 2, summary.Basis.Added())
}

func TestNewTaskIDIsUnique(t *testing.T) {
	f := newFixture(t, nil)

	seen := make(map[string]struct{})
	for range 5 {
		id := f.svc.NewTaskID()
		_, dup := seen[id]
		require.False(t, dup, id)
		seen[id] = struct{}{}

		_, err := versions.NormalizeTaskID(id)
		require.NoError(t, err)
	}
}

func TestImportAndRefreshSources(t *testing.T) {
	var body atomic.Value
	body.Store("# Notes\nfirst line")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, body.Load().(string))
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, nil)
	ctx := context.Background()

	v, created, err := f.svc.Import(ctx, "doc", srv.URL, true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, v.VersionNumber)
	assert.Equal(t, "Notes", v.Data.Title)

	v, created, err = f.svc.Import(ctx, "doc", srv.URL, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, v.VersionNumber)

	n, err := f.svc.RefreshSources(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	body.Store("# Notes\nfirst line\nsecond line")

	n, err = f.svc.RefreshSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	latest, err := f.svc.Latest(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.VersionNumber)
	assert.Equal(t, 2, latest.Diff.Added)

	_, _, err = f.svc.Import(ctx, "doc", "ftp://nope", false)
	require.ErrorIs(t, err, importer.ErrInvalidURL)
}
