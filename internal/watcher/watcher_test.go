package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracesync/internal/loader"
)

type recorder struct {
	mu   sync.Mutex
	runs []*loader.Run
	errs []error
}

func (r *recorder) change(run *loader.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

func (r *recorder) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs), len(r.errs)
}

func (r *recorder) last() *loader.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.runs) == 0 {
		return nil
	}
	return r.runs[len(r.runs)-1]
}

func checkoutBytes(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "runs", "checkout.json"))
	require.NoError(t, err)
	return data
}

func start(t *testing.T, path string, rec *recorder, opts ...Option) {
	t.Helper()
	opts = append([]Option{WithDebounce(20 * time.Millisecond), WithErrorHandler(rec.fail)}, opts...)
	w, err := New(path, rec.change, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	original := checkoutBytes(t)
	require.NoError(t, os.WriteFile(path, original, 0644))

	rec := &recorder{}
	start(t, path, rec)

	changed := strings.Replace(string(original), `"run-42"`, `"run-43"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0644))

	require.Eventually(t, func() bool {
		n, _ := rec.counts()
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "run-43", rec.last().Export.Run.ID)
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	original := checkoutBytes(t)
	require.NoError(t, os.WriteFile(path, original, 0644))

	rec := &recorder{}
	start(t, path, rec, WithDebounce(150*time.Millisecond))

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		changed := strings.Replace(string(original), `"run-42"`, `"`+id+`"`, 1)
		require.NoError(t, os.WriteFile(path, []byte(changed), 0644))
	}

	require.Eventually(t, func() bool {
		n, _ := rec.counts()
		return n >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)

	n, _ := rec.counts()
	assert.Equal(t, 1, n)
	assert.Equal(t, "run-c", rec.last().Export.Run.ID)
}

func TestWatcher_UnchangedContentIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, checkoutBytes(t), 0644))

	baseline, err := loader.Load(path)
	require.NoError(t, err)

	rec := &recorder{}
	start(t, path, rec, WithBaseline(baseline))

	// Rewrite identical bytes, then touch an unrelated file.
	require.NoError(t, os.WriteFile(path, checkoutBytes(t), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0644))

	time.Sleep(200 * time.Millisecond)
	n, errs := rec.counts()
	assert.Zero(t, n)
	assert.Zero(t, errs)
}

func TestWatcher_InvalidExportReportsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, checkoutBytes(t), 0644))

	rec := &recorder{}
	start(t, path, rec)

	require.NoError(t, os.WriteFile(path, []byte(`{"run": {"id": ""}, "steps": []}`), 0644))

	require.Eventually(t, func() bool {
		_, e := rec.counts()
		return e == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	err := rec.errs[0]
	rec.mu.Unlock()
	assert.True(t, loader.IsSchemaError(err))
	n, _ := rec.counts()
	assert.Zero(t, n)
}

func TestWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	original := checkoutBytes(t)
	require.NoError(t, os.WriteFile(path, original, 0644))

	rec := &recorder{}
	start(t, path, rec)

	tmp := filepath.Join(dir, "run.json.tmp")
	changed := strings.Replace(string(original), `"run-42"`, `"run-99"`, 1)
	require.NoError(t, os.WriteFile(tmp, []byte(changed), 0644))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		r := rec.last()
		return r != nil && r.Export.Run.ID == "run-99"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "run.json"), func(*loader.Run) {})
	assert.Error(t, err)
}
