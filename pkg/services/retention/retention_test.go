package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var base = time.Date(2025, 8, 2, 12, 0, 0, 0, time.UTC)

func writeUpload(t *testing.T, dir, name string, size int, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	mod := base.Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func remaining(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func newJanitor(dir string, p Policy) *Janitor {
	j := NewJanitor(dir, p, zap.NewNop())
	j.now = func() time.Time { return base }
	return j
}

func TestSweep_MaxAge(t *testing.T) {
	dir := t.TempDir()
	writeUpload(t, dir, "old.png", 10, 48*time.Hour)
	writeUpload(t, dir, "new.pdf", 10, time.Hour)

	n, err := newJanitor(dir, Policy{MaxAge: 24 * time.Hour}).Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"new.pdf"}, remaining(t, dir))
}

func TestSweep_MaxBytesRemovesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	writeUpload(t, dir, "a.png", 100, 3*time.Hour)
	writeUpload(t, dir, "b.png", 100, 2*time.Hour)
	writeUpload(t, dir, "c.png", 100, time.Hour)

	n, err := newJanitor(dir, Policy{MaxBytes: 150}).Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"c.png"}, remaining(t, dir))
}

func TestSweep_MaxBytesSparesFreshUploads(t *testing.T) {
	dir := t.TempDir()
	writeUpload(t, dir, "a.png", 100, 3*time.Hour)
	writeUpload(t, dir, "b.png", 100, 2*time.Hour)
	writeUpload(t, dir, "fresh.png", 100, time.Second)
	writeUpload(t, dir, "now.png", 100, 0)

	n, err := newJanitor(dir, Policy{MaxBytes: 50, Grace: 10 * time.Minute}).Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"fresh.png", "now.png"}, remaining(t, dir))
}

func TestSweep_MaxAgeIgnoresGrace(t *testing.T) {
	dir := t.TempDir()
	writeUpload(t, dir, "old.png", 10, 2*time.Hour)

	n, err := newJanitor(dir, Policy{MaxAge: time.Hour, Grace: 3 * time.Hour}).Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, remaining(t, dir))
}

func TestSweep_WithinLimits(t *testing.T) {
	dir := t.TempDir()
	writeUpload(t, dir, "a.png", 10, time.Minute)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	n, err := newJanitor(dir, Policy{MaxAge: time.Hour, MaxBytes: 1000}).Sweep()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ElementsMatch(t, []string{"a.png", "sub"}, remaining(t, dir))
}

func TestSweep_MissingDir(t *testing.T) {
	_, err := newJanitor(filepath.Join(t.TempDir(), "gone"), Policy{MaxAge: time.Hour}).Sweep()
	assert.Error(t, err)
}

func TestRun_DisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		newJanitor(t.TempDir(), Policy{}).Run(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for an empty policy")
	}
}

func TestRun_SweepsUntilCanceled(t *testing.T) {
	dir := t.TempDir()
	writeUpload(t, dir, "old.png", 1, 48*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newJanitor(dir, Policy{MaxAge: time.Hour}).Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
