// Package retention bounds the disk space used by stored uploads.
package retention

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Policy limits the upload directory. Zero values disable a limit.
type Policy struct {
	MaxAge   time.Duration
	MaxBytes int64
	// Grace keeps files this young out of the size-cap pass so an upload
	// still being extracted is not removed.
	Grace time.Duration
}

// Enabled reports whether any limit is set.
func (p Policy) Enabled() bool {
	return p.MaxAge > 0 || p.MaxBytes > 0
}

// Janitor removes uploads that fall outside the policy.
type Janitor struct {
	dir    string
	policy Policy
	logger *zap.Logger
	now    func() time.Time
}

// NewJanitor creates a janitor for the uploads in dir.
func NewJanitor(dir string, policy Policy, logger *zap.Logger) *Janitor {
	return &Janitor{dir: dir, policy: policy, logger: logger, now: time.Now}
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if !j.policy.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(); err != nil {
				j.logger.Error("upload sweep failed", zap.Error(err))
			}
		}
	}
}

type upload struct {
	path    string
	size    int64
	modTime time.Time
}

// Sweep deletes files older than MaxAge, then the oldest remaining files
// until the directory is within MaxBytes. Files younger than Grace only count
// toward the cap. It returns the number removed.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read upload directory: %w", err)
	}

	var files []upload
	var total int64
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		files = append(files, upload{path: filepath.Join(j.dir, e.Name()), size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}
	sort.Slice(files, func(a, b int) bool { return files[a].modTime.Before(files[b].modTime) })

	now := j.now()
	cutoff := now.Add(-j.policy.MaxAge)
	settled := now.Add(-j.policy.Grace)
	removed := 0
	for _, f := range files {
		expired := j.policy.MaxAge > 0 && f.modTime.Before(cutoff)
		overCap := j.policy.MaxBytes > 0 && total > j.policy.MaxBytes && !f.modTime.After(settled)
		if !expired && !overCap {
			continue
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove upload: %w", err)
		}
		total -= f.size
		removed++
	}

	if removed > 0 {
		j.logger.Info("uploads swept", zap.Int("removed", removed), zap.Int64("bytes_kept", total))
	}
	return removed, nil
}
