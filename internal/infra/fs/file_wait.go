package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WaitForFile waits for a file to exist and be non-empty with exponential backoff
// Returns error if file doesn't appear within maxWait duration
func WaitForFile(filePath string, maxWait time.Duration) error {
	_, err := waitFor(context.Background(), maxWait, func() (string, bool) {
		if info, err := os.Stat(filePath); err == nil && info.Size() > 0 {
			return filePath, true
		}
		return "", false
	})
	if err != nil {
		return fmt.Errorf("timeout waiting for file %s after %v", filePath, maxWait)
	}
	return nil
}

// WaitForNewFile waits until a non-empty file with the given suffix and a
// modification time after since shows up in dir. Partial downloads
// (.crdownload, .tmp) are ignored.
func WaitForNewFile(ctx context.Context, dir, suffix string, since time.Time, maxWait time.Duration) (string, error) {
	path, err := waitFor(ctx, maxWait, func() (string, bool) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", false
		}
		for _, e := range entries {
			name := strings.ToLower(e.Name())
			if e.IsDir() || !strings.HasSuffix(name, suffix) {
				continue
			}
			info, err := e.Info()
			if err != nil || info.Size() == 0 || info.ModTime().Before(since) {
				continue
			}
			return filepath.Join(dir, e.Name()), true
		}
		return "", false
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("timeout waiting for %s file in %s after %v", suffix, dir, maxWait)
	}
	return path, nil
}

func waitFor(ctx context.Context, maxWait time.Duration, check func() (string, bool)) (string, error) {
	start := time.Now()
	attempt := 0
	baseDelay := 50 * time.Millisecond

	for {
		if v, ok := check(); ok {
			return v, nil
		}

		if time.Since(start) >= maxWait {
			return "", context.DeadlineExceeded
		}

		// Exponential backoff with cap at 500ms
		delay := baseDelay * time.Duration(1<<attempt)
		if delay > 500*time.Millisecond {
			delay = 500 * time.Millisecond
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
		if attempt < 10 {
			attempt++
		}
	}
}
