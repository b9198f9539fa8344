package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	logging "holders-api/internal/infra/log"

	"go.uber.org/zap"
)

const (
	BackupPrefix = "backup_"
	BackupSuffix = ".json"

	// Sortable and free of ':' so the names are valid on every filesystem.
	backupTimeLayout = "2006-01-02T15-04-05.000Z"
)

// BackupName returns the file name for a backup taken at t.
func BackupName(t time.Time) string {
	return BackupPrefix + t.UTC().Format(backupTimeLayout) + BackupSuffix
}

// ListBackups returns backup file names in dir, oldest first.
func ListBackups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, BackupPrefix) && strings.HasSuffix(name, BackupSuffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// PruneBackups deletes the oldest backups so that at most keep remain.
// It returns the names that were removed.
func PruneBackups(dir string, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	names, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}

	excess := names[:len(names)-keep]
	removed := make([]string, 0, len(excess))
	for _, name := range excess {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			logging.LogWarn("Failed to delete old backup", zap.String("file", name), zap.Error(err))
			continue
		}
		removed = append(removed, name)
	}

	if len(removed) > 0 {
		logging.LogDebug("Pruned old backups", zap.Int("removed", len(removed)), zap.Int("kept", keep))
	}
	return removed, nil
}

// RemoveOlderThan deletes files in dir matching suffix whose mtime is older than maxAge.
func RemoveOlderThan(dir, suffix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
