package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONThenReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	require.NoError(t, WriteJSON(path, map[string]int{"a": 1}))

	var out map[string]int
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, 1, out["a"])

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not linger")
}

func TestReadJSONMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()

	var out map[string]any
	err := ReadJSON(filepath.Join(dir, "nope.json"), &out)
	assert.True(t, os.IsNotExist(err))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	assert.ErrorIs(t, ReadJSON(empty, &out), ErrEmptyFile)
}

func TestBackupNameSortsChronologically(t *testing.T) {
	t1 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	n1, n2 := BackupName(t1), BackupName(t2)
	assert.Less(t, n1, n2)
	assert.Equal(t, "backup_2025-01-02T03-04-05.000Z.json", n1)
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 13; i++ {
		name := BackupName(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "holders.json"), []byte("{}"), 0644))

	removed, err := PruneBackups(dir, 10)
	require.NoError(t, err)
	assert.Len(t, removed, 3)
	assert.Equal(t, BackupName(base), removed[0])

	left, err := ListBackups(dir)
	require.NoError(t, err)
	assert.Len(t, left, 10)
	assert.Equal(t, BackupName(base.Add(3*time.Hour)), left[0])

	_, err = os.Stat(filepath.Join(dir, "holders.json"))
	assert.NoError(t, err, "non-backup files are untouched")
}

func TestWaitForNewFile(t *testing.T) {
	dir := t.TempDir()
	since := time.Now().Add(-time.Second)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "partial.csv.crdownload"), []byte("x"), 0644)
		_ = os.WriteFile(filepath.Join(dir, "export.csv"), []byte("a,b\n"), 0644)
	}()

	path, err := WaitForNewFile(context.Background(), dir, ".csv", since, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "export.csv"), path)
}

func TestWaitForFileTimeout(t *testing.T) {
	err := WaitForFile(filepath.Join(t.TempDir(), "never"), 120*time.Millisecond)
	assert.Error(t, err)
}
