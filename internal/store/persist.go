package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"holders-api/internal/infra/fs"
	logging "holders-api/internal/infra/log"

	"go.uber.org/zap"
)

// Load reads the document from disk onto defaults. A missing or empty file
// triggers an initial save.
func (s *Store) Load() error {
	if s.opts.Path == "" {
		return nil
	}

	s.mu.Lock()
	doc := defaultDocument(s.opts, s.now())
	err := fs.ReadJSON(s.opts.Path, &doc)
	switch {
	case err == nil:
		doc.normalize(s.opts)
		s.doc = doc
		s.mu.Unlock()
		logging.LogInfo("Loaded holder database",
			zap.String("file", s.opts.Path),
			zap.Int("wallets", len(doc.Wallets)),
			zap.Int("winners", len(doc.Winners)))
		return nil
	case errors.Is(err, os.ErrNotExist), errors.Is(err, fs.ErrEmptyFile):
		s.mu.Unlock()
		logging.LogInfo("Holder database not found, creating", zap.String("file", s.opts.Path))
		return s.Save()
	default:
		s.mu.Unlock()
		return &PersistenceError{Op: "load", Path: s.opts.Path, Err: err}
	}
}

// Save writes the whole document. Saves never overlap and each one marshals
// the state as of the moment it acquired the writer.
func (s *Store) Save() error {
	if s.opts.Path == "" {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := s.marshal()
	if err != nil {
		return &PersistenceError{Op: "marshal", Path: s.opts.Path, Err: err}
	}
	if err := fs.WriteFileAtomic(s.opts.Path, data); err != nil {
		return &PersistenceError{Op: "save", Path: s.opts.Path, Err: err}
	}
	logging.LogDebug("Saved holder database", zap.String("file", s.opts.Path), zap.Int("bytes", len(data)))
	return nil
}

func (s *Store) marshal() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fs.MarshalDocument(s.doc)
}

// saveAsync persists after a mutation. Failures are logged, never returned.
func (s *Store) saveAsync() {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.Save(); err != nil {
			logging.LogError("Failed to save holder database", zap.Error(err))
		}
	}()
}

// Backup writes an immutable timestamped copy, prunes old ones and hands the
// bytes to the remote sink when one is configured. It returns the file path.
func (s *Store) Backup(ctx context.Context) (string, error) {
	if s.opts.BackupDir == "" {
		return "", nil
	}

	data, err := s.marshal()
	if err != nil {
		return "", &PersistenceError{Op: "marshal", Path: s.opts.BackupDir, Err: err}
	}

	name := fs.BackupName(s.now())
	path := filepath.Join(s.opts.BackupDir, name)
	if err := fs.WriteFileAtomic(path, data); err != nil {
		return "", &PersistenceError{Op: "backup", Path: path, Err: err}
	}

	if _, err := fs.PruneBackups(s.opts.BackupDir, s.opts.BackupKeep); err != nil {
		logging.LogWarn("Failed to prune backups", zap.Error(err))
	}

	if s.opts.Sink != nil {
		if err := s.opts.Sink.Upload(ctx, name, data); err != nil {
			logging.LogWarn("Remote backup upload failed", zap.String("file", name), zap.Error(err))
		}
	}

	logging.LogSuccess("Backup created", zap.String("file", path))
	return path, nil
}

// Run drives auto-save and backups until ctx is done. A backup is taken at
// start so a fresh process always has one.
func (s *Store) Run(ctx context.Context) {
	autosave := time.NewTicker(s.opts.AutosaveInterval)
	defer autosave.Stop()
	backup := time.NewTicker(s.opts.BackupInterval)
	defer backup.Stop()

	if _, err := s.Backup(ctx); err != nil {
		logging.LogError("Backup failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-autosave.C:
			if err := s.Save(); err != nil {
				logging.LogError("Auto-save failed", zap.Error(err))
			}
		case <-backup.C:
			if _, err := s.Backup(ctx); err != nil {
				logging.LogError("Backup failed", zap.Error(err))
			}
		}
	}
}
