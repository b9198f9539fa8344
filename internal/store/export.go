package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"holders-api/internal/infra/fs"
	logging "holders-api/internal/infra/log"

	"go.uber.org/zap"
)

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

var csvHeader = []string{"Rank", "Address", "Balance", "Percentage", "Added At", "Last Seen"}

// Export writes export_<timestamp>.<format> into the backup directory and
// returns its path. JSON carries the whole document, CSV only the wallets.
func (s *Store) Export(format ExportFormat) (string, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case ExportJSON, "":
		format = ExportJSON
		data, err = s.marshal()
	case ExportCSV:
		data, err = WalletsCSV(s.AllWallets())
	default:
		return "", &ValidationError{Field: "format", Reason: "must be json or csv"}
	}
	if err != nil {
		return "", &PersistenceError{Op: "export", Path: s.opts.BackupDir, Err: err}
	}

	dir := s.opts.BackupDir
	if dir == "" {
		dir = filepath.Dir(s.opts.Path)
	}
	ts := s.now().UTC().Format("2006-01-02T15-04-05.000Z")
	path := filepath.Join(dir, fmt.Sprintf("export_%s.%s", ts, format))
	if err := fs.WriteFileAtomic(path, data); err != nil {
		return "", &PersistenceError{Op: "export", Path: path, Err: err}
	}

	logging.LogSuccess("Data exported", zap.String("file", path), zap.String("format", string(format)))
	return path, nil
}

// WalletsCSV renders wallets with the export header.
func WalletsCSV(wallets []HolderRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, h := range wallets {
		row := []string{
			strconv.Itoa(h.Rank),
			h.Address,
			strconv.FormatFloat(h.Balance, 'f', -1, 64),
			strconv.FormatFloat(h.Percentage, 'f', -1, 64),
			h.AddedAt.UTC().Format(time.RFC3339),
			h.LastSeen.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
