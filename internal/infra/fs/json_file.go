package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logging "holders-api/internal/infra/log"

	"go.uber.org/zap"
)

// ErrEmptyFile is returned by ReadJSON when the file exists but holds no document.
var ErrEmptyFile = errors.New("file is empty")

// ReadJSON decodes filePath into out. A missing file is reported as os.ErrNotExist
// so callers can tell "first run" from "broken file".
func ReadJSON(filePath string, out any) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "{}" {
		logging.LogDebug("JSON file is empty", zap.String("file", filePath))
		return ErrEmptyFile
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	return nil
}

// MarshalDocument renders v the way every file in this package is written.
func MarshalDocument(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// WriteFileAtomic writes data to a sibling temp file and renames it over filePath,
// so readers never see a half-written document.
func WriteFileAtomic(filePath string, data []byte) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFilePath := filePath + ".tmp"
	if err := os.WriteFile(tempFilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFilePath, filePath); err != nil {
		os.Remove(tempFilePath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// WriteJSON marshals v and writes it atomically.
func WriteJSON(filePath string, v any) error {
	data, err := MarshalDocument(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return WriteFileAtomic(filePath, data)
}
