package csvholders

import (
	"context"
	"fmt"
	"os"

	"holders-api/internal/scraper"
	"holders-api/internal/store"
)

// FileSource serves holders from a CSV file on disk. It ignores proxies.
type FileSource struct {
	Path string
}

func (f *FileSource) Name() string { return "csv" }

func (f *FileSource) FetchHolders(ctx context.Context, _ scraper.FetchRequest) ([]store.HolderEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseFile(f.Path)
}

// ParseFile opens path and parses it.
func ParseFile(path string) ([]store.HolderEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()
	return Parse(file)
}
