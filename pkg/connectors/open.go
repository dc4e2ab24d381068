package connectors

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apicrafter/metaclass/pkg/apperrors"
	"github.com/apicrafter/metaclass/pkg/flatten"
)

// Source is the record stream contract the scanner consumes.
type Source interface {
	Next(ctx context.Context) (flatten.Record, error)
	Close() error
}

// supportedExtensions lists file types Open understands, with and without
// gzip compression where applicable.
var supportedExtensions = map[string]bool{
	".csv":    true,
	".jsonl":  true,
	".ndjson": true,
	".json":   true,
}

// Supported reports whether Open can handle the file.
func Supported(path string) bool {
	return supportedExtensions[fileExtension(path)]
}

// Open picks a source by file extension.
func Open(path string) (Source, error) {
	switch fileExtension(path) {
	case ".csv":
		return OpenCSV(path)
	case ".jsonl", ".ndjson":
		return OpenJSONL(path)
	case ".json":
		return OpenJSONArray(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", apperrors.ErrDataSource, filepath.Ext(path))
	}
}

// fileExtension returns the semantic extension, looking through ".gz".
func fileExtension(path string) string {
	if strings.HasSuffix(path, ".gz") {
		path = strings.TrimSuffix(path, ".gz")
	}
	return strings.ToLower(filepath.Ext(path))
}
