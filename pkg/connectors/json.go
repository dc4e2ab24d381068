package connectors

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apicrafter/metaclass/pkg/apperrors"
	"github.com/apicrafter/metaclass/pkg/flatten"
)

// JSONLSource reads one JSON object per line. Malformed lines come back as
// nil records, which the profiler counts and skips.
type JSONLSource struct {
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
}

// OpenJSONL opens a JSON-lines file, decompressing .gz transparently.
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}

	src := &JSONLSource{file: f}
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
		}
		src.gz = gz
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	src.scanner = scanner
	return src, nil
}

// Next returns the next line's object.
func (s *JSONLSource) Next(ctx context.Context) (flatten.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		var rec flatten.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, nil // malformed record, profiler counts it
		}
		return rec, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}
	return nil, io.EOF
}

// Close releases the underlying file.
func (s *JSONLSource) Close() error {
	if s.gz != nil {
		s.gz.Close()
	}
	return s.file.Close()
}

// JSONArraySource streams the elements of a top-level JSON array without
// loading the whole document.
type JSONArraySource struct {
	file *os.File
	dec  *json.Decoder
}

// OpenJSONArray opens a file holding a JSON array of objects.
func OpenJSONArray(path string) (*JSONArraySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}

	dec := json.NewDecoder(bufio.NewReader(f))
	tok, err := dec.Token()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		f.Close()
		return nil, fmt.Errorf("%w: expected a JSON array", apperrors.ErrDataSource)
	}

	return &JSONArraySource{file: f, dec: dec}, nil
}

// Next returns the next array element.
func (s *JSONArraySource) Next(ctx context.Context) (flatten.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.dec.More() {
		return nil, io.EOF
	}
	var rec flatten.Record
	if err := s.dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}
	return rec, nil
}

// Close releases the underlying file.
func (s *JSONArraySource) Close() error { return s.file.Close() }
