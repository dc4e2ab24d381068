// Package connectors delivers lazy record sequences from files and
// databases to the scanner.
package connectors

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apicrafter/metaclass/pkg/apperrors"
	"github.com/apicrafter/metaclass/pkg/flatten"
)

// candidate delimiters for detection, checked against the header line.
var csvDelimiters = []rune{',', ';', '|', '\t'}

// CSVSource reads one record per CSV row, header row as keys.
type CSVSource struct {
	file    *os.File
	gz      *gzip.Reader
	reader  *csv.Reader
	headers []string
}

// OpenCSV opens a CSV file, detecting the delimiter from the header line.
// Files ending in .gz are transparently decompressed.
func OpenCSV(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}

	src := &CSVSource{file: f}
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

	buffered := bufio.NewReaderSize(r, 64*1024)
	headerLine, err := buffered.Peek(64 * 1024)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		src.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}

	reader := csv.NewReader(buffered)
	reader.Comma = detectDelimiter(string(headerLine))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%w: read header: %v", apperrors.ErrDataSource, err)
	}

	src.reader = reader
	src.headers = headers
	return src, nil
}

// detectDelimiter picks the candidate that splits the header into the most
// fields. A tie keeps the earlier candidate, so comma stays the default.
func detectDelimiter(headerLine string) rune {
	if i := strings.IndexByte(headerLine, '\n'); i >= 0 {
		headerLine = headerLine[:i]
	}
	best, bestCount := ',', 0
	for _, d := range csvDelimiters {
		if n := strings.Count(headerLine, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// Headers returns the column names from the header row.
func (s *CSVSource) Headers() []string { return s.headers }

// Next returns the next row as a flat record.
func (s *CSVSource) Next(ctx context.Context) (flatten.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, err := s.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
	}
	rec := make(flatten.Record, len(s.headers))
	for i, h := range s.headers {
		if i < len(row) {
			rec[h] = row[i]
		}
	}
	return rec, nil
}

// Close releases the underlying file.
func (s *CSVSource) Close() error {
	if s.gz != nil {
		s.gz.Close()
	}
	return s.file.Close()
}
