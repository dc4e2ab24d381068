package connectors

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apicrafter/metaclass/pkg/flatten"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(t *testing.T, src Source) []flatten.Record {
	t.Helper()
	defer src.Close()
	var out []flatten.Record
	for {
		rec, err := src.Next(context.Background())
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestCSVSource(t *testing.T) {
	path := writeFile(t, "data.csv", "email,age\na@b.com,30\nc@d.com,41\n")

	src, err := OpenCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "age"}, src.Headers())

	records := drain(t, src)
	require.Len(t, records, 2)
	assert.Equal(t, "a@b.com", records[0]["email"])
	assert.Equal(t, "30", records[0]["age"])
}

func TestCSVSource_DelimiterDetection(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"semicolon", "email;age\na@b.com;30\n"},
		{"pipe", "email|age\na@b.com|30\n"},
		{"tab", "email\tage\na@b.com\t30\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := OpenCSV(writeFile(t, "d.csv", tt.content))
			require.NoError(t, err)
			records := drain(t, src)
			require.Len(t, records, 1)
			assert.Equal(t, "a@b.com", records[0]["email"])
			assert.Equal(t, "30", records[0]["age"])
		})
	}
}

func TestCSVSource_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("email\na@b.com\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	src, err := OpenCSV(path)
	require.NoError(t, err)
	records := drain(t, src)

	require.Len(t, records, 1)
	assert.Equal(t, "a@b.com", records[0]["email"])
}

func TestJSONLSource(t *testing.T) {
	path := writeFile(t, "data.jsonl", `{"name": "alice", "age": 30}
{"name": "bob", "nested": {"city": "Oslo"}}

{"name": "carol"}
`)

	src, err := OpenJSONL(path)
	require.NoError(t, err)
	records := drain(t, src)

	require.Len(t, records, 3)
	assert.Equal(t, "alice", records[0]["name"])
	nested, ok := records[1]["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Oslo", nested["city"])
}

func TestJSONLSource_MalformedLineYieldsNilRecord(t *testing.T) {
	path := writeFile(t, "data.jsonl", "{\"ok\": 1}\n{broken\n{\"ok\": 2}\n")

	src, err := OpenJSONL(path)
	require.NoError(t, err)
	defer src.Close()

	var records []flatten.Record
	for {
		rec, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		records = append(records, rec)
	}

	require.Len(t, records, 3)
	assert.Nil(t, records[1], "malformed line surfaces as a nil record")
}

func TestJSONArraySource(t *testing.T) {
	path := writeFile(t, "data.json", `[{"a": 1}, {"a": 2}, {"a": 3}]`)

	src, err := OpenJSONArray(path)
	require.NoError(t, err)
	records := drain(t, src)

	assert.Len(t, records, 3)
}

func TestJSONArraySource_NotAnArray(t *testing.T) {
	path := writeFile(t, "data.json", `{"a": 1}`)

	_, err := OpenJSONArray(path)
	assert.Error(t, err)
}

func TestOpen_ByExtension(t *testing.T) {
	csvPath := writeFile(t, "x.csv", "a\n1\n")
	src, err := Open(csvPath)
	require.NoError(t, err)
	src.Close()

	_, err = Open("file.parquet")
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.csv"))
	assert.True(t, Supported("a.csv.gz"))
	assert.True(t, Supported("a.jsonl"))
	assert.True(t, Supported("a.ndjson"))
	assert.True(t, Supported("a.json"))
	assert.False(t, Supported("a.parquet"))
	assert.False(t, Supported("a.txt"))
}

func TestSourceHonorsCancellation(t *testing.T) {
	path := writeFile(t, "data.csv", "a\n1\n2\n")
	src, err := OpenCSV(path)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
