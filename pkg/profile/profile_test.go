package profile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/flatten"
)

func newProfiler(t *testing.T, opts Options) *Profiler {
	t.Helper()
	return New(opts, zap.NewNop())
}

func TestProfiler_StringColumn(t *testing.T) {
	p := newProfiler(t, Options{})
	for _, v := range []string{"alice", "bob", "carol"} {
		p.Add(flatten.Record{"name": v})
	}

	prof := p.Finalize()

	cs := prof.Columns["name"]
	require.NotNil(t, cs)
	assert.Equal(t, TypeStr, cs.Ftype)
	assert.Equal(t, 3, cs.Total)
	assert.Equal(t, 3, cs.NUniq)
	assert.InDelta(t, 100.0, cs.ShareUniq, 0.001)
	assert.Equal(t, 3, cs.MinLen)
	assert.Equal(t, 5, cs.MaxLen)
	assert.True(t, cs.HasAlphas)
	assert.False(t, cs.HasDigit)
	assert.Contains(t, cs.Tags, TagUniq)
}

func TestProfiler_TypeInference(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   string
	}{
		{"ints", []any{1, 2, 3}, TypeInt},
		{"digit strings", []any{"123", "456"}, TypeInt},
		{"leading zero", []any{"0123", "0456"}, TypeNumStr},
		{"floats", []any{1.5, 2.5}, TypeFloat},
		{"float strings", []any{"1.5", "2.5"}, TypeFloat},
		{"bools", []any{true, false}, TypeBool},
		{"mixed is str", []any{"abc", 1}, TypeStr},
		{"datetimes", []any{time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)}, TypeDatetime},
		{"dates", []any{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}, TypeDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProfiler(t, Options{})
			for _, v := range tt.values {
				p.Add(flatten.Record{"col": v})
			}
			prof := p.Finalize()
			require.NotNil(t, prof.Columns["col"])
			assert.Equal(t, tt.want, prof.Columns["col"].Ftype)
		})
	}
}

func TestProfiler_EmptyValuesDoNotChangeFtype(t *testing.T) {
	base := newProfiler(t, Options{})
	for _, v := range []any{"a@b.com", "c@d.com"} {
		base.Add(flatten.Record{"email": v})
	}
	want := base.Finalize().Columns["email"].Ftype

	withEmpty := newProfiler(t, Options{})
	for _, v := range []any{"a@b.com", "c@d.com", nil, "", "N/A"} {
		withEmpty.Add(flatten.Record{"email": v})
	}
	got := withEmpty.Finalize().Columns["email"]

	assert.Equal(t, want, got.Ftype)
	assert.Contains(t, got.Tags, TagEmpty)
}

func TestProfiler_UniqRequiresFullShare(t *testing.T) {
	// Distinct values plus empties: share_uniq falls below 100, so the
	// column is no longer tagged uniq.
	p := newProfiler(t, Options{})
	for _, v := range []any{"alice", "bob", nil} {
		p.Add(flatten.Record{"name": v})
	}

	cs := p.Finalize().Columns["name"]
	require.NotNil(t, cs)

	assert.Equal(t, 2, cs.NUniq)
	assert.InDelta(t, 66.67, cs.ShareUniq, 0.01)
	assert.NotContains(t, cs.Tags, TagUniq)
	assert.Contains(t, cs.Tags, TagEmpty)
}

func TestProfiler_DictDetection(t *testing.T) {
	p := newProfiler(t, Options{DictShareThreshold: 10})
	statuses := []string{"A", "B", "C"}
	for i := 0; i < 99; i++ {
		p.Add(flatten.Record{"status": statuses[i%3]})
	}

	cs := p.Finalize().Columns["status"]

	require.NotNil(t, cs)
	assert.Contains(t, cs.Tags, TagDict)
	assert.Equal(t, []string{"A", "B", "C"}, cs.DictValues)
}

func TestProfiler_HighCardinalityNotDict(t *testing.T) {
	p := newProfiler(t, Options{DictShareThreshold: 10})
	for i := 0; i < 50; i++ {
		p.Add(flatten.Record{"id": fmt.Sprintf("user-%d", i)})
	}

	cs := p.Finalize().Columns["id"]

	assert.NotContains(t, cs.Tags, TagDict)
	assert.Empty(t, cs.DictValues)
}

func TestProfiler_NumericMinMax(t *testing.T) {
	p := newProfiler(t, Options{})
	for _, v := range []any{5, 1, 9} {
		p.Add(flatten.Record{"num": v})
	}

	cs := p.Finalize().Columns["num"]

	require.NotNil(t, cs.MinVal)
	require.NotNil(t, cs.MaxVal)
	assert.Equal(t, 1.0, *cs.MinVal)
	assert.Equal(t, 9.0, *cs.MaxVal)
}

func TestProfiler_DropsAccidentalIndexKeys(t *testing.T) {
	p := newProfiler(t, Options{})
	p.Add(flatten.Record{"a": 1, "0abc": 2, "name": "x"})

	prof := p.Finalize()

	assert.NotContains(t, prof.Columns, "a")
	assert.NotContains(t, prof.Columns, "0abc")
	assert.Contains(t, prof.Columns, "name")
}

func TestProfiler_SampleLimit(t *testing.T) {
	p := newProfiler(t, Options{MaxSample: 5})
	for i := 0; i < 20; i++ {
		p.Add(flatten.Record{"val": fmt.Sprintf("v%d", i)})
	}

	prof := p.Finalize()

	assert.Len(t, prof.Samples["val"], 5)
	assert.Equal(t, 20, prof.Columns["val"].Total)
}

func TestProfiler_DateGuesserHook(t *testing.T) {
	guess := func(s string) (string, bool) {
		if s == "2024-01-02" {
			return "iso8601_date", true
		}
		return "", false
	}
	p := newProfiler(t, Options{DateGuesser: guess})
	p.Add(flatten.Record{"created": "2024-01-02"})
	p.Add(flatten.Record{"created": "2024-01-02"})

	cs := p.Finalize().Columns["created"]

	assert.Equal(t, TypeDate, cs.Ftype)
	assert.Equal(t, "iso8601_date", cs.DateFormat)
}

func TestProfiler_MalformedRecordsSkipped(t *testing.T) {
	p := newProfiler(t, Options{})
	p.Add(nil)
	p.Add(flatten.Record{"val": "ok"})

	assert.Equal(t, 1, p.Skipped())
	assert.Equal(t, 1, p.Finalize().Columns["val"].Total)
}

func TestIsEmptyValue(t *testing.T) {
	for _, v := range []any{nil, "", "None", "NaN", "-", "N/A"} {
		assert.True(t, IsEmptyValue(v), "value %v", v)
	}
	for _, v := range []any{"x", 0, false} {
		assert.False(t, IsEmptyValue(v), "value %v", v)
	}
}
