package dates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apicrafter/metaclass/pkg/profile"
)

func TestMatcher_Match(t *testing.T) {
	m := New()
	tests := []struct {
		value string
		key   string
	}{
		{"2024-01-02", "iso8601_date"},
		{"2024-01-02T10:30:00", "iso8601_datetime"},
		{"2024-01-02T10:30:00Z", "rfc3339"},
		{"02.01.2024", "date_dmy_dot"},
		{"31/12/2024", "date_dmy_slash"},
		{"2024/01/02", "date_ymd_slash"},
		{"2 Jan 2024", "date_d_mon_y"},
		{"January 2, 2024", "date_month_d_y"},
		{"20240102", "date_compact"},
	}
	for _, tt := range tests {
		key, ok := m.Match(tt.value)
		require.True(t, ok, "value %q", tt.value)
		assert.Equal(t, tt.key, key, "value %q", tt.value)
	}
}

func TestMatcher_NonDates(t *testing.T) {
	m := New()
	for _, v := range []string{"", "hello", "2024-13-45", "99.99.9999", "a@b.com", "12345"} {
		_, ok := m.Match(v)
		assert.False(t, ok, "value %q", v)
	}
}

func TestMatcher_Score(t *testing.T) {
	m := New()
	values := []any{"2024-01-02", "2024-02-03", "2024-03-04", nil, "not a date"}

	key, conf := m.Score(values, profile.Stringify, profile.IsEmptyValue)

	assert.Equal(t, "iso8601_date", key)
	assert.InDelta(t, 75.0, conf, 0.001)
}

func TestMatcher_Score_NoDates(t *testing.T) {
	m := New()
	key, conf := m.Score([]any{"abc", "def"}, profile.Stringify, profile.IsEmptyValue)

	assert.Empty(t, key)
	assert.Zero(t, conf)
}
