package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "*"},
		{"ab", "**"},
		{"a@b.com", "a*****m"},
		{"4539578763621486", "4**************6"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskValue(tt.in))
	}
}

func TestMaskValue_Truncates(t *testing.T) {
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	got := MaskValue(long)
	assert.LessOrEqual(t, len(got), 24)
	assert.Equal(t, "a", got[:1])
}

func TestRedactKey(t *testing.T) {
	assert.Equal(t, "", RedactKey(""))
	assert.Equal(t, "***", RedactKey("short"))
	assert.Equal(t, "sk-a...yz", RedactKey("sk-abcdefghijklmnopqrstuvwxyz"))
}
