package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 42, ParseIntDefault("42", 7))
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("not-a-number", 7))
}

func TestParseTimeFormats(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	got, ok := ParseTime("2025-03-14T09:26:53Z")
	require.True(t, ok)
	assert.True(t, got.Equal(want))

	got, ok = ParseTime(strconv.FormatInt(want.Unix(), 10))
	require.True(t, ok)
	assert.Equal(t, want.Unix(), got.Unix())

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	to := time.Date(2025, 3, 14, 11, 4, 9, 0, time.UTC)

	af, at := AlignFromTo(from, to, "5m")
	assert.Equal(t, time.Date(2025, 3, 14, 9, 25, 0, 0, time.UTC), af)
	assert.Equal(t, time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC), at)

	af, at = AlignFromTo(from, to, "weekly")
	assert.Equal(t, time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC), af)
	assert.Equal(t, time.Date(2025, 3, 14, 11, 4, 0, 0, time.UTC), at)
}
