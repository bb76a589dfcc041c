package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeISO(t *testing.T) {
	n := New(DefaultOffset)
	want := time.Date(2025, 11, 23, 23, 35, 10, 123_000_000, time.UTC)

	cases := []string{
		"2025-11-23T23:35:10.123",
		"2025-11-23T23:35:10.123456",
		"2025-11-23T23:35:10.123Z",
		"2025-11-23T23:35:10.123+00:00",
		"2025-11-23T18:35:10.123-05:00",
		"2025-11-23 23:35:10.123",
	}
	for _, raw := range cases {
		got, err := n.Normalize(raw, ISO)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s: got %v", raw, got)
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestNormalizeLocalAppliesOffset(t *testing.T) {
	n := New(-5 * time.Hour)

	got, err := n.Normalize("2025-11-23T18:35:10.000", Local)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 23, 23, 35, 10, 0, time.UTC), got)

	// An explicit zone wins over the configured offset.
	got, err = n.Normalize("2025-11-23T18:35:10.000Z", Local)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 23, 18, 35, 10, 0, time.UTC), got)
}

func TestNormalizeGadget(t *testing.T) {
	n := New(-5 * time.Hour)

	got, err := n.Normalize("18:35:10:250", Gadget("20251123"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 23, 23, 35, 10, 250_000_000, time.UTC), got)

	// Local evening crosses into the next UTC day.
	got, err = n.Normalize("21:00:00:000", Gadget("20251123"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 24, 2, 0, 0, 0, time.UTC), got)
}

func TestNormalizeErrors(t *testing.T) {
	n := New(DefaultOffset)

	bad := []struct {
		raw  string
		hint Hint
	}{
		{"", ISO},
		{"yesterday", ISO},
		{"23/11/2025 10:00", Local},
		{"18:35:10", Gadget("20251123")},
		{"18:61:10:000", Gadget("20251123")},
		{"18:35:10:000", Gadget("power")},
		{"2025-11-23T10:00:00", Hint{Format: Format(42)}},
	}
	for _, c := range bad {
		_, err := n.Normalize(c.raw, c.hint)
		var pe *ParseError
		require.Error(t, err, c.raw)
		assert.True(t, errors.As(err, &pe), c.raw)
	}
}

func TestNormalizeDeterministicMillisecond(t *testing.T) {
	n := New(DefaultOffset)
	a, err := n.Normalize("2025-11-23T23:35:10.123987", ISO)
	require.NoError(t, err)
	b, err := n.Normalize("2025-11-23T23:35:10.123987", ISO)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 123*time.Millisecond, time.Duration(a.Nanosecond()))
}

func TestNormalizeStamp(t *testing.T) {
	n := New(-5 * time.Hour)

	got, err := n.Normalize("20251123_183510", Stamp)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 23, 23, 35, 10, 0, time.UTC), got)

	_, err = n.Normalize("20251123-183510", Stamp)
	assert.Error(t, err)
}
