package academicyear

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestResolveAugustBoundary(t *testing.T) {
	assert.Equal(t, "2024-2025", Resolve(date(2025, time.July, 31)))
	assert.Equal(t, "2025-2026", Resolve(date(2025, time.August, 1)))
	assert.Equal(t, "2025-2026", Resolve(date(2026, time.July, 31)))
	assert.Equal(t, "2026-2027", Resolve(date(2026, time.August, 1)))
}

func TestResolveMidYearMonths(t *testing.T) {
	assert.Equal(t, "2024-2025", Resolve(date(2025, time.January, 15)))
	assert.Equal(t, "2025-2026", Resolve(date(2025, time.December, 31)))
}

func TestStartYear(t *testing.T) {
	start, ok := StartYear("2025-2026")
	require.True(t, ok)
	assert.Equal(t, 2025, start)

	_, ok = StartYear("2025-2027")
	assert.False(t, ok)
	_, ok = StartYear("2025")
	assert.False(t, ok)
	_, ok = StartYear("abcd-efgh")
	assert.False(t, ok)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("2024-2025"))
	assert.False(t, Valid("2024-2026"))
	assert.False(t, Valid(""))
}

func TestEnumerateFrom(t *testing.T) {
	anchor := date(2025, time.September, 10) // resolves to 2025-2026
	years := EnumerateFrom(anchor, 2, 1)
	assert.Equal(t, []string{"2023-2024", "2024-2025", "2025-2026", "2026-2027"}, years)
}

func TestEnumerateFromClampsNegatives(t *testing.T) {
	anchor := date(2025, time.March, 1) // resolves to 2024-2025
	years := EnumerateFrom(anchor, -3, -1)
	assert.Equal(t, []string{"2024-2025"}, years)
}
