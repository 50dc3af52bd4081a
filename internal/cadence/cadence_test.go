package cadence

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_RoundsForward(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)

	next, err := Next("0 * * * *", anchor)
	require.NoError(t, err)

	assert.True(t, next.After(anchor))
	assert.Equal(t, 0, next.Minute())
	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), next)
}

func TestNext_StrictlyAfterAnchor(t *testing.T) {
	// Anchor exactly on a cadence boundary must roll to the next slot.
	anchor := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)

	next, err := Next("0 * * * *", anchor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), next)
}

func TestNext_EveryFiveMinutes(t *testing.T) {
	anchor := time.Date(2024, 6, 15, 9, 2, 11, 0, time.UTC)

	next, err := Next("*/5 * * * *", anchor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 9, 5, 0, 0, time.UTC), next)
}

func TestNext_Descriptor(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)

	next, err := Next("@hourly", anchor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), next)
}

func TestNext_NormalizesToUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	anchor := time.Date(2024, 3, 1, 7, 30, 0, 0, loc) // 12:30 UTC

	next, err := Next("0 * * * *", anchor)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, next.Location())
	assert.Equal(t, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), next)
}

func TestNext_InvalidExpression(t *testing.T) {
	_, err := Next("not a cron", time.Now())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidExpression))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/15 * * * *"))
	assert.Error(t, Validate("61 * * * *"))
	assert.Error(t, Validate(""))
}
