package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWaves(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, ParseWaves("a,b;c"))
	assert.Equal(t, [][]string{{"b", "a"}}, ParseWaves(" b , a "))
	assert.Nil(t, ParseWaves(""))
	assert.Nil(t, ParseWaves(" ; , ;"))
}

func TestOrderByWaves(t *testing.T) {
	t.Run("within-wave listed order wins", func(t *testing.T) {
		got := OrderByWaves([]string{"a", "b"}, ParseWaves("b,a"))
		assert.Equal(t, []string{"b", "a"}, got)
	})

	t.Run("unlisted names keep due order", func(t *testing.T) {
		got := OrderByWaves([]string{"x", "c", "y"}, [][]string{{"c"}})
		assert.Equal(t, []string{"c", "x", "y"}, got)
	})

	t.Run("wave members not due are skipped", func(t *testing.T) {
		got := OrderByWaves([]string{"b"}, [][]string{{"a"}, {"b"}})
		assert.Equal(t, []string{"b"}, got)
	})

	t.Run("no waves preserves due order", func(t *testing.T) {
		got := OrderByWaves([]string{"z", "a"}, nil)
		assert.Equal(t, []string{"z", "a"}, got)
	})

	t.Run("duplicate name across waves placed once", func(t *testing.T) {
		got := OrderByWaves([]string{"a", "b"}, [][]string{{"a"}, {"a", "b"}})
		assert.Equal(t, []string{"a", "b"}, got)
	})
}

func TestBackoffDelay(t *testing.T) {
	t.Run("none policy never defers", func(t *testing.T) {
		c := DefaultBackoffConfig()
		assert.Zero(t, c.Delay(1))
		assert.Zero(t, c.Delay(10))
	})

	t.Run("exponential growth with cap", func(t *testing.T) {
		c := DefaultBackoffConfig()
		c.Policy = BackoffExponential
		assert.Equal(t, "5m0s", c.Delay(1).String())
		assert.Equal(t, "10m0s", c.Delay(2).String())
		assert.Equal(t, "20m0s", c.Delay(3).String())
		assert.Equal(t, "6h0m0s", c.Delay(20).String())
	})

	t.Run("zero failures means no delay", func(t *testing.T) {
		c := DefaultBackoffConfig()
		c.Policy = BackoffExponential
		assert.Zero(t, c.Delay(0))
	})
}
