package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	t.Parallel()

	s := NewSMA(3)
	assert.Equal(t, "SMA(3)", s.Name())
	assert.False(t, s.Ready())
	assert.Zero(t, s.Value())

	s.Update(1)
	s.Update(2)
	assert.False(t, s.Ready())
	assert.InDelta(t, 1.5, s.Value(), 1e-9, "partial window averages what it has")

	s.Update(3)
	assert.True(t, s.Ready())
	assert.InDelta(t, 2.0, s.Value(), 1e-9)

	s.Update(6)
	assert.InDelta(t, (2.0+3+6)/3, s.Value(), 1e-9, "oldest value dropped")

	s.Reset()
	assert.False(t, s.Ready())
	assert.Zero(t, s.Value())
}

func TestEMA(t *testing.T) {
	t.Parallel()

	e := NewEMA(3) // alpha = 0.5
	assert.Equal(t, "EMA(3)", e.Name())
	assert.False(t, e.Ready())

	e.Update(10)
	assert.InDelta(t, 10.0, e.Value(), 1e-9, "seeded with first observation")

	e.Update(20)
	assert.InDelta(t, 15.0, e.Value(), 1e-9)

	e.Update(30)
	assert.True(t, e.Ready())
	assert.InDelta(t, 22.5, e.Value(), 1e-9)
}

func TestBadPeriodsPanic(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewSMA(0) })
	assert.Panics(t, func() { NewEMA(-1) })
}
