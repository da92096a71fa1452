package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelFor(t *testing.T) {
	cases := []struct {
		points, perLevel, want int
	}{
		{0, 100, 1},
		{99, 100, 1},
		{100, 100, 2},
		{250, 100, 3},
		{250, 0, 3},
		{-20, 100, 1},
		{1000, 250, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, LevelFor(c.points, c.perLevel), "points=%d perLevel=%d", c.points, c.perLevel)
	}
}

func TestProgressFor(t *testing.T) {
	p := ProgressFor(230, 100)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, 30, p.PointsInLevel)
	assert.Equal(t, 70, p.PointsToNext)

	p = ProgressFor(0, 100)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 100, p.PointsToNext)
}

func TestCheckInAward(t *testing.T) {
	assert.Equal(t, 10, CheckInAward(10, 0))
	assert.Equal(t, 35, CheckInAward(10, 25))
	assert.Equal(t, 10, CheckInAward(10, -5))
}

func TestCooldownRemaining(t *testing.T) {
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	assert.Zero(t, CooldownRemaining(time.Time{}, now, 24*time.Hour))
	assert.Equal(t, 20*time.Hour, CooldownRemaining(now.Add(-4*time.Hour), now, 24*time.Hour))
	assert.Zero(t, CooldownRemaining(now.Add(-24*time.Hour), now, 24*time.Hour))
	assert.Zero(t, CooldownRemaining(now.Add(-time.Minute), now, 0))
}
