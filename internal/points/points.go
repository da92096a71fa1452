package points

import "time"

const DefaultPointsPerLevel = 100

// LevelFor maps lifetime points to a level. Level 1 starts at zero points.
func LevelFor(lifetimePoints, pointsPerLevel int) int {
	if pointsPerLevel <= 0 {
		pointsPerLevel = DefaultPointsPerLevel
	}
	if lifetimePoints < 0 {
		lifetimePoints = 0
	}
	return lifetimePoints/pointsPerLevel + 1
}

type Progress struct {
	Level          int `json:"level"`
	PointsInLevel  int `json:"points_in_level"`
	PointsToNext   int `json:"points_to_next_level"`
	PointsPerLevel int `json:"points_per_level"`
}

func ProgressFor(lifetimePoints, pointsPerLevel int) Progress {
	if pointsPerLevel <= 0 {
		pointsPerLevel = DefaultPointsPerLevel
	}
	if lifetimePoints < 0 {
		lifetimePoints = 0
	}
	in := lifetimePoints % pointsPerLevel
	return Progress{
		Level:          LevelFor(lifetimePoints, pointsPerLevel),
		PointsInLevel:  in,
		PointsToNext:   pointsPerLevel - in,
		PointsPerLevel: pointsPerLevel,
	}
}

// CheckInAward is the total a single check-in is worth.
func CheckInAward(base, eventBonus int) int {
	if base < 0 {
		base = 0
	}
	if eventBonus < 0 {
		eventBonus = 0
	}
	return base + eventBonus
}

// CooldownRemaining returns how long until another check-in is allowed; zero when allowed now.
func CooldownRemaining(last, now time.Time, cooldown time.Duration) time.Duration {
	if last.IsZero() || cooldown <= 0 {
		return 0
	}
	next := last.Add(cooldown)
	if !now.Before(next) {
		return 0
	}
	return next.Sub(now)
}
