package achievement

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Stats holds a user's aggregate activity keyed by criteria.
type Stats map[CriteriaType]int

// Evaluate returns the definitions the stats satisfy that are not unlocked yet,
// ordered by criteria value then name.
func Evaluate(defs []Achievement, stats Stats, unlocked map[uuid.UUID]bool) []Achievement {
	var out []Achievement
	for _, def := range defs {
		if unlocked[def.ID] {
			continue
		}
		if def.CriteriaValue <= 0 {
			continue
		}
		if stats[def.CriteriaType] >= def.CriteriaValue {
			out = append(out, def)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CriteriaValue != out[j].CriteriaValue {
			return out[i].CriteriaValue < out[j].CriteriaValue
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TotalReward sums reward points of the given achievements.
func TotalReward(achs []Achievement) int {
	total := 0
	for _, a := range achs {
		total += a.RewardPoints
	}
	return total
}

// Streak counts consecutive calendar days (UTC) ending today or yesterday.
// days may be unsorted and contain duplicates.
func Streak(days []time.Time, today time.Time) int {
	if len(days) == 0 {
		return 0
	}

	seen := make(map[time.Time]bool, len(days))
	for _, d := range days {
		seen[truncateDay(d)] = true
	}

	cursor := truncateDay(today)
	if !seen[cursor] {
		cursor = cursor.AddDate(0, 0, -1)
		if !seen[cursor] {
			return 0
		}
	}

	streak := 0
	for seen[cursor] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
