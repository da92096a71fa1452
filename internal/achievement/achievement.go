package achievement

import (
	"time"

	"github.com/google/uuid"
)

type CriteriaType string

const (
	CriteriaTotalCheckIns   CriteriaType = "total_checkins"
	CriteriaUniqueBreweries CriteriaType = "unique_breweries"
	CriteriaEventsAttended  CriteriaType = "events_attended"
	CriteriaLifetimePoints  CriteriaType = "lifetime_points"
	CriteriaLevel           CriteriaType = "level"
	CriteriaRaffleEntries   CriteriaType = "raffle_entries"
	CriteriaCheckInStreak   CriteriaType = "checkin_streak"
)

func (c CriteriaType) Valid() bool {
	switch c {
	case CriteriaTotalCheckIns, CriteriaUniqueBreweries, CriteriaEventsAttended,
		CriteriaLifetimePoints, CriteriaLevel, CriteriaRaffleEntries, CriteriaCheckInStreak:
		return true
	}
	return false
}

type Achievement struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	Code          string       `json:"code" db:"code"`
	Name          string       `json:"name" db:"name"`
	Description   string       `json:"description" db:"description"`
	Icon          string       `json:"icon" db:"icon"`
	CriteriaType  CriteriaType `json:"criteria_type" db:"criteria_type"`
	CriteriaValue int          `json:"criteria_value" db:"criteria_value"`
	RewardPoints  int          `json:"reward_points" db:"reward_points"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

type AchievementWithStatus struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	Progress   int        `json:"progress"`
}

type UpsertAchievementRequest struct {
	Code          string       `json:"code" validate:"required,max=64"`
	Name          string       `json:"name" validate:"required,max=120"`
	Description   string       `json:"description" validate:"max=1000"`
	Icon          string       `json:"icon"`
	CriteriaType  CriteriaType `json:"criteria_type" validate:"required"`
	CriteriaValue int          `json:"criteria_value" validate:"gte=1"`
	RewardPoints  int          `json:"reward_points" validate:"gte=0"`
}
