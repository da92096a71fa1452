package user

import (
	"time"

	"brewedAtAPI/internal/points"
)

type User struct {
	ID             string    `json:"id"`
	ClerkID        string    `json:"clerkId"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	EmailVerified  bool      `json:"emailVerified"`
	Points         int       `json:"points"`
	LifetimePoints int       `json:"lifetimePoints"`
	Level          int       `json:"level"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Profile struct {
	User            *User           `json:"user"`
	Progress        points.Progress `json:"progress"`
	TotalCheckIns   int             `json:"totalCheckIns"`
	UniqueBreweries int             `json:"uniqueBreweries"`
	Achievements    int             `json:"achievementsUnlocked"`
	CheckInStreak   int             `json:"checkInStreak"`
}
