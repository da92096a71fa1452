package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrBreweryNotFound     = errors.New("brewery not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrRaffleNotFound      = errors.New("raffle not found")
	ErrAchievementNotFound = errors.New("achievement not found")

	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidCheckIn     = errors.New("invalid check-in request")
	ErrInvalidQRToken     = errors.New("invalid qr token")
	ErrOutOfRange         = errors.New("too far from brewery")
	ErrEventNotRunning    = errors.New("event is not running at this brewery")
	ErrInvalidEventWindow = errors.New("event must end after it starts")

	ErrRaffleClosed       = errors.New("raffle is not accepting entries")
	ErrRaffleNotOpen      = errors.New("raffle is not open")
	ErrRaffleNotEnded     = errors.New("raffle has not ended yet")
	ErrInsufficientPoints = errors.New("not enough points")
	ErrEntryLimitReached  = errors.New("raffle entry limit reached")
	ErrInvalidTickets     = errors.New("tickets must be at least 1")
	ErrInvalidRaffle      = errors.New("invalid raffle settings")
	ErrInvalidCriteria    = errors.New("unknown achievement criteria")
)

// CooldownError is returned when the user checked in at the brewery too recently.
type CooldownError struct {
	NextAllowedAt time.Time
	Remaining     time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("check-in cooldown active, try again in %s", e.Remaining.Round(time.Minute))
}

// DistanceError carries the measured distance for an out of range geofence check-in.
type DistanceError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *DistanceError) Error() string {
	return fmt.Sprintf("%s: %.0fm away, must be within %.0fm", ErrOutOfRange.Error(), e.DistanceMeters, e.RadiusMeters)
}

func (e *DistanceError) Unwrap() error {
	return ErrOutOfRange
}
