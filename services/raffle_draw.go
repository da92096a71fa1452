package services

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/google/uuid"
)

// Ticket is one user's stake in a raffle draw.
type Ticket struct {
	UserID  uuid.UUID
	Tickets int
}

var errNoTickets = errors.New("no tickets")

// cryptoIntn returns a uniform value in [0, n) from crypto/rand.
func cryptoIntn(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// PickWinner chooses a user with probability proportional to their tickets.
// Entries with no tickets never win.
func PickWinner(entries []Ticket, intn func(n int64) (int64, error)) (uuid.UUID, error) {
	var total int64
	for _, e := range entries {
		if e.Tickets > 0 {
			total += int64(e.Tickets)
		}
	}
	if total == 0 {
		return uuid.Nil, errNoTickets
	}

	pick, err := intn(total)
	if err != nil {
		return uuid.Nil, err
	}

	for _, e := range entries {
		if e.Tickets <= 0 {
			continue
		}
		if pick < int64(e.Tickets) {
			return e.UserID, nil
		}
		pick -= int64(e.Tickets)
	}

	return uuid.Nil, errNoTickets
}
