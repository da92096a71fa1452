package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"brewedAtAPI/internal/logger"
	"brewedAtAPI/services"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 itself and returns false when the body is unusable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return "Validation failed: " + strings.Join(parts, ", ")
}

// respondWithServiceError maps domain errors to HTTP responses. Anything unknown is a 500
// and gets logged with op.
func respondWithServiceError(w http.ResponseWriter, op string, err error) {
	var cooldown *services.CooldownError
	var distance *services.DistanceError

	switch {
	case errors.As(err, &cooldown):
		respondWithJSON(w, http.StatusConflict, map[string]interface{}{
			"error":             err.Error(),
			"next_allowed_at":   cooldown.NextAllowedAt.UTC().Format(time.RFC3339),
			"remaining_seconds": int(cooldown.Remaining.Seconds()),
		})
	case errors.As(err, &distance):
		respondWithJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":      err.Error(),
			"distance_m": distance.DistanceMeters,
			"radius_m":   distance.RadiusMeters,
		})

	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrBreweryNotFound),
		errors.Is(err, services.ErrEventNotFound),
		errors.Is(err, services.ErrRaffleNotFound),
		errors.Is(err, services.ErrAchievementNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, services.ErrInvalidID),
		errors.Is(err, services.ErrInvalidCoordinates),
		errors.Is(err, services.ErrInvalidCheckIn),
		errors.Is(err, services.ErrInvalidEventWindow),
		errors.Is(err, services.ErrInvalidTickets),
		errors.Is(err, services.ErrInvalidRaffle),
		errors.Is(err, services.ErrInvalidCriteria),
		errors.Is(err, services.ErrInvalidScope):
		respondWithError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, services.ErrInvalidQRToken),
		errors.Is(err, services.ErrOutOfRange):
		respondWithError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, services.ErrEventNotRunning),
		errors.Is(err, services.ErrRaffleClosed),
		errors.Is(err, services.ErrRaffleNotOpen),
		errors.Is(err, services.ErrRaffleNotEnded),
		errors.Is(err, services.ErrEntryLimitReached),
		errors.Is(err, services.ErrInsufficientPoints):
		respondWithError(w, http.StatusConflict, err.Error())

	default:
		logger.Sugar.Errorf("%s: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
