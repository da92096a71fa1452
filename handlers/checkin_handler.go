package handlers

import (
	"context"
	"net/http"
	"time"

	"brewedAtAPI/internal/types/checkin"
	"brewedAtAPI/middleware"
	"brewedAtAPI/services"
)

type CheckInHandler struct {
	checkInService *services.CheckInService
}

func NewCheckInHandler(checkInService *services.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService}
}

func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req checkin.CheckInRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.checkInService.CheckIn(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, "CheckIn", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}
