package handlers

import (
	"context"
	"net/http"
	"time"

	"brewedAtAPI/middleware"
	"brewedAtAPI/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: leaderboardService}
}

// GetLeaderboard is the public board; it never carries a caller position.
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	board, err := h.leaderboardService.GetLeaderboard(ctx, q.Get("scope"), q.Get("brewery_id"), "")
	if err != nil {
		respondWithServiceError(w, "GetLeaderboard", err)
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}

func (h *LeaderboardHandler) GetMyLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	q := r.URL.Query()
	board, err := h.leaderboardService.GetLeaderboard(ctx, q.Get("scope"), q.Get("brewery_id"), clerkID)
	if err != nil {
		respondWithServiceError(w, "GetMyLeaderboard", err)
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}
