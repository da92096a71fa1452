package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"brewedAtAPI/internal/types/raffle"
	"brewedAtAPI/middleware"
	"brewedAtAPI/services"
)

type RaffleHandler struct {
	raffleService *services.RaffleService
}

func NewRaffleHandler(raffleService *services.RaffleService) *RaffleHandler {
	return &RaffleHandler{raffleService: raffleService}
}

func (h *RaffleHandler) ListRaffles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := r.URL.Query().Get("status")
	switch raffle.Status(status) {
	case "", "all", raffle.StatusOpen, raffle.StatusDrawn, raffle.StatusCancelled:
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid 'status', expected open, drawn, cancelled or all")
		return
	}

	raffles, err := h.raffleService.ListRaffles(ctx, status)
	if err != nil {
		respondWithServiceError(w, "ListRaffles", err)
		return
	}

	respondWithJSON(w, http.StatusOK, raffles)
}

func (h *RaffleHandler) GetRaffle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, _ := middleware.GetClerkID(ctx)

	result, err := h.raffleService.GetRaffle(ctx, clerkID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "GetRaffle", err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *RaffleHandler) EnterRaffle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req raffle.EnterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.raffleService.EnterRaffle(ctx, clerkID, mux.Vars(r)["id"], req.Tickets)
	if err != nil {
		respondWithServiceError(w, "EnterRaffle", err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
