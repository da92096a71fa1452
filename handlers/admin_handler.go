package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"brewedAtAPI/internal/achievement"
	"brewedAtAPI/internal/types/brewery"
	"brewedAtAPI/internal/types/event"
	"brewedAtAPI/internal/types/raffle"
	"brewedAtAPI/services"
)

type AdminHandler struct {
	adminService       *services.AdminService
	breweryService     *services.BreweryService
	eventService       *services.EventService
	raffleService      *services.RaffleService
	achievementService *services.AchievementService
}

func NewAdminHandler(
	adminService *services.AdminService,
	breweryService *services.BreweryService,
	eventService *services.EventService,
	raffleService *services.RaffleService,
	achievementService *services.AchievementService,
) *AdminHandler {
	return &AdminHandler{
		adminService:       adminService,
		breweryService:     breweryService,
		eventService:       eventService,
		raffleService:      raffleService,
		achievementService: achievementService,
	}
}

func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	overview, err := h.adminService.Overview(ctx)
	if err != nil {
		respondWithServiceError(w, "Overview", err)
		return
	}
	respondWithJSON(w, http.StatusOK, overview)
}

// Breweries

func (h *AdminHandler) CreateBrewery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req brewery.UpsertBreweryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	b, err := h.breweryService.CreateBrewery(ctx, &req)
	if err != nil {
		respondWithServiceError(w, "CreateBrewery", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, b)
}

func (h *AdminHandler) UpdateBrewery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req brewery.UpsertBreweryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	b, err := h.breweryService.UpdateBrewery(ctx, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, "UpdateBrewery", err)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

func (h *AdminHandler) DeleteBrewery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.breweryService.DeactivateBrewery(ctx, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "DeleteBrewery", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) GenerateCheckInQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	qr, err := h.breweryService.GenerateCheckInQR(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "GenerateCheckInQR", err)
		return
	}
	respondWithJSON(w, http.StatusOK, qr)
}

// Events

func (h *AdminHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req event.UpsertEventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	e, err := h.eventService.CreateEvent(ctx, &req)
	if err != nil {
		respondWithServiceError(w, "CreateEvent", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, e)
}

func (h *AdminHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req event.UpsertEventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	e, err := h.eventService.UpdateEvent(ctx, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, "UpdateEvent", err)
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

func (h *AdminHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.eventService.DeleteEvent(ctx, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "DeleteEvent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Raffles

func (h *AdminHandler) ListRaffles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	raffles, err := h.raffleService.ListRaffles(ctx, "all")
	if err != nil {
		respondWithServiceError(w, "ListRaffles", err)
		return
	}
	respondWithJSON(w, http.StatusOK, raffles)
}

func (h *AdminHandler) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req raffle.UpsertRaffleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.raffleService.CreateRaffle(ctx, &req)
	if err != nil {
		respondWithServiceError(w, "CreateRaffle", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateRaffle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req raffle.UpsertRaffleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.raffleService.UpdateRaffle(ctx, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, "UpdateRaffle", err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// DrawRaffle draws now. ?force=true allows drawing before ends_at.
func (h *AdminHandler) DrawRaffle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := h.raffleService.DrawRaffle(ctx, mux.Vars(r)["id"], queryBool(r, "force"))
	if err != nil {
		respondWithServiceError(w, "DrawRaffle", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) CancelRaffle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.raffleService.CancelRaffle(ctx, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "CancelRaffle", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(raffle.StatusCancelled)})
}

// Achievements

func (h *AdminHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	defs, err := h.achievementService.ListDefinitions(ctx)
	if err != nil {
		respondWithServiceError(w, "ListAchievements", err)
		return
	}
	respondWithJSON(w, http.StatusOK, defs)
}

func (h *AdminHandler) CreateAchievement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req achievement.UpsertAchievementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	def, err := h.achievementService.CreateDefinition(ctx, &req)
	if err != nil {
		respondWithServiceError(w, "CreateAchievement", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, def)
}

func (h *AdminHandler) UpdateAchievement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req achievement.UpsertAchievementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	def, err := h.achievementService.UpdateDefinition(ctx, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, "UpdateAchievement", err)
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (h *AdminHandler) DeleteAchievement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.achievementService.DeleteDefinition(ctx, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "DeleteAchievement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
