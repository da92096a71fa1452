package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"brewedAtAPI/services"
)

type EventHandler struct {
	eventService *services.EventService
}

func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := h.eventService.ListUpcomingEvents(ctx, r.URL.Query().Get("brewery_id"))
	if err != nil {
		respondWithServiceError(w, "ListEvents", err)
		return
	}

	respondWithJSON(w, http.StatusOK, events)
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	e, err := h.eventService.GetEvent(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "GetEvent", err)
		return
	}

	respondWithJSON(w, http.StatusOK, e)
}
