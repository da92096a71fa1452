package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"brewedAtAPI/internal/geo"
	"brewedAtAPI/internal/types/brewery"
	"brewedAtAPI/internal/types/event"
	"brewedAtAPI/services"
)

type BreweryHandler struct {
	breweryService *services.BreweryService
	eventService   *services.EventService
}

func NewBreweryHandler(breweryService *services.BreweryService, eventService *services.EventService) *BreweryHandler {
	return &BreweryHandler{
		breweryService: breweryService,
		eventService:   eventService,
	}
}

type BreweryDetail struct {
	Brewery        *brewery.Brewery `json:"brewery"`
	ActiveEvent    *event.Event     `json:"active_event"`
	UpcomingEvents []*event.Event   `json:"upcoming_events"`
}

func (h *BreweryHandler) ListBreweries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	breweries, err := h.breweryService.ListBreweries(ctx, r.URL.Query().Get("city"))
	if err != nil {
		respondWithServiceError(w, "ListBreweries", err)
		return
	}

	respondWithJSON(w, http.StatusOK, breweries)
}

func (h *BreweryHandler) NearbyBreweries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		respondWithError(w, http.StatusBadRequest, "Query parameters 'lat' and 'lng' are required")
		return
	}

	radiusKm := 0.0
	if raw := q.Get("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'radius_km'")
			return
		}
		radiusKm = v
	}

	breweries, err := h.breweryService.NearbyBreweries(ctx, geo.Point{Lat: lat, Lng: lng}, radiusKm, queryInt(r, "limit", 0))
	if err != nil {
		respondWithServiceError(w, "NearbyBreweries", err)
		return
	}

	respondWithJSON(w, http.StatusOK, breweries)
}

func (h *BreweryHandler) GetBrewery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	b, err := h.breweryService.GetBrewery(ctx, id)
	if err != nil {
		respondWithServiceError(w, "GetBrewery", err)
		return
	}
	if !b.IsActive {
		respondWithError(w, http.StatusNotFound, services.ErrBreweryNotFound.Error())
		return
	}

	active, err := h.eventService.ActiveEventAt(ctx, b.ID, time.Now())
	if err != nil {
		respondWithServiceError(w, "GetBrewery", err)
		return
	}

	upcoming, err := h.eventService.ListUpcomingEvents(ctx, id)
	if err != nil {
		respondWithServiceError(w, "GetBrewery", err)
		return
	}

	respondWithJSON(w, http.StatusOK, BreweryDetail{
		Brewery:        b,
		ActiveEvent:    active,
		UpcomingEvents: upcoming,
	})
}
