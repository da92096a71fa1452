package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"brewedAtAPI/internal/logger"
	"brewedAtAPI/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The mobile app connects without an Origin header; browsers are limited by CORS on the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type FeedHandler struct {
	hub *services.FeedHub
}

func NewFeedHandler(hub *services.FeedHub) *FeedHandler {
	return &FeedHandler{hub: hub}
}

// GET /api/v1/feed/ws?brewery_id=
func (h *FeedHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	breweryID := r.URL.Query().Get("brewery_id")
	if breweryID != "" {
		if _, err := uuid.Parse(breweryID); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'brewery_id'")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		logger.Sugar.Debugf("Feed upgrade failed: %v", err)
		return
	}

	h.hub.Attach(conn, breweryID)
}
