package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"brewedAtAPI/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	clientSendBuffer = 32
	feedBuffer       = 256
)

const (
	FeedEventCheckIn    = "checkin"
	FeedEventRaffleDraw = "raffle_drawn"
)

type FeedEvent struct {
	Type        string    `json:"type"`
	BreweryID   string    `json:"brewery_id,omitempty"`
	BreweryName string    `json:"brewery_name,omitempty"`
	Username    string    `json:"username,omitempty"`
	Points      int       `json:"points,omitempty"`
	RaffleID    string    `json:"raffle_id,omitempty"`
	RaffleTitle string    `json:"raffle_title,omitempty"`
	At          time.Time `json:"at"`
}

// FeedHub fans live activity out to websocket subscribers.
// Clients are added and removed through the register/unregister channels so only
// Run touches the client map. A client whose send buffer is full is dropped.
type FeedHub struct {
	clients    map[*FeedClient]bool
	broadcast  chan FeedEvent
	register   chan *FeedClient
	unregister chan *FeedClient
	count      chan chan int
	done       chan struct{}
}

func NewFeedHub() *FeedHub {
	return &FeedHub{
		clients:    make(map[*FeedClient]bool),
		broadcast:  make(chan FeedEvent, feedBuffer),
		register:   make(chan *FeedClient),
		unregister: make(chan *FeedClient),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run owns the client map until ctx is cancelled.
func (h *FeedHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			logger.Sugar.Debugf("[Feed] client connected, count: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev)
			if err != nil {
				logger.Sugar.Errorf("[Feed] failed to encode event: %v", err)
				continue
			}
			for client := range h.clients {
				if !client.wants(ev) {
					continue
				}
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Publish queues an event without blocking. Events are dropped when the hub is saturated.
func (h *FeedHub) Publish(ev FeedEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- ev:
	default:
		logger.Sugar.Warnf("[Feed] broadcast queue full, dropping %s event", ev.Type)
	}
}

// ClientCount asks Run for the number of connected clients.
func (h *FeedHub) ClientCount(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-ctx.Done():
		return 0
	case <-h.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}

// Attach registers a websocket connection and starts its pumps.
// breweryID limits the client to events of one brewery when non-empty.
func (h *FeedHub) Attach(conn *websocket.Conn, breweryID string) *FeedClient {
	client := &FeedClient{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, clientSendBuffer),
		breweryID: breweryID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return client
}

type FeedClient struct {
	hub       *FeedHub
	conn      *websocket.Conn
	send      chan []byte
	breweryID string
}

func (c *FeedClient) wants(ev FeedEvent) bool {
	return c.breweryID == "" || ev.BreweryID == "" || c.breweryID == ev.BreweryID
}

// readPump only services control frames; subscribers never send data.
func (c *FeedClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Sugar.Debugf("[Feed] read error: %v", err)
			}
			return
		}
	}
}

func (c *FeedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
