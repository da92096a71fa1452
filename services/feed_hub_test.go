package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFeed(t *testing.T) (*FeedHub, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewFeedHub()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn, r.URL.Query().Get("brewery_id"))
	}))
	t.Cleanup(srv.Close)

	return hub, srv
}

func dialFeed(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *FeedHub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ClientCount(context.Background()) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFeedHubBroadcastsEvents(t *testing.T) {
	hub, srv := startFeed(t)
	conn := dialFeed(t, srv, "")
	waitForClients(t, hub, 1)

	hub.Publish(FeedEvent{Type: FeedEventCheckIn, BreweryID: "b1", Username: "hoppy", Points: 15})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev FeedEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, FeedEventCheckIn, ev.Type)
	assert.Equal(t, "hoppy", ev.Username)
	assert.Equal(t, 15, ev.Points)
	assert.False(t, ev.At.IsZero())
}

func TestFeedHubFiltersByBrewery(t *testing.T) {
	hub, srv := startFeed(t)
	conn := dialFeed(t, srv, "?brewery_id=b2")
	waitForClients(t, hub, 1)

	hub.Publish(FeedEvent{Type: FeedEventCheckIn, BreweryID: "b1", Username: "skip"})
	hub.Publish(FeedEvent{Type: FeedEventCheckIn, BreweryID: "b2", Username: "keep"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev FeedEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "keep", ev.Username)
}

func TestFeedHubRemovesClosedClients(t *testing.T) {
	hub, srv := startFeed(t)
	conn := dialFeed(t, srv, "")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
