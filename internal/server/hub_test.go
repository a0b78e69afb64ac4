package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/grabtube/grabtube/internal/model"
)

func TestHubBroadcastsToClient(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	r := gin.New()
	r.GET("/ws", hub.HandleUpgrade)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// Registration happens inside the handler goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatal("Expected one registered client")
	}

	hub.Broadcast(model.Snapshot{JobID: "job-1", Status: "downloading", Progress: 42})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.Snapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}
	if got.JobID != "job-1" || got.Progress != 42 {
		t.Errorf("Unexpected broadcast payload %+v", got)
	}
}

func TestHubDropsDeadClient(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	r := gin.New()
	r.GET("/ws", hub.HandleUpgrade)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()

	// Writes to a closed connection eventually fail and evict the client.
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() > 0 && time.Now().Before(deadline) {
		hub.Broadcast(model.Snapshot{JobID: "ping"})
		time.Sleep(20 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Error("Expected dead client evicted after failed writes")
	}
}

func TestHubDetectsClientCloseWithoutWrites(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	r := gin.New()
	r.GET("/ws", hub.HandleUpgrade)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	// No broadcasts happen; the read loop alone must notice the departure.
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Error("Expected closed client deregistered without any write")
	}
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()
	hub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Broadcast(model.Snapshot{JobID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no consumer")
	}
}
