package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketPlay(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	// Create a game over plain HTTP first.
	resp, err := http.Post(ts.URL+"/api/games", "application/json",
		bytes.NewReader([]byte(`{"player_name":"Wanda"}`)))
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	var snap Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	resp.Body.Close()
	t.Cleanup(func() { srv.store.GetRunner(snap.ID).Stop() })

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/games/" + snap.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The first frame is the current snapshot.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first Snapshot
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if first.ID != snap.ID || first.PlayerName != "Wanda" {
		t.Fatalf("unexpected initial snapshot: %+v", first)
	}

	// Steer down and wait for a tick that committed it.
	if err := conn.WriteJSON(wsInput{Type: "direction", Direction: "down"}); err != nil {
		t.Fatalf("write input: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("direction was never committed")
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var cur Snapshot
		if err := conn.ReadJSON(&cur); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		if cur.Direction == "down" {
			return
		}
		if cur.State == "over" {
			t.Fatal("game ended before the input was committed")
		}
	}
}

func TestWebSocketUnknownGame(t *testing.T) {
	ts := httptest.NewServer(newTestServer())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/games/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown game")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}
