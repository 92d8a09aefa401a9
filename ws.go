package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingPeriod   = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The game server and frontend may run on different origins
	// (the original pair did); scores are validated server-side anyway.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsInput is a message from the browser: a directional key press or a
// pause toggle.
type wsInput struct {
	Type      string `json:"type"` // "direction" or "pause"
	Direction string `json:"direction,omitempty"`
}

// GET /api/games/{id}/ws: play over a websocket. Snapshots out, inputs in.
func (s *Server) handleGameSocket(w http.ResponseWriter, r *http.Request) {
	runner := s.store.GetRunner(r.PathValue("id"))
	if runner == nil {
		jsonError(w, "game not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}

	sub := s.hub.Subscribe(runner.Session().ID)

	// Write pump: snapshots and notices from the hub, plus keepalive pings.
	go func() {
		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		defer conn.Close()

		// Current state first, so the client can render before the
		// next tick lands.
		snap, _ := json.Marshal(runner.Snapshot())
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, snap); err != nil {
			return
		}

		for {
			select {
			case msg, ok := <-sub.ch:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, nil)
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Read pump: inputs until the client goes away.
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	defer s.hub.Unsubscribe(sub)
	for {
		var in wsInput
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		switch in.Type {
		case "direction":
			if d, ok := ParseDirection(in.Direction); ok {
				runner.SubmitDirection(d)
			}
		case "pause":
			runner.TogglePause()
		}
	}
}
