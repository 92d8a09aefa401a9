package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	subscriberBuffer = 16
	sseHeartbeat     = 30 * time.Second
)

// subscriber is a single snapshot consumer (an SSE connection or a
// websocket write pump).
type subscriber struct {
	ch        chan string
	sessionID string
}

// Hub fans session snapshots out to subscribers, grouped by session.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe adds a consumer for a session and returns it.
func (h *Hub) Subscribe(sessionID string) *subscriber {
	c := &subscriber{
		ch:        make(chan string, subscriberBuffer),
		sessionID: sessionID,
	}
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Unsubscribe removes a consumer and closes its channel.
func (h *Hub) Unsubscribe(c *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[c.sessionID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.ch)
			if len(set) == 0 {
				delete(h.subs, c.sessionID)
			}
		}
	}
	h.mu.Unlock()
}

// Publish sends a message to every consumer of a session. Slow consumers
// with a full buffer are skipped rather than blocked on.
func (h *Hub) Publish(sessionID, data string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.subs[sessionID] {
		select {
		case c.ch <- data:
		default:
		}
	}
}

// SubscriberCount returns the number of consumers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// ServeSSE streams a session's messages as server-sent events until the
// client disconnects. onConnect (optional) runs once the subscriber is
// registered, before any event is streamed.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, sessionID string, onConnect func(c *subscriber)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := h.Subscribe(sessionID)
	defer h.Unsubscribe(c)

	if onConnect != nil {
		onConnect(c)
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-c.ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
