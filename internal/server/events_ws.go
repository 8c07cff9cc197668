package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleCaseEvents streams pipeline events for one case over a websocket.
// The client side is read-only; inbound frames are drained solely to surface
// close and pong frames.
func (h *CaseHandler) HandleCaseEvents(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	if caseID == "" {
		http.Error(w, "case id is required", http.StatusBadRequest)
		return
	}

	conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		log.Printf("events ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	events, cancel := h.Hub.Subscribe(caseID)
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsWSPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
