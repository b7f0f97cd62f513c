package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"netreport/pkg/model"
)

// WSMessage is the envelope pushed to live-feed subscribers.
type WSMessage struct {
	Type    string      `json:"type"` // report
	Payload interface{} `json:"payload,omitempty"`
}

// ReportHub fans accepted reports out to WebSocket subscribers.
type ReportHub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex // guards subs and serializes writes
	subs     map[*websocket.Conn]struct{}
}

func NewReportHub() *ReportHub {
	return &ReportHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: map[*websocket.Conn]struct{}{},
	}
}

// HandleSubscribe upgrades a dashboard connection and registers it.
func (h *ReportHub) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	h.mu.Lock()
	h.subs[c] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	log.Printf("report subscriber connected remote=%s subscribers=%d", r.RemoteAddr, n)
	go h.readLoop(c)
}

// Subscribers returns the number of connected subscribers.
func (h *ReportHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends a report to every subscriber; failed connections are dropped.
func (h *ReportHub) Broadcast(report model.Report) {
	msg := WSMessage{Type: "report", Payload: report}
	h.mu.Lock()
	var dead []*websocket.Conn
	for c := range h.subs {
		_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteJSON(msg); err != nil {
			dead = append(dead, c)
		}
	}
	h.mu.Unlock()
	for _, c := range dead {
		h.remove(c)
	}
}

// readLoop drains control frames and unregisters the subscriber on close.
func (h *ReportHub) readLoop(c *websocket.Conn) {
	defer h.remove(c)
	for {
		if _, _, err := c.NextReader(); err != nil {
			return
		}
	}
}

func (h *ReportHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.subs[c]
	delete(h.subs, c)
	h.mu.Unlock()
	if ok {
		_ = c.Close()
		log.Printf("report subscriber disconnected")
	}
}
