// Package events streams query lifecycle events to the browser tabs that
// asked for them.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	TypeSubmitted          = "submitted"
	TypeInferenceCompleted = "inference_completed"
	TypeChartReady         = "chart_ready"
	TypeChartFailed        = "chart_failed"
	TypeCompleted          = "completed"
	TypeFailed             = "failed"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type Event struct {
	Type      string    `json:"type"`
	SurfaceID string    `json:"surface_id"`
	QueryID   string    `json:"query_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// subscriber serializes writes to one connection; gorilla allows a single
// concurrent writer.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans events out to the websocket connections subscribed to each
// surface. Slow or broken connections are dropped. Writes happen outside the
// hub lock, so a stalled client only delays events of its own surface.
type Hub struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Serve upgrades the request and blocks until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, surfaceID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "websocket upgrade")
	}
	sub := &subscriber{conn: conn}
	if !h.add(surfaceID, sub) {
		_ = conn.Close()
		return errors.New("hub closed")
	}
	defer h.remove(surfaceID, sub)

	done := make(chan struct{})
	defer close(done)
	go h.keepalive(conn, done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// clients never send anything we act on
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("surface", surfaceID).Msg("websocket closed")
			}
			return nil
		}
	}
}

func (h *Hub) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// WriteControl may run concurrently with WriteMessage
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(surfaceID string, sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.subs[surfaceID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[surfaceID] = set
	}
	set[sub] = struct{}{}
	return true
}

func (h *Hub) remove(surfaceID string, sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[surfaceID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, surfaceID)
		}
	}
	h.mu.Unlock()
	_ = sub.conn.Close()
}

func (h *Hub) snapshot(surfaceID string) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[surfaceID]
	out := make([]*subscriber, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

// Publish sends ev to every subscriber of its surface.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("encode event")
		return
	}

	for _, sub := range h.snapshot(ev.SurfaceID) {
		if err := sub.write(data); err != nil {
			log.Warn().Err(err).Str("surface", ev.SurfaceID).Msg("ws send failed, dropping connection")
			h.remove(ev.SurfaceID, sub)
		}
	}
}

// Subscribers returns the number of connections for surfaceID.
func (h *Hub) Subscribers(surfaceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[surfaceID])
}

// Close disconnects everyone and refuses new subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscriber
	for id, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
		delete(h.subs, id)
	}
	h.mu.Unlock()

	for _, sub := range all {
		_ = sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = sub.conn.Close()
	}
}
