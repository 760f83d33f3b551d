package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/templateschile/kalifinder-search/pkg/realtime"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The widget is embedded on arbitrary storefronts; origin checks
	// happen upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleStream upgrades to a websocket and pushes state events as the
// engine publishes them. The first frame is always an "init" message
// carrying the current snapshot, so a client needs no separate state
// fetch on connect.
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Debugf("closing websocket: %v", err)
		}
	}()

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)

	init := realtime.Event{
		Type: "init",
		State: realtime.StateEvent{
			InstanceID: s.engine.InstanceID(),
			At:         time.Now().UTC(),
			Snapshot:   s.engine.Snapshot(),
		},
	}
	if err := writeEvent(conn, init); err != nil {
		return
	}

	// Reader goroutine: the client never sends application frames, but
	// reading surfaces close frames and connection loss.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev realtime.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
