package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/script"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Preview consumers run on other origins; access is gated by basic auth.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEventsHandler streams events over a WebSocket. It takes the same filters as
// /events and starts with the most recent matching events.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	filter := eventFilter(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	sub := events.Subscribe(filter)
	var backlog []interface{}
	for _, e := range events.RecentEvents(recentEventsCount, filter) {
		backlog = append(backlog, e)
	}

	stream(conn, sub, backlog, func(e events.Event) (interface{}, bool) {
		return e, true
	})
}

// RenderedMessage is pushed to /ws/scripts/{id} clients. Script is nil once
// the session is gone or has no input.
type RenderedMessage struct {
	ScriptID string         `json:"script_id"`
	Event    string         `json:"event"`
	Script   *script.Script `json:"script,omitempty"`
	Failures []string       `json:"failures,omitempty"`
}

// wsRenderedHandler pushes the rendered script of one session whenever it is
// recomputed, starting with the current output. This is what a live preview
// player follows while the pipeline is being edited.
func wsRenderedHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	sub := events.Subscribe(events.Filter{ScriptID: id})
	var backlog []interface{}
	if msg := renderedMessage(id, "snapshot"); msg.Script != nil {
		backlog = append(backlog, msg)
	}

	stream(conn, sub, backlog, func(e events.Event) (interface{}, bool) {
		if e.Fields["script_id"] != id {
			return nil, false
		}
		switch e.Name {
		case "pipeline.applied", "pipeline.failed", "script.removed":
			return renderedMessage(id, e.Name), true
		}
		return nil, false
	})
}

func renderedMessage(id, event string) RenderedMessage {
	msg := RenderedMessage{ScriptID: id, Event: event}
	if store == nil {
		return msg
	}
	snap, err := store.Get(id)
	if err != nil {
		return msg
	}
	msg.Script = snap.Output
	for _, f := range snap.Failures {
		msg.Failures = append(msg.Failures, f.ModifierID+": "+f.Error)
	}
	return msg
}

// stream writes backlog, then one message per event of sub that render
// accepts, until the peer goes away or sub is closed. It owns conn and sub.
func stream(conn *websocket.Conn, sub *events.Subscription, backlog []interface{}, render func(events.Event) (interface{}, bool)) {
	defer conn.Close()
	defer events.Unsubscribe(sub)

	send := func(v interface{}) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	for _, v := range backlog {
		if err := send(v); err != nil {
			log.Printf("ws write backlog failed: %v", err)
			return
		}
	}

	// reader handles pongs and close messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
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
		case <-done:
			return

		case e, ok := <-sub.C:
			if !ok {
				return
			}
			msg, ok := render(e)
			if !ok {
				continue
			}
			if err := send(msg); err != nil {
				log.Printf("ws write failed: %v (dropped %d)", err, sub.Dropped())
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
