package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"taskboard-backend/pkg/models"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound message size; clients only send join/leave frames
	maxMessageSize = 512
)

// clientFrame is the only inbound message shape: room join/leave requests
type clientFrame struct {
	Action    string `json:"action"` // "joinProject" or "leaveProject"
	ProjectID string `json:"project_id"`
}

// wireEvent is the outbound frame wrapping a ChangeEvent
type wireEvent struct {
	Event string             `json:"event"`
	Data  models.ChangeEvent `json:"data"`
}

// eventName maps the entity type onto the wire event channel
func eventName(entity models.EntityType) string {
	switch entity {
	case models.EntityTask:
		return "taskUpdate"
	case models.EntityProject:
		return "projectUpdate"
	case models.EntityMembership:
		return "memberUpdate"
	}
	return "update"
}

// ServeConn runs the read/write pumps for an upgraded websocket connection
// until the peer goes away. Blocks; the HTTP handler calls it on the upgraded
// connection's goroutine. Teardown unregisters the session from every room.
func ServeConn(hub *Hub, userID string, ws *websocket.Conn) {
	session := hub.Register(userID)
	done := make(chan struct{})

	go writePump(session, ws, done)
	readPump(hub, session, ws)

	hub.Unregister(session)
	close(done)
	ws.Close()
}

// readPump consumes join/leave frames until the connection errors or closes
func readPump(hub *Hub, session *Session, ws *websocket.Conn) {
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[realtime] session %s read error: %v\n", session.ID, err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			fmt.Printf("[realtime] session %s sent malformed frame: %v\n", session.ID, err)
			continue
		}

		switch frame.Action {
		case "joinProject":
			hub.Join(session, frame.ProjectID)
		case "leaveProject":
			hub.Leave(session, frame.ProjectID)
		default:
			// Unknown actions are ignored; the protocol only has two verbs
		}
	}
}

// writePump drains the session's event stream onto the socket and keeps the
// connection alive with pings. Exits when the stream closes (session dropped)
// or the peer is gone.
func writePump(session *Session, ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-session.Events():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub dropped the session (slow consumer or unregister)
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame := wireEvent{Event: eventName(ev.Entity), Data: ev}
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
