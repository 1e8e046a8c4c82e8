package runtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/loqalabs/loqa-present/internal/playback"
	"github.com/loqalabs/loqa-present/internal/render"
	"github.com/loqalabs/loqa-present/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamMessage is sent to clients for every state change.
type streamMessage struct {
	Snapshot playback.Snapshot `json:"snapshot"`
	Caption  string            `json:"caption"`
}

// controlMessage is accepted from clients.
type controlMessage struct {
	Action   session.Action `json:"action"`
	Fraction float64        `json:"fraction,omitempty"`
}

// stream pushes snapshots of a session over a websocket and applies the
// control messages the client sends back.
func (a *API) stream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, ok := a.sessions.Get(id)
	if !ok {
		http.Error(w, session.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	updates, cancel := sess.Watch()
	defer cancel()

	go a.readControls(conn, id, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := writeSnapshot(conn, sess.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (a *API) readControls(conn *websocket.Conn, id string, stop func()) {
	defer stop()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := a.sessions.Control(id, msg.Action, msg.Fraction); err != nil {
			a.log.Debug("websocket control rejected", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap playback.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(streamMessage{Snapshot: snap, Caption: render.Caption(snap.Current, snap.Count)})
}
