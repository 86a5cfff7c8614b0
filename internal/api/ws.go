package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPingEvery = 20 * time.Second
	wsReadWait  = 60 * time.Second
)

// taskStream serves /v1/plan-tasks/{id}/ws. The client receives the
// current status first, then task events until the task finishes, after
// which the server closes the connection.
func (s *Server) taskStream(w http.ResponseWriter, r *http.Request, tenant, id string) {
	task, err := s.Tracker.Get(r.Context(), id)
	if err != nil || task.TenantID != tenant {
		writeProblem(w, http.StatusNotFound, "Not Found", "task not found", r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	// re-read after subscribing so a completion in between is not lost
	if t, err := s.Tracker.Get(r.Context(), id); err == nil {
		task = t
	}
	if err := conn.WriteJSON(Event{Type: EventTaskStatus, Data: taskData(task)}); err != nil {
		return
	}
	if terminal(task.Status) {
		closeNormal(conn)
		return
	}

	// reader: handles pongs and notices the client going away
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsReadWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
			if evt.Type == EventTaskCompleted || evt.Type == EventTaskFailed {
				closeNormal(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-gone:
			return
		case <-s.baseCtx.Done():
			return
		}
	}
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
