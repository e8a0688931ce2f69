package api

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxStreamConns = 4
	writeWait      = 10 * time.Second
	pingPeriod     = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and pushes the current snapshot,
// then one snapshot per tick until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	if current > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID, "remote", clientAddr(r))

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(s.Sim.Snapshot()); err != nil {
		return
	}

	// Drain client frames so close and pong are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				slog.Debug("stream write failed", "sub_id", subID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}
