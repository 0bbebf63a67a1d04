package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/types"
	"yo.mini/yo/internal/vault"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// watchClose cancels the returned context once the peer goes away. Incoming
// messages are discarded.
func watchClose(parent context.Context, conn *websocket.Conn) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return ctx
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// handleYosWS replays the vault to the client and then streams every newly
// recorded Yo. ?participant=NAME narrows both.
func (s *Server) handleYosWS(w http.ResponseWriter, r *http.Request) {
	filter := vault.Filter{Participant: r.URL.Query().Get("participant")}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe before the replay so nothing recorded in between is lost.
	updates, cancel := s.vault.Subscribe(64)
	defer cancel()

	ctx := watchClose(r.Context(), conn)

	existing, err := s.vault.List(ctx, filter)
	if err != nil {
		s.logger.Errorf("Web: listing Yos for websocket failed: %v", err)
		return
	}
	sent := make(map[types.StateRef]struct{}, len(existing))
	for _, e := range existing {
		if err := writeJSON(conn, e); err != nil {
			return
		}
		sent[e.Ref] = struct{}{}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case e, ok := <-updates:
			if !ok {
				return
			}
			if _, dup := sent[e.Ref]; dup || !filter.Matches(e.State) {
				continue
			}
			if err := writeJSON(conn, e); err != nil {
				return
			}
		}
	}
}

// handleStatusWS streams log messages, starting with the last 50.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := watchClose(r.Context(), conn)

	// GetRecent returns newest first.
	initialLogs := s.logger.GetRecent(50)
	for i := len(initialLogs) - 1; i >= 0; i-- {
		if err := writeJSON(conn, initialLogs[i]); err != nil {
			return
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastLogTime time.Time
	if len(initialLogs) > 0 {
		lastLogTime = initialLogs[0].Timestamp
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var newLogs []logger.Message
			for _, msg := range s.logger.GetRecent(20) {
				if msg.Timestamp.After(lastLogTime) {
					newLogs = append(newLogs, msg)
				}
			}

			for i := len(newLogs) - 1; i >= 0; i-- {
				msg := newLogs[i]
				if err := writeJSON(conn, msg); err != nil {
					return
				}
				lastLogTime = msg.Timestamp
			}
		}
	}
}
