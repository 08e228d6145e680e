package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// serveWebsocket sends the current payload on connect and every recomputed
// payload afterwards. A text "ping" from the client is answered with the JSON
// string "pong".
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.svc.Subscribe()
	defer sub.Close()

	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage && string(msg) == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	logger := s.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Debug("websocket connected")
	defer logger.Debug("websocket disconnected")

	if err := s.writeMessage(conn, s.svc.Trees(r.Context())); err != nil {
		return
	}
	for {
		select {
		case payload, ok := <-sub.C:
			if !ok {
				return
			}
			if err := s.writeMessage(conn, payload); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-pings:
			if err := s.writeMessage(conn, "pong"); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
