package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/events"
	"github.com/chr1syy/maestro/internal/events/bus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The daemon binds to loopback by default; browsers on other origins
	// are still allowed to watch events.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamEvents upgrades to a WebSocket and forwards process events from the
// bus, optionally filtered with ?session_id=. The stream is one-way: client
// messages are read only to notice disconnects.
func (s *Server) streamEvents(c *gin.Context) {
	if s.deps.Bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus is not available"})
		return
	}
	subject := events.ProcessWildcard(s.deps.SubjectPrefix)
	if sessionID := c.Query("session_id"); sessionID != "" {
		subject = events.ProcessSessionWildcard(s.deps.SubjectPrefix, sessionID)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	clientID := uuid.New().String()
	log := s.logger.WithFields(zap.String("client_id", clientID), zap.String("subject", subject))
	log.Debug("WebSocket connection established", zap.String("remote_addr", c.Request.RemoteAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send := make(chan []byte, sendBuffer)
	sub, err := s.deps.Bus.Subscribe(subject, func(_ context.Context, e *bus.Event) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		select {
		case send <- data:
		case <-ctx.Done():
		default:
			log.Warn("Client send buffer full, dropping event", zap.String("event_type", e.Type))
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to subscribe", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	go readPump(conn, cancel)
	writePump(ctx, conn, send)
	log.Debug("WebSocket connection closed")
}

func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
