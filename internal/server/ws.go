// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/pipeline"
	"github.com/pdiddy/reality-check/pkg/types"
)

const (
	eventAsk  = "ask-question"
	eventPing = "ping"
	eventPong = "pong"

	pongWait     = 60 * time.Second
	pingInterval = 15 * time.Second
	writeWait    = 10 * time.Second
	maxFrame     = 64 << 10
)

// frame is the envelope of every WebSocket message in both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// askPayload is the data of an ask-question frame.
type askPayload struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// wsClient is one connection. Writes are serialized; it implements
// pipeline.Sink so questions stream straight to the socket.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

// Send writes one event frame.
func (c *wsClient) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(outFrame{Event: event, Data: payload})
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		done: make(chan struct{}),
	}
	client.logger = s.logger.With(zap.String("client", client.id))

	if !s.register(client) {
		client.close()
		return
	}
	client.logger.Info("client connected", zap.String("remote", c.ClientIP()))
	if s.deps.Metrics != nil {
		s.deps.Metrics.WebSocketOpened()
	}

	s.readLoop(client)
}

func (s *Server) register(c *wsClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return false
	default:
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) unregister(c *wsClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
	if s.deps.Metrics != nil {
		s.deps.Metrics.WebSocketClosed()
	}
	c.logger.Info("client disconnected")
}

// readLoop reads frames until the connection fails. Each question runs in
// its own goroutine so pings and further questions keep flowing.
func (s *Server) readLoop(c *wsClient) {
	defer s.unregister(c)

	c.conn.SetReadLimit(maxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			c.logger.Debug("malformed frame", zap.Error(err))
			_ = c.Send(pipeline.EventError, types.ErrorEvent{Message: "Malformed message"})
			continue
		}

		switch f.Event {
		case eventAsk:
			var p askPayload
			if err := json.Unmarshal(f.Data, &p); err != nil {
				_ = c.Send(pipeline.EventError, types.ErrorEvent{Message: "Malformed message"})
				continue
			}
			go s.answer(c, p)
		case eventPing:
			_ = c.Send(eventPong, nil)
		default:
			c.logger.Debug("unknown event", zap.String("event", f.Event))
		}
	}
}

// answer runs one WebSocket question. An unknown conversation is created
// under the id the client sent.
func (s *Server) answer(c *wsClient, p askPayload) {
	ctx := context.Background()
	question := strings.TrimSpace(p.Question)
	c.logger.Info("question received",
		zap.String("conversation", p.ConversationID),
		zap.String("question", question))

	if question == "" {
		_ = c.Send(pipeline.EventError, types.ErrorEvent{Message: "Question cannot be empty"})
		return
	}
	conv, err := s.deps.Conversations.Open(ctx, p.ConversationID, p.UserID)
	if err != nil {
		c.logger.Error("opening conversation failed", zap.Error(err))
		_ = c.Send(pipeline.EventError, types.ErrorEvent{Message: pipeline.FailureMessage})
		s.recordQuestion("websocket", false)
		return
	}

	_, err = s.deps.Conversations.Run(ctx, conv, question, c)
	s.recordQuestion("websocket", err == nil)
}
