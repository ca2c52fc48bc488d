package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // callers are authenticated by api key
	},
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

const (
	MessageIngest   = "ingest"
	MessageQuery    = "query"
	MessageStatus   = "status"
	MessageStream   = "stream"
	MessageResponse = "response"
	MessageError    = "error"
)

// Message is the envelope for every websocket frame in both directions.
// An inbound message without a type is an ingest if its content holds a URL
// and a query otherwise.
type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msgType, content string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(Message{Type: msgType, Content: content, Data: data}); err != nil {
		slog.Warn("error sending websocket message", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &wsConn{conn: conn}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("error reading websocket message", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(MessageError, "invalid message: "+err.Error(), nil)
			continue
		}
		s.handleMessage(r, c, msg)
	}
}

func (s *Server) handleMessage(r *http.Request, c *wsConn, msg Message) {
	ctx := r.Context()

	msgType := msg.Type
	target := strings.TrimSpace(msg.Content)
	if msgType == "" {
		msgType = MessageQuery
		if u := urlPattern.FindString(target); u != "" {
			msgType = MessageIngest
			target = u
		}
	}

	switch msgType {
	case MessageIngest:
		c.send(MessageStatus, fmt.Sprintf("Processing URL: %s", target), nil)
		summary, err := s.ingester.Upload(ctx, target)
		if err != nil {
			c.send(MessageError, err.Error(), map[string]int{"status": statusFor(err)})
			return
		}
		c.send(MessageResponse, summary.Message, summary)

	case MessageQuery:
		ans, err := s.answerer.AnswerStream(ctx, target, msg.SessionID, func(chunk string) error {
			c.send(MessageStream, chunk, nil)
			return nil
		})
		if err != nil {
			c.send(MessageError, err.Error(), map[string]int{"status": statusFor(err)})
			return
		}
		c.send(MessageResponse, ans.Answer, ans)

	default:
		c.send(MessageError, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
}
