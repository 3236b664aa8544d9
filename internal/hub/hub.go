// Package hub implements the per-user live channel: one WebSocket session
// per user, a mailbox per session drained by a single writer goroutine, and
// best-effort fan-out of match and chat events.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cryptomatch/match-engine/internal/metrics"
	"github.com/cryptomatch/match-engine/internal/model"
)

// Frame types carried over the live channel.
const (
	FrameNewMatch          = "new_match"
	FrameChatMessage       = "chat_message"
	FrameTradingSignal     = "trading_signal"
	FrameGroupMemberJoined = "group_member_joined"
)

// Frame is one JSON frame on the live channel. Inbound frames carry
// chat_message payloads (match_id + content; the sender is the session
// owner). Unknown inbound types are ignored.
type Frame struct {
	Type    string               `json:"type"`
	MatchID string               `json:"match_id,omitempty"`
	GroupID string               `json:"group_id,omitempty"`
	UserID  string               `json:"user_id,omitempty"`
	Content string               `json:"content,omitempty"`
	Match   *model.Match         `json:"match,omitempty"`
	Message *model.Message       `json:"message,omitempty"`
	Signal  *model.TradingSignal `json:"signal,omitempty"`
}

// ChatSink receives inbound chat_message frames. The conversation service
// implements it; the hub treats frame sends and HTTP sends identically.
type ChatSink interface {
	Send(ctx context.Context, matchID, senderID, content string) (*model.Message, error)
}

const (
	mailboxSize  = 64
	readDeadline = 60 * time.Second
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

type session struct {
	userID string
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

// close releases the session exactly once. The writer goroutine exits via
// done; the read loop exits via the closed connection.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Hub owns the live sessions. One session per user id; opening a second
// closes the first.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	chat     ChatSink
}

// New creates an empty hub. Wire the chat sink with SetChatSink before
// serving connections that send chat frames.
func New() *Hub {
	return &Hub{sessions: make(map[string]*session)}
}

// SetChatSink installs the handler for inbound chat_message frames.
func (h *Hub) SetChatSink(sink ChatSink) {
	h.chat = sink
}

// Connected reports whether the user currently has a live session.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[userID]
	return ok
}

// Send enqueues a frame for the user. Delivery is best-effort: if the user
// has no session or the mailbox is full, the frame is dropped. The stores
// remain authoritative; clients reconcile on reconnect.
func (h *Hub) Send(userID string, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}

	h.mu.RLock()
	sess, ok := h.sessions[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case sess.outbox <- data:
	default:
		// Mailbox full; drop rather than block the producer.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS handles WebSocket upgrades at GET /ws/{userID}. It blocks for
// the lifetime of the connection; disconnect releases the session before
// the handler returns.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	sess := &session{
		userID: userID,
		conn:   conn,
		outbox: make(chan []byte, mailboxSize),
		done:   make(chan struct{}),
	}

	h.register(sess)
	metrics.WebSocketClients.Inc()
	defer func() {
		h.unregister(sess)
		metrics.WebSocketClients.Dec()
	}()

	go sess.writePump()
	h.readPump(r.Context(), sess)
}

// register installs the session, closing any previous one for the same user.
func (h *Hub) register(sess *session) {
	h.mu.Lock()
	prev := h.sessions[sess.userID]
	h.sessions[sess.userID] = sess
	h.mu.Unlock()

	if prev != nil {
		prev.close()
		slog.Info("ws session replaced", "user", sess.userID)
	} else {
		slog.Info("ws session opened", "user", sess.userID)
	}
}

// unregister removes the session if it is still the current one for the
// user (a replacement session must not be evicted by the old one's exit).
func (h *Hub) unregister(sess *session) {
	h.mu.Lock()
	if h.sessions[sess.userID] == sess {
		delete(h.sessions, sess.userID)
	}
	h.mu.Unlock()

	sess.close()
	slog.Info("ws session closed", "user", sess.userID)
}

// readPump consumes inbound frames until the connection drops.
func (h *Hub) readPump(ctx context.Context, sess *session) {
	conn := sess.conn
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if f.Type != FrameChatMessage || h.chat == nil {
			continue
		}

		msg, err := h.chat.Send(ctx, f.MatchID, sess.userID, f.Content)
		if err != nil {
			slog.Warn("ws chat frame rejected", "user", sess.userID, "err", err)
			continue
		}
		// Echo the persisted message back so the sender sees server ids.
		h.Send(sess.userID, Frame{Type: FrameChatMessage, MatchID: msg.MatchID, Message: msg})
	}
}

// writePump is the single writer for the session: it drains the mailbox and
// keeps the connection alive with pings.
func (s *session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}
