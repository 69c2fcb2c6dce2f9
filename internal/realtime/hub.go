// Package realtime доставляет UI команды ассистента в приложение по WebSocket.
//
// Подключения группируются по сессии (пользователь, профиль). Hub реализует
// dispatch.Navigator и dispatch.Broadcaster.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/fdg312/fitswift-hub/internal/dispatch"
)

// Типы сообщений, которые отправляет сервер.
const (
	TypeSwitchScreen = "switch_screen"
	TypePong         = "pong"
)

const writeTimeout = 5 * time.Second

// Message — конверт всех сообщений канала.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type conn struct {
	ws      *websocket.Conn
	session dispatch.Session
	cancel  context.CancelFunc
}

// Hub хранит активные подключения по сессиям.
type Hub struct {
	mu    sync.RWMutex
	conns map[dispatch.Session]map[*conn]struct{}
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		conns: make(map[dispatch.Session]map[*conn]struct{}),
		log:   log,
	}
}

// SwitchScreen отправляет switch_screen {screen} всем подключениям сессии.
func (h *Hub) SwitchScreen(ctx context.Context, session dispatch.Session, screen dispatch.Screen) {
	h.send(ctx, session, TypeSwitchScreen, map[string]any{"screen": string(screen)})
}

// Broadcast отправляет событие всем подключениям сессии.
func (h *Hub) Broadcast(ctx context.Context, session dispatch.Session, event string, payload map[string]any) {
	h.send(ctx, session, event, payload)
}

func (h *Hub) send(ctx context.Context, session dispatch.Session, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.log.Error("realtime message marshal failed", zap.String("type", msgType), zap.Error(err))
		return
	}

	targets := h.sessionConns(session)
	if len(targets) == 0 {
		h.log.Debug("realtime: no connections for session",
			zap.String("type", msgType),
			zap.String("user_id", session.UserID),
			zap.String("profile_id", session.ProfileID),
		)
		return
	}

	for _, c := range targets {
		h.write(ctx, c, data)
	}
}

// write отправляет кадр одному подключению; при ошибке подключение удаляется.
func (h *Hub) write(ctx context.Context, c *conn, data []byte) {
	// Запрос, породивший событие, может завершиться раньше записи.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := c.ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug("realtime write failed", zap.Error(err))
		h.remove(c)
	}
}

func encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}

func (h *Hub) sessionConns(session dispatch.Session) []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.conns[session]
	out := make([]*conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// ConnectionCount возвращает число активных подключений.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

// SessionConnectionCount возвращает число подключений одной сессии.
func (h *Hub) SessionConnectionCount(session dispatch.Session) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[session])
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[c.session]
	if !ok {
		set = make(map[*conn]struct{})
		h.conns[c.session] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[c.session]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	c.cancel()
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.session)
	}
	h.log.Info("websocket disconnected",
		zap.String("user_id", c.session.UserID),
		zap.String("profile_id", c.session.ProfileID),
	)
}
