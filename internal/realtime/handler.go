package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fdg312/fitswift-hub/internal/dispatch"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/userctx"
)

var ErrProfileNotFound = errors.New("profile not found")

// Handler поднимает WebSocket подключения GET /v1/ws.
type Handler struct {
	hub            *Hub
	profiles       storage.Storage
	originPatterns []string
}

// NewHandler создаёт handler. Пустой originPatterns отключает проверку Origin
// (CORS проверяется middleware).
func NewHandler(hub *Hub, profiles storage.Storage, originPatterns []string) *Handler {
	return &Handler{hub: hub, profiles: profiles, originPatterns: originPatterns}
}

// HandleWS обрабатывает GET /v1/ws?profile_id=...
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("profile_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "Missing required parameters")
		return
	}
	profileID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_profile_id", "Invalid profile ID")
		return
	}

	session, err := h.resolveSession(r.Context(), profileID)
	if err != nil {
		writeError(w, http.StatusNotFound, "profile_not_found", "Profile not found")
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	if len(h.originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.hub.log.Warn("websocket accept failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, session: session, cancel: cancel}
	h.hub.add(c)

	h.hub.log.Info("websocket connected",
		zap.String("user_id", session.UserID),
		zap.String("profile_id", session.ProfileID),
		zap.String("remote", r.RemoteAddr),
	)

	// Контекст запроса отменяется после выхода из handler, поэтому цикл чтения
	// держит handler до отключения клиента.
	defer func() {
		h.hub.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()
	h.readLoop(ctx, c)
}

// readLoop читает сообщения клиента. На {"type":"ping"} отвечает pong,
// остальное игнорируется.
func (h *Handler) readLoop(ctx context.Context, c *conn) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := encode(TypePong, map[string]any{})
			h.hub.write(ctx, c, pong)
		}
	}
}

// resolveSession проверяет доступ к профилю. Без авторизации сессия
// принадлежит владельцу профиля.
func (h *Handler) resolveSession(ctx context.Context, profileID uuid.UUID) (dispatch.Session, error) {
	profile, err := h.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return dispatch.Session{}, ErrProfileNotFound
	}

	userID, ok := userctx.GetUserID(ctx)
	userID = strings.TrimSpace(userID)
	if ok && userID != "" && profile.OwnerUserID != userID {
		return dispatch.Session{}, ErrProfileNotFound
	}
	if userID == "" {
		userID = profile.OwnerUserID
	}

	return dispatch.Session{UserID: userID, ProfileID: profileID.String()}, nil
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorDetail{Code: code, Message: message}})
}
