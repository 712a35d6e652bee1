package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/campushq/helpdesk-api/internal/realtime"
	"github.com/campushq/helpdesk-api/internal/service"
	"github.com/campushq/helpdesk-api/pkg/config"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
	"github.com/campushq/helpdesk-api/pkg/response"
)

// WSHandler upgrades notification connections and pumps hub frames to clients.
type WSHandler struct {
	hub         *realtime.Hub
	authService *service.AuthService
	cfg         config.RealtimeConfig
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// clientCommand is the only inbound message shape clients may send: watching
// or unwatching a request for resolution updates.
type clientCommand struct {
	Action    string `json:"action"`
	RequestID string `json:"request_id"`
}

func NewWSHandler(hub *realtime.Hub, authService *service.AuthService, cfg config.RealtimeConfig, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &WSHandler{hub: hub, authService: authService, cfg: cfg, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Connect godoc
// @Summary Open the realtime notification stream
// @Description Browsers cannot set headers on websocket upgrades, so the token rides the query string
// @Tags notifications
// @Param token query string true "Access token"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Router /ws/notifications [get]
func (h *WSHandler) Connect(c *gin.Context) {
	if h.hub == nil || h.authService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}

	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing token"))
		return
	}
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := realtime.NewClient(claims.Identity(), h.cfg.SendBufferSize)
	h.hub.Register(client)

	go h.writePump(conn, client)
	go h.readPump(conn, client)
}

// readPump consumes watch/unwatch commands until the peer goes away.
func (h *WSHandler) readPump(conn *websocket.Conn, client *realtime.Client) {
	defer func() {
		client.Close()
		conn.Close()
	}()

	if h.cfg.ReadLimitBytes > 0 {
		conn.SetReadLimit(h.cfg.ReadLimitBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error",
					zap.String("user_id", client.Identity.UserID), zap.Error(err))
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.RequestID == "" {
			continue
		}
		switch cmd.Action {
		case "watch":
			h.hub.Watch(client, cmd.RequestID)
		case "unwatch":
			h.hub.Unwatch(client, cmd.RequestID)
		}
	}
}

// writePump drains the client's send channel and keeps the connection alive
// with pings. Closing the channel closes the connection.
func (h *WSHandler) writePump(conn *websocket.Conn, client *realtime.Client) {
	pingPeriod := h.cfg.PongWait * 9 / 10
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
