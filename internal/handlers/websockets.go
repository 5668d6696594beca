package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"alert_console/internal/engine"
	"alert_console/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsQuery selects the device a session watches.
type wsQuery struct {
	SerialNumber string `form:"serial" validate:"required_without=DeviceID"`
	DeviceID     string `form:"device_id"`
	DeviceName   string `form:"device_name"`
	Permission   string `form:"permission" validate:"omitempty,oneof=granted denied default"`
}

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Alert session stream
// @Description  WebSocket. Server sends {type: state|effect|error}; client sends commands such as {"action":"acknowledge"}.
// @Tags         alerts
// @Param        serial       query  string  false  "Device serial number (serial or device_id required)"
// @Param        device_id    query  string  false  "Device id"
// @Param        device_name  query  string  false  "Display name"
// @Param        permission   query  string  false  "Notification permission"  Enums(granted,denied,default)
// @Param        token        query  string  false  "JWT when no Authorization header can be sent"
// @Success      101
// @Failure      400  {object}  map[string]string
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}
	var q wsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serial or device_id is required; permission must be granted, denied or default"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sess, err := h.services.Sessions.Open(ctx, service.SessionParams{
		AccountID: account,
		Device: engine.DeviceIdentity{
			DeviceID:     q.DeviceID,
			SerialNumber: q.SerialNumber,
			DeviceName:   q.DeviceName,
		},
		Permission: engine.ParsePermission(q.Permission),
	})
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_session_open_failed", "err", err, "account_id", account)
		}
		_ = writeEnvelope(conn, wsEnvelope{Type: service.EventError, Error: err.Error()})
		return
	}
	go sess.Run(ctx)
	if h.log != nil {
		h.log.Infow("ws_session_opened", "account_id", account, "serial", q.SerialNumber, "device_id", q.DeviceID)
		defer h.log.Infow("ws_session_closed", "account_id", account, "serial", q.SerialNumber, "device_id", q.DeviceID)
	}

	// Reader goroutine decodes commands and detects disconnects.
	done := make(chan struct{})
	rejects := make(chan string, 4)
	go h.readCommands(ctx, conn, sess, rejects, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-sess.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case msg := <-rejects:
			if err := writeEnvelope(conn, wsEnvelope{Type: service.EventError, Error: msg}); err != nil {
				return
			}
		case ev := <-sess.Events():
			if err := writeEnvelope(conn, wsEnvelope{Type: ev.Type, Data: ev.Data, Error: ev.Error}); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// readCommands turns client messages into session commands until the
// connection closes.
func (h *Handler) readCommands(ctx context.Context, conn *websocket.Conn, sess *service.Session,
	rejects chan<- string, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
		var cmd service.Command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Action == "" {
			select {
			case rejects <- "malformed command":
			default:
			}
			continue
		}
		if err := sess.Submit(ctx, cmd); err != nil {
			return
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
