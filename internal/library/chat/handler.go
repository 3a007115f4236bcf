package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	reg      *Registry
	hub      *Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func RegisterRoutes(r gin.IRouter, reg *Registry, hub *Hub, log *zap.Logger, checkOrigin func(*http.Request) bool) {
	h := &Handler{
		reg: reg,
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
	r.GET("/ws/chat/:username", h.Serve)
}

func (h *Handler) Serve(c *gin.Context) {
	username := c.Param("username")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := h.reg.Connect(username, conn)
	h.hub.BroadcastUserList()
	defer func() {
		h.reg.Disconnect(username, connID)
		_ = conn.Close()
		h.hub.BroadcastUserList()
	}()

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", zap.String("user", username), zap.Error(err))
			}
			return
		}
		h.dispatch(username, frame)
	}
}

func (h *Handler) dispatch(from string, frame ClientFrame) {
	switch frame.Type {
	case TypeMessage:
		h.hub.SendDirect(frame.To, DirectFrame{
			Type:    TypeMessage,
			From:    from,
			To:      frame.To,
			Message: frame.Message,
		})
	case TypeBookOffer:
		h.hub.SendDirect(frame.To, DirectFrame{
			Type: TypeBookOffer,
			From: from,
			To:   frame.To,
			Book: frame.Book,
		})
	case TypeBookOfferResponse:
		h.hub.SendDirect(frame.To, DirectFrame{
			Type:     TypeBookOfferResponse,
			From:     from,
			To:       frame.To,
			Book:     frame.Book,
			Accepted: frame.Accepted,
		})
	default:
		h.log.Debug("unknown chat frame", zap.String("type", frame.Type), zap.String("from", from))
	}
}
