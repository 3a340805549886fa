package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/domain/catalog"
	"github.com/GriffinCanCode/nodegraph/internal/shared/id"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser hosts connect from arbitrary origins
	},
}

type clientMessage struct {
	Type string `json:"type"`
}

// Events streams catalog snapshot events over a websocket. The current
// snapshot is sent first so clients never miss the state they connected to.
func (h *Handlers) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := id.NewSubscriberID()
	log := h.log.With(zap.String("subscriber", sub.String()))
	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	events, unsubscribe := h.catalog.Subscribe()
	defer unsubscribe()
	log.Debug("Subscriber connected")

	pings := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			h.metrics.RecordWSMessage("in", msg.Type)
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	send := func(v any, msgType string) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			log.Debug("Subscriber write failed", zap.Error(err))
			return false
		}
		h.metrics.RecordWSMessage("out", msgType)
		return true
	}

	snap := h.catalog.Snapshot()
	if !send(catalog.Event{Type: "catalog", Kind: h.catalog.Kind(), Version: snap.Version, Count: snap.Len()}, "catalog") {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Debug("Subscriber disconnected")
			return
		case <-pings:
			if !send(gin.H{"type": "pong", "timestamp": time.Now().Unix()}, "pong") {
				return
			}
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "catalog closed"),
					time.Now().Add(writeWait))
				return
			}
			if !send(ev, ev.Type) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
