package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Dmitryqr/defect-detection-website/internal/presentation"
	"github.com/Dmitryqr/defect-detection-website/internal/service"
)

const writeWait = 5 * time.Second

type snapshotMessage struct {
	Kind string            `json:"kind"`
	Page service.PageState `json:"page"`
}

// Events streams presentation changes of the session's page over a
// websocket. The first message carries the full page state; after that
// every event is sent as it happens. A navigate event ends the stream.
func (h *Handler) Events(c *gin.Context) {
	sid := sessionID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := h.service.Subscribe(sid)
	defer cancel()

	// The server read timeout must not end a long-lived stream.
	_ = conn.SetReadDeadline(time.Time{})

	// Reader: only needed to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	state := h.service.State(sid)
	if err := h.write(conn, snapshotMessage{Kind: "snapshot", Page: state}); err != nil {
		return
	}

	for ev := range events {
		if err := h.write(conn, ev); err != nil {
			h.log.Debug("Websocket write failed", zap.String("session", sid), zap.Error(err))
			return
		}
		if ev.Kind == presentation.KindNavigate {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
