package controller

import (
	"context"

	"ess/common"
	"ess/pkg/pubsub"
	"ess/pkg/wsutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Monitor forwards every reply to websocket clients. Telemetry is published under the
// device name, responses to everybody.
type Monitor struct {
	ps     *pubsub.PubSub
	logger *zap.Logger
}

func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{ps: pubsub.NewPubSub(), logger: logger.Named("Monitor")}
}

func (m *Monitor) Publish(_ context.Context, reply any) error {
	if t, ok := reply.(common.Telemetry); ok {
		return m.ps.Publish(t, t.Name)
	}
	return m.ps.Publish(reply, "")
}

func (m *Monitor) Clients() int {
	return m.ps.Len()
}

// TelemetryWebsocket streams replies to the client. The client narrows the stream by
// sending a list of device names; an empty list restores every device.
func (m *Monitor) TelemetryWebsocket(c *gin.Context) {
	wsw := c.MustGet(contextKeyWsConn).(wsutil.WsWrap)

	subscriber := pubsub.NewSubscriber(c.Request.Context().Done(), wsw)
	m.ps.Subscribe(subscriber, nil)
	defer m.ps.EvictAndClose(subscriber)
	go wsw.Ping(c.Request.Context().Done())

	// reader
	for {
		var names []string
		if err := wsw.ReadJSON(&names); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if len(names) == 0 {
			m.ps.Subscribe(subscriber, nil)
			continue
		}
		m.ps.Subscribe(subscriber, pubsub.NewTopics(names...))
	}
}
