package wsutil

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 40 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 5 * time.Second
)

// WsWrap lets a websocket connection be used as an io.Writer of text messages.
type WsWrap struct {
	*websocket.Conn
}

func (ws WsWrap) Write(b []byte) (int, error) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.Conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// KeepAlive arms the read deadline and extends it on every pong. Call it before the
// first read and before starting Ping.
func (ws WsWrap) KeepAlive() {
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(pongWait)) })
}

// Ping sends a ping every pingPeriod until done is closed or a ping fails. A peer that
// stops answering makes the next read fail once KeepAlive is in place.
func (ws WsWrap) Ping(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)) != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// CloseWith sends a close message with code and text.
func (ws WsWrap) CloseWith(code int, text string) error {
	return ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
