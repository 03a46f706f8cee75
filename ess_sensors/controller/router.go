package controller

import (
	"net/http"
	"net/http/httputil"
	"time"

	"ess/ess_sensors/db"
	"ess/pkg/wsutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const contextKeyWsConn = "wsConn"

func setupRouter(h *CommandHandler, m *Monitor, withHistory bool, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	//must be setup first
	r.Use(zapLogger(logger.Named("HTTP")))

	r.GET("/status", statusHandler(h, m))
	if withHistory {
		r.GET("/telemetryHistory", TelemetryHistory)
	}
	r.GET("/ws/telemetry", upgradeWs, m.TelemetryWebsocket)
	return r
}

func zapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				httpRequest, _ := httputil.DumpRequest(c.Request, false)
				logger.Error("Request panic",
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.ByteString("request", httpRequest),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		start := time.Now()
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error("Request error",
				zap.String("path", c.Request.URL.Path),
				zap.String("query", c.Request.URL.RawQuery),
				zap.String("error", c.Errors.String()),
			)
		}
		logger.Debug("HTTP request",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func statusHandler(h *CommandHandler, m *Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, struct {
			Status
			MonitorClients int `json:"monitor_clients"`
		}{Status: h.Status(), MonitorClients: m.Clients()})
	}
}

func TelemetryHistory(c *gin.Context) {
	var param struct {
		Device string `form:"device" binding:"required"`
		Start  int64  `form:"start"`
		End    int64  `form:"end"`
	}
	if c.Bind(&param) != nil {
		return
	}
	ds, err := db.GetTelemetry(param.Device, param.Start, param.End)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

var wsUpgrade = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func upgradeWs(c *gin.Context) {
	ws, err := wsUpgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	defer func() { _ = ws.Close() }()

	wsw := wsutil.WsWrap{Conn: ws}
	wsw.KeepAlive()
	c.Set(contextKeyWsConn, wsw)
	c.Next()
}
