package api

import (
	"net/http"
	"time"

	"StockForecaster/internal/usecase"
	xhttp "StockForecaster/pkg/http"
	xlogger "StockForecaster/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	maxRunIDLen  = 64
)

// ProgressWSHandler streams pipeline stage events of one run over a websocket.
type ProgressWSHandler struct {
	logger     *xlogger.Logger
	hub        *usecase.ProgressHub
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
}

func NewProgressWSHandler(logger *xlogger.Logger, hub *usecase.ProgressHub) *ProgressWSHandler {
	return &ProgressWSHandler{
		logger: logger,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
			// the page is served from the same origin; API clients may not send Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingPeriod: wsPingPeriod,
	}
}

func (h *ProgressWSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/progress", h.Progress)
}

// Progress upgrades the connection and writes events until the run reaches a
// terminal stage, the client goes away, or a ping fails.
func (h *ProgressWSHandler) Progress(c echo.Context) error {
	runID := c.QueryParam("run_id")
	if runID == "" || len(runID) > maxRunIDLen {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_REQUIRED",
			Field:   "run_id",
			Message: "run_id is required",
		}})
	}

	// Subscribe before upgrading so no event published after the handshake is missed.
	events, cancel := h.hub.Subscribe(runID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("progress websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("progress websocket write failed", xlogger.String("run_id", runID), xlogger.Error(err))
				return nil
			}
			if ev.Terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ev.Stage),
					time.Now().Add(wsWriteWait))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}
