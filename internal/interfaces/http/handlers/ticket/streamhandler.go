package ticket

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/orris-inc/triage/internal/application/ticket/usecases"
	"github.com/orris-inc/triage/internal/infrastructure/services"
	"github.com/orris-inc/triage/internal/shared/config"
	"github.com/orris-inc/triage/internal/shared/errors"
	"github.com/orris-inc/triage/internal/shared/goroutine"
	"github.com/orris-inc/triage/internal/shared/logger"
)

// closeTicketNotFound is the close reason sent when the ticket id is unknown.
const closeTicketNotFound = "ticket not found"

// StreamHandler serves the per-ticket websocket event stream.
type StreamHandler struct {
	watchTicketUC usecases.WatchTicketExecutor
	hubConfig     config.HubConfig
	upgrader      websocket.Upgrader
	logger        logger.Interface
}

// NewStreamHandler creates a StreamHandler. checkOrigin decides which
// browser origins may connect.
func NewStreamHandler(
	watchTicketUC usecases.WatchTicketExecutor,
	hubConfig config.HubConfig,
	checkOrigin func(origin string) bool,
	log logger.Interface,
) *StreamHandler {
	return &StreamHandler{
		watchTicketUC: watchTicketUC,
		hubConfig:     hubConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r.Header.Get("Origin"))
			},
		},
		logger: log,
	}
}

// TicketWS handles websocket connections for a ticket.
// GET /ws/tickets/:id
func (h *StreamHandler) TicketWS(c *gin.Context) {
	ticketID := c.Param("id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("failed to upgrade to websocket",
			"error", err,
			"ticket_id", ticketID,
			"ip", c.ClientIP(),
		)
		return
	}

	listener := services.NewListenerConn(ticketID, conn, h.hubConfig.SendBuffer)

	cmd := usecases.WatchTicketCommand{TicketID: ticketID, Listener: listener}
	if err := h.watchTicketUC.Attach(context.Background(), cmd); err != nil {
		listener.Close()
		h.rejectConnection(conn, ticketID, err)
		return
	}

	h.logger.Infow("ticket listener websocket connected",
		"ticket_id", ticketID,
		"ip", c.ClientIP(),
	)

	goroutine.SafeGo(h.logger, "ticket-listener-write-pump", func() {
		h.writePump(listener)
	})
	h.readPump(listener)
}

// rejectConnection sends a close frame and drops the connection.
func (h *StreamHandler) rejectConnection(conn *websocket.Conn, ticketID string, err error) {
	code := websocket.CloseInternalServerErr
	reason := "internal error"
	if errors.IsNotFoundError(err) {
		code = websocket.ClosePolicyViolation
		reason = closeTicketNotFound
	}

	deadline := time.Now().Add(h.hubConfig.WriteWait)
	if werr := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); werr != nil {
		h.logger.Debugw("failed to write close frame",
			"error", werr,
			"ticket_id", ticketID,
		)
	}
	conn.Close()
}

// readPump discards client messages and keeps the read deadline fresh.
// It returns when the client goes away or stops answering pings.
func (h *StreamHandler) readPump(l *services.ListenerConn) {
	defer func() {
		h.watchTicketUC.Detach(l.TicketID, l)
		l.Close()
		l.Conn.Close()
		h.logger.Infow("ticket listener websocket disconnected",
			"ticket_id", l.TicketID,
			"duration", time.Since(l.ConnectedAt),
		)
	}()

	conn := l.Conn
	conn.SetReadLimit(h.hubConfig.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.hubConfig.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.hubConfig.PongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debugw("ticket listener websocket read error",
					"error", err,
					"ticket_id", l.TicketID,
				)
			}
			return
		}
	}
}

// writePump writes queued frames and pings. A closed Send channel ends the
// connection with a close frame.
func (h *StreamHandler) writePump(l *services.ListenerConn) {
	ticker := time.NewTicker(h.hubConfig.PingPeriod)
	conn := l.Conn
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-l.Send:
			conn.SetWriteDeadline(time.Now().Add(h.hubConfig.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debugw("failed to write to ticket listener websocket",
					"error", err,
					"ticket_id", l.TicketID,
				)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.hubConfig.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
