// internal/api/handlers/websocket_handler.go
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"waste-tracking-api-server/internal/auth"
	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/socket"
)

const (
	// Time allowed to read the next pong or ping from the client.
	pongWait = 60 * time.Second
	// Must be less than pongWait.
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub    *socket.Hub
	Tokens *auth.Tokens
}

// parseTables reads ?tables=shipments,drivers. An empty value subscribes to both.
func parseTables(raw string) ([]string, bool) {
	if strings.TrimSpace(raw) == "" {
		return []string{models.TableShipments, models.TableDrivers}, true
	}
	var tables []string
	for _, t := range strings.Split(raw, ",") {
		switch t = strings.TrimSpace(t); t {
		case models.TableShipments, models.TableDrivers:
			tables = append(tables, t)
		default:
			return nil, false
		}
	}
	return tables, true
}

// ServeWs upgrades the request into a change-feed subscription. Browsers
// cannot set headers on websocket requests, so the token comes in the query.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}
	claims, err := h.Tokens.Parse(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	tables, ok := parseTables(c.Query("tables"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tables must be shipments and/or drivers"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("failed to upgrade connection", "err", err)
		return
	}

	client := socket.NewClient(claims.UserID, tables)
	h.Hub.Register(client)
	go writePump(conn, client)
	readPump(conn, client)
	h.Hub.Unregister(client)
}

// readPump only services control frames; subscribers do not send data.
func readPump(conn *websocket.Conn, client *socket.Client) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("unexpected websocket close", "user", client.UserID, "err", err)
			}
			return
		}
	}
}

// writePump drains the client's Send channel and keeps the connection alive
// with pings. It closes the connection once Send is closed.
func writePump(conn *websocket.Conn, client *socket.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
