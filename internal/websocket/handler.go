package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/models"
	"go.uber.org/zap"
)

// Handler handles WebSocket HTTP upgrade requests.
type Handler struct {
	hub       *Hub
	jwtSecret []byte
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, jwtSecret []byte) *Handler {
	return &Handler{
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// HandleWebSocket upgrades the HTTP connection. A JWT may be supplied via
// ?token= or the Authorization header; authenticated connections can only
// register as the token's subject. Anonymous connections are accepted too:
// they receive broadcasts and may still register explicitly, since joining a
// recipient group is always a client message.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	authenticatedID, err := h.authenticateRequest(c)
	if err != nil {
		logger.Log.Debug("WebSocket connection without valid token", zap.Error(err))
		authenticatedID = ""
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checking is handled by the CORS layer
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, authenticatedID)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	h.hub.Attach(client)

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event: "connected",
		Data: map[string]any{
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump() // blocks until the client disconnects
}

// authenticateRequest extracts and validates a JWT from the request.
func (h *Handler) authenticateRequest(c *gin.Context) (string, error) {
	tokenString := c.Query("token")

	if auth := c.GetHeader("Authorization"); auth != "" {
		tokenString = strings.TrimPrefix(auth, "Bearer ")
	}

	if tokenString == "" {
		return "", errors.New("no authentication token provided")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", errors.New("invalid user_id in token")
	}

	return userID, nil
}

// HandleStats returns channel statistics for monitoring.
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket": h.hub.Snapshot(),
		"online":    h.hub.OnlineRecipients(),
		"timestamp": time.Now().UTC(),
	})
}

// PushNotification delivers a persisted notification to the recipient's
// registered connections.
func (h *Handler) PushNotification(recipientID string, n *models.Notification) {
	h.hub.SendToRecipient(recipientID, NewMessage(MessageTypeNotification, n))
}

// PushBroadcast emits a site-wide event to every connection.
func (h *Handler) PushBroadcast(ev *models.BroadcastEvent) {
	h.hub.Broadcast(NewMessage(MessageTypeNotificationBroadcast, ev))
}

// Shutdown gracefully shuts down the channel.
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

// Hub returns the underlying hub.
func (h *Handler) Hub() *Hub {
	return h.hub
}
