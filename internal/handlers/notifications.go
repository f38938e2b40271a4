package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/treehole/backend/internal/cache"
	apierrors "github.com/treehole/backend/internal/errors"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/middleware"
	"github.com/treehole/backend/internal/models"
	"github.com/treehole/backend/internal/notify"
	"go.uber.org/zap"
)

// ListNotifications pages through the authenticated user's notifications,
// newest first. The type query param filters by kind; type=unread filters
// to read=false instead.
// GET /api/v1/notifications?page=1&limit=10&type=mention
func (h *Handlers) ListNotifications(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apiErr := apierrors.Unauthorized("not authenticated")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	opts := notify.ListOptions{Page: page, Limit: limit}
	switch filter := c.Query("type"); filter {
	case "":
	case "unread":
		opts.UnreadOnly = true
	default:
		kind := models.NotificationKind(filter)
		if !models.ValidKind(kind) {
			apiErr := apierrors.BadRequest("unknown notification type")
			c.JSON(apiErr.Status, apiErr)
			return
		}
		opts.Kind = kind
	}

	notifications, total, err := h.store.ListByRecipient(c.Request.Context(), user.ID, opts)
	if err != nil {
		logger.Log.Error("Failed to list notifications",
			zap.String("recipient_id", user.ID),
			zap.Error(err))
		apiErr := apierrors.InternalError("failed to list notifications")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	unread, err := h.store.CountUnread(c.Request.Context(), user.ID)
	if err != nil {
		logger.Log.Warn("Failed to count unread notifications", zap.Error(err))
	}

	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"current_page":  page,
		"total_pages":   totalPages,
		"total_items":   total,
		"unread_count":  unread,
	})
}

// UnreadCount returns the badge count, served from the Redis cache when warm.
// GET /api/v1/notifications/unread-count
func (h *Handlers) UnreadCount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apiErr := apierrors.Unauthorized("not authenticated")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	ctx := c.Request.Context()
	if rc := cache.Get(); rc != nil {
		if count, hit := rc.GetUnreadCount(ctx, user.ID); hit {
			c.JSON(http.StatusOK, gin.H{"unread_count": count})
			return
		}
	}

	count, err := h.store.CountUnread(ctx, user.ID)
	if err != nil {
		logger.Log.Error("Failed to count unread notifications",
			zap.String("recipient_id", user.ID),
			zap.Error(err))
		apiErr := apierrors.InternalError("failed to count unread notifications")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	if rc := cache.Get(); rc != nil {
		rc.SetUnreadCount(ctx, user.ID, count)
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkNotificationRead flips one owned notification to read.
// PUT /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apiErr := apierrors.Unauthorized("not authenticated")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()

	notification, err := h.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			apiErr := apierrors.NotFound("notification")
			c.JSON(apiErr.Status, apiErr)
			return
		}
		logger.Log.Error("Failed to load notification", zap.String("id", id), zap.Error(err))
		apiErr := apierrors.InternalError("failed to load notification")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	if notification.RecipientID != user.ID {
		apiErr := apierrors.Forbidden("not your notification")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	if err := h.store.MarkRead(ctx, id); err != nil {
		logger.Log.Error("Failed to mark notification read", zap.String("id", id), zap.Error(err))
		apiErr := apierrors.InternalError("failed to mark notification read")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	if rc := cache.Get(); rc != nil {
		rc.InvalidateUnreadCount(ctx, user.ID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
}

// MarkAllRead flips every unread notification for the authenticated user.
// PUT /api/v1/notifications/read-all
func (h *Handlers) MarkAllRead(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apiErr := apierrors.Unauthorized("not authenticated")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	ctx := c.Request.Context()
	updated, err := h.store.MarkAllRead(ctx, user.ID)
	if err != nil {
		logger.Log.Error("Failed to mark all notifications read",
			zap.String("recipient_id", user.ID),
			zap.Error(err))
		apiErr := apierrors.InternalError("failed to mark notifications read")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	if rc := cache.Get(); rc != nil {
		rc.InvalidateUnreadCount(ctx, user.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "all notifications marked as read",
		"updated": updated,
	})
}

type broadcastRequest struct {
	Body      string `json:"body" binding:"required"`
	Kind      string `json:"kind"`
	RelatedID string `json:"related_id"`
}

// AnnounceBroadcast fans a site-wide announcement out to every user.
// Moderator only. The fan-out runs detached; the request returns before
// delivery completes.
// POST /api/v1/notifications/broadcast
func (h *Handlers) AnnounceBroadcast(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apiErr := apierrors.Unauthorized("not authenticated")
		c.JSON(apiErr.Status, apiErr)
		return
	}
	if !user.IsModerator() {
		apiErr := apierrors.Forbidden("moderator access required")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiErr := apierrors.BadRequest(err.Error())
		c.JSON(apiErr.Status, apiErr)
		return
	}

	kind := models.KindSystem
	if req.Kind != "" {
		kind = models.NotificationKind(req.Kind)
		if !models.ValidKind(kind) {
			apiErr := apierrors.BadRequest("unknown notification type")
			c.JSON(apiErr.Status, apiErr)
			return
		}
	}

	h.notify.DispatchBroadcast(notify.BroadcastParams{
		Kind:               kind,
		Body:               req.Body,
		RelatedID:          req.RelatedID,
		SenderID:           user.ID,
		SenderName:         user.Nickname,
		ExcludeRecipientID: user.ID,
	})

	c.JSON(http.StatusAccepted, gin.H{"message": "broadcast dispatched"})
}

// ClearNotifications deletes every notification for the authenticated user.
// DELETE /api/v1/notifications (also mounted at DELETE /api/v1/notifications/all
// for older clients)
func (h *Handlers) ClearNotifications(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apiErr := apierrors.Unauthorized("not authenticated")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	ctx := c.Request.Context()
	deleted, err := h.store.ClearAll(ctx, user.ID)
	if err != nil {
		logger.Log.Error("Failed to clear notifications",
			zap.String("recipient_id", user.ID),
			zap.Error(err))
		apiErr := apierrors.InternalError("failed to clear notifications")
		c.JSON(apiErr.Status, apiErr)
		return
	}

	if rc := cache.Get(); rc != nil {
		rc.InvalidateUnreadCount(ctx, user.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "notifications cleared",
		"deleted": deleted,
	})
}
