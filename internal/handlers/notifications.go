package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/middleware"
	"whosehouse/api/internal/models"
)

type registerPushTokenRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required,oneof=ios android web"`
}

func (h HandlerSet) RegisterPushToken(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req registerPushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notify.RegisterPushToken(c.Request.Context(), identity.UserID, req.DeviceID, req.Token, req.Platform); err != nil {
		sendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListNotifications(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	records, err := h.notify.List(c.Request.Context(), identity.UserID, limit, offset)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, r := range records {
		items = append(items, gin.H{
			"id":        r.ID,
			"type":      r.Type,
			"title":     r.Title,
			"body":      r.Body,
			"status":    string(r.Status),
			"createdAt": r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h HandlerSet) GetNotificationPreferences(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	prefs, err := h.notify.Preferences(c.Request.Context(), identity.UserID)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"newMessage":     prefs.NewMessage,
		"placementState": prefs.PlacementState,
	})
}

type updatePreferencesRequest struct {
	NewMessage     *bool `json:"newMessage" binding:"required"`
	PlacementState *bool `json:"placementState" binding:"required"`
}

func (h HandlerSet) UpdateNotificationPreferences(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs := models.NotificationPreferences{
		ProfileID:      identity.UserID,
		NewMessage:     *req.NewMessage,
		PlacementState: *req.PlacementState,
	}
	if err := h.notify.UpdatePreferences(c.Request.Context(), prefs); err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"newMessage":     prefs.NewMessage,
		"placementState": prefs.PlacementState,
	})
}
