package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/middleware"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/service"
)

type messageResponse struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"caseId"`
	SenderID    *string   `json:"senderId,omitempty"`
	SenderLabel string    `json:"senderLabel,omitempty"`
	RecipientID *string   `json:"recipientId,omitempty"`
	Content     string    `json:"content"`
	Urgent      bool      `json:"urgent"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toMessageResponse(m models.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		CaseID:      m.CaseID,
		SenderID:    m.SenderID,
		SenderLabel: m.SenderLabel,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		Urgent:      m.Urgent,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

func (h HandlerSet) Thread(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	messages, err := h.messaging.Thread(c.Request.Context(), identity, c.Param("id"), limit, offset)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		items = append(items, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": items})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
	Urgent  bool   `json:"urgent"`
}

func (h HandlerSet) SendMessage(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.messaging.Send(c.Request.Context(), identity, service.SendInput{
		CaseID:  c.Param("id"),
		Content: req.Content,
		Urgent:  req.Urgent,
	})
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": toMessageResponse(m)})
}

func (h HandlerSet) MarkMessageRead(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.messaging.MarkRead(c.Request.Context(), identity, c.Param("id")); err != nil {
		sendError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) UnreadCount(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if caseID := c.Query("caseId"); caseID != "" {
		count, err := h.messaging.UnreadCountByCase(c.Request.Context(), identity.UserID, caseID)
		if err != nil {
			sendError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": count, "caseId": caseID})
		return
	}

	count, err := h.messaging.UnreadCount(c.Request.Context(), identity.UserID)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}
