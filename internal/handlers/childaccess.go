package handlers

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/middleware"
	"whosehouse/api/internal/service"
)

type issueChildTokenRequest struct {
	Window string `json:"window" binding:"required,oneof=short medium"`
}

func (h HandlerSet) IssueChildToken(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req issueChildTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.childAccess.Issue(c.Request.Context(), identity, c.Param("id"), service.ExpiryWindow(req.Window))
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":     result.Token,
		"url":       result.URL,
		"qrPng":     base64.StdEncoding.EncodeToString(result.QRPNG),
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
	})
}

func (h HandlerSet) ChildCaseView(c *gin.Context) {
	caseRow, ok := middleware.ChildCase(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access_denied"})
		return
	}

	// The child view is deliberately thin: no worker or household
	// identifiers, just enough to anchor the conversation.
	c.JSON(http.StatusOK, gin.H{
		"caseNumber":    caseRow.CaseNumber,
		"status":        string(caseRow.Status),
		"placementType": string(caseRow.PlacementType),
	})
}

func (h HandlerSet) ChildThread(c *gin.Context) {
	caseRow, ok := middleware.ChildCase(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access_denied"})
		return
	}

	limit, offset := pagination(c)
	messages, err := h.messaging.ChildThread(c.Request.Context(), caseRow.ID, limit, offset)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		fromChild := m.SenderID == nil
		items = append(items, gin.H{
			"id":        m.ID,
			"fromChild": fromChild,
			"content":   m.Content,
			"createdAt": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": items})
}

type childSendRequest struct {
	Content string `json:"content" binding:"required"`
	Label   string `json:"label"`
	Nonce   string `json:"nonce"`
}

func (h HandlerSet) ChildSendMessage(c *gin.Context) {
	caseRow, ok := middleware.ChildCase(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access_denied"})
		return
	}

	var req childSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.messaging.SendFromChild(c.Request.Context(), caseRow.ID, req.Label, req.Content, req.Nonce)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": gin.H{
		"id":        m.ID,
		"content":   m.Content,
		"createdAt": m.CreatedAt,
	}})
}
