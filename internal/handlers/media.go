package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/media"
	"whosehouse/api/internal/middleware"
)

const maxMediaSize = 50 << 20

func (h HandlerSet) UploadCaseMedia(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	caseID := c.Param("id")

	// GetCase enforces the same read policy the thread uses; the route
	// already restricts the role to social workers.
	if _, err := h.placement.GetCase(c.Request.Context(), identity, caseID); err != nil {
		sendError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media file required"})
		return
	}
	if header.Size > maxMediaSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	contentType, body, err := media.SniffDocument(file)
	if err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported media type"})
		return
	}

	key, err := h.store.PutCaseMedia(c.Request.Context(), caseID, header.Filename, body, header.Size, contentType)
	if err != nil {
		h.log.Error().Err(err).Str("case_id", caseID).Msg("case media upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key": key})
}

func (h HandlerSet) CaseMediaURL(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	caseID := c.Param("id")

	if _, err := h.placement.GetCase(c.Request.Context(), identity, caseID); err != nil {
		sendError(c, err)
		return
	}

	keys, err := h.store.ListCaseMedia(c.Request.Context(), caseID)
	if err != nil {
		h.log.Error().Err(err).Str("case_id", caseID).Msg("case media listing failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "listing failed"})
		return
	}

	items := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		u, err := h.store.PresignMediaURL(c.Request.Context(), key)
		if err != nil {
			h.log.Error().Err(err).Str("key", key).Msg("presign failed")
			continue
		}
		items = append(items, gin.H{"key": key, "url": u})
	}
	c.JSON(http.StatusOK, gin.H{"media": items})
}
