package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/ids"
	"whosehouse/api/internal/middleware"
	"whosehouse/api/internal/models"
)

func (h HandlerSet) AdminListProfiles(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	organizationID := c.Query("organizationId")
	if organizationID == "" {
		organizationID = identity.OrganizationID
	}

	limit, offset := pagination(c)
	profiles, err := h.profiles.ListByOrganization(c.Request.Context(), organizationID, limit, offset)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toProfileResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"profiles": items})
}

func (h HandlerSet) AdminDeactivateProfile(c *gin.Context) {
	h.setProfileStatus(c, models.ProfileStatusDeactivated, "profile.deactivate")
}

func (h HandlerSet) AdminReactivateProfile(c *gin.Context) {
	h.setProfileStatus(c, models.ProfileStatusActive, "profile.reactivate")
}

func (h HandlerSet) setProfileStatus(c *gin.Context, status models.ProfileStatus, action string) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	targetID := c.Param("id")
	if targetID == identity.UserID {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot change own status"})
		return
	}

	if err := h.profiles.UpdateStatus(c.Request.Context(), targetID, status); err != nil {
		sendError(c, err)
		return
	}

	actorID := identity.UserID
	if err := h.audit.Insert(c.Request.Context(), models.AuditLogEntry{
		ID:         ids.New(),
		Action:     action,
		ActorID:    &actorID,
		TargetType: "profile",
		TargetID:   targetID,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}); err != nil {
		h.log.Error().Err(err).Str("action", action).Msg("audit write failed")
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminListAuditLogs(c *gin.Context) {
	limit, offset := pagination(c)
	entries, err := h.audit.List(c.Request.Context(), limit, offset)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		items = append(items, gin.H{
			"id":         e.ID,
			"action":     e.Action,
			"actorId":    e.ActorID,
			"targetType": e.TargetType,
			"targetId":   e.TargetID,
			"ipAddress":  e.IPAddress,
			"userAgent":  e.UserAgent,
			"createdAt":  e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": items})
}
