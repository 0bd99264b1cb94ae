package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/middleware"
	"whosehouse/api/internal/models"
)

type householdMatchResponse struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"displayName"`
	City          string   `json:"city"`
	Bedrooms      int      `json:"bedrooms"`
	ActiveCases   int      `json:"activeCases"`
	AvailableBeds int      `json:"availableBeds"`
	PhotoKeys     []string `json:"photoKeys,omitempty"`
}

type placementRequestResponse struct {
	ID          string     `json:"id"`
	CaseID      string     `json:"caseId"`
	HouseholdID string     `json:"householdId"`
	Message     string     `json:"message,omitempty"`
	Outcome     string     `json:"outcome"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toRequestResponse(pr models.PlacementRequest) placementRequestResponse {
	return placementRequestResponse{
		ID:          pr.ID,
		CaseID:      pr.CaseID,
		HouseholdID: pr.HouseholdID,
		Message:     pr.Message,
		Outcome:     string(pr.Outcome),
		ExpiresAt:   pr.ExpiresAt,
		DecidedAt:   pr.DecidedAt,
		CreatedAt:   pr.CreatedAt,
	}
}

func (h HandlerSet) SearchHouseholds(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	matches, err := h.placement.SearchHouseholds(c.Request.Context(), identity, c.Param("id"), limit)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]householdMatchResponse, 0, len(matches))
	for _, m := range matches {
		items = append(items, householdMatchResponse{
			ID:            m.Household.ID,
			DisplayName:   m.Household.DisplayName,
			City:          m.Household.City,
			Bedrooms:      m.Household.Bedrooms,
			ActiveCases:   m.ActiveCases,
			AvailableBeds: m.AvailableBeds,
			PhotoKeys:     m.Household.PhotoKeys,
		})
	}
	c.JSON(http.StatusOK, gin.H{"households": items})
}

type sendPlacementRequest struct {
	HouseholdID string `json:"householdId" binding:"required"`
	Message     string `json:"message"`
}

func (h HandlerSet) SendPlacementRequest(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req sendPlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pr, err := h.placement.SendRequest(c.Request.Context(), identity, c.Param("id"), req.HouseholdID, req.Message)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": toRequestResponse(pr)})
}

func (h HandlerSet) ListPlacementRequests(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	requests, err := h.placement.ListRequestsForHousehold(c.Request.Context(), identity, limit, offset)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]placementRequestResponse, 0, len(requests))
	for _, pr := range requests {
		items = append(items, toRequestResponse(pr))
	}
	c.JSON(http.StatusOK, gin.H{"requests": items})
}

func (h HandlerSet) AcceptPlacementRequest(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	activated, err := h.placement.Accept(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"case": toCaseResponse(activated)})
}

func (h HandlerSet) DeclinePlacementRequest(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.placement.Decline(c.Request.Context(), identity, c.Param("id")); err != nil {
		sendError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
