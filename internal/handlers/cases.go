package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/middleware"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/service"
)

type createCaseRequest struct {
	PlacementType   string `json:"placementType" binding:"required,oneof=respite long_term emergency"`
	RoomSharingOK   bool   `json:"roomSharingOk"`
	ChildDescriptor string `json:"childDescriptor"`
	RequestKey      string `json:"requestKey"`
}

type caseResponse struct {
	ID              string     `json:"id"`
	CaseNumber      string     `json:"caseNumber"`
	Status          string     `json:"status"`
	SocialWorkerID  string     `json:"socialWorkerId"`
	FosterCarerID   *string    `json:"fosterCarerId,omitempty"`
	HouseholdID     *string    `json:"householdId,omitempty"`
	ChildDescriptor string     `json:"childDescriptor,omitempty"`
	PlacementType   string     `json:"placementType"`
	RoomSharingOK   bool       `json:"roomSharingOk"`
	ActivatedAt     *time.Time `json:"activatedAt,omitempty"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toCaseResponse(c models.Case) caseResponse {
	return caseResponse{
		ID:              c.ID,
		CaseNumber:      c.CaseNumber,
		Status:          string(c.Status),
		SocialWorkerID:  c.SocialWorkerID,
		FosterCarerID:   c.FosterCarerID,
		HouseholdID:     c.HouseholdID,
		ChildDescriptor: c.ChildDescriptor,
		PlacementType:   string(c.PlacementType),
		RoomSharingOK:   c.RoomSharingOK,
		ActivatedAt:     c.ActivatedAt,
		ClosedAt:        c.ClosedAt,
		CreatedAt:       c.CreatedAt,
	}
}

func (h HandlerSet) CreateCase(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.placement.CreateCase(c.Request.Context(), identity, service.CreateCaseInput{
		PlacementType:   models.PlacementType(req.PlacementType),
		RoomSharingOK:   req.RoomSharingOK,
		ChildDescriptor: req.ChildDescriptor,
		RequestKey:      req.RequestKey,
	})
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"case": toCaseResponse(created)})
}

func (h HandlerSet) ListCases(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	cases, err := h.placement.ListCases(c.Request.Context(), identity, limit, offset)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]caseResponse, 0, len(cases))
	for _, row := range cases {
		items = append(items, toCaseResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{"cases": items})
}

func (h HandlerSet) GetCase(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	row, err := h.placement.GetCase(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"case": toCaseResponse(row)})
}

func (h HandlerSet) CloseCase(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.placement.CloseCase(c.Request.Context(), identity, c.Param("id")); err != nil {
		sendError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func pagination(c *gin.Context) (limit int, offset int) {
	limit = 50
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}
