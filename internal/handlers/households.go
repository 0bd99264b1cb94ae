package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/media"
	"whosehouse/api/internal/middleware"
	"whosehouse/api/internal/models"
)

type householdResponse struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"displayName"`
	AddressLine1   string    `json:"addressLine1,omitempty"`
	AddressLine2   string    `json:"addressLine2,omitempty"`
	City           string    `json:"city,omitempty"`
	Postcode       string    `json:"postcode,omitempty"`
	Bedrooms       int       `json:"bedrooms"`
	SharingAllowed bool      `json:"sharingAllowed"`
	Availability   string    `json:"availability"`
	PhotoURLs      []string  `json:"photoUrls,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (h HandlerSet) toHouseholdResponse(hh models.Household) householdResponse {
	urls := make([]string, 0, len(hh.PhotoKeys))
	for _, key := range hh.PhotoKeys {
		urls = append(urls, h.store.PhotoURL(key))
	}
	return householdResponse{
		ID:             hh.ID,
		DisplayName:    hh.DisplayName,
		AddressLine1:   hh.AddressLine1,
		AddressLine2:   hh.AddressLine2,
		City:           hh.City,
		Postcode:       hh.Postcode,
		Bedrooms:       hh.Bedrooms,
		SharingAllowed: hh.SharingAllowed,
		Availability:   string(hh.Availability),
		PhotoURLs:      urls,
		UpdatedAt:      hh.UpdatedAt,
	}
}

func (h HandlerSet) GetHousehold(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	hh, err := h.households.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}

	switch identity.Role {
	case models.RoleAdmin:
	case models.RoleSocialWorker:
		if hh.OrganizationID != identity.OrganizationID {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
	case models.RoleFosterCarer:
		if hh.ID != identity.HouseholdID {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"household": h.toHouseholdResponse(hh)})
}

type updateHouseholdRequest struct {
	DisplayName    string `json:"displayName" binding:"required"`
	AddressLine1   string `json:"addressLine1"`
	AddressLine2   string `json:"addressLine2"`
	City           string `json:"city"`
	Postcode       string `json:"postcode"`
	Bedrooms       int    `json:"bedrooms" binding:"required,min=1,max=20"`
	SharingAllowed bool   `json:"sharingAllowed"`
	Availability   string `json:"availability" binding:"required,oneof=available away full"`
}

func (h HandlerSet) UpdateHousehold(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if c.Param("id") != identity.HouseholdID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var req updateHouseholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hh, err := h.households.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}

	hh.DisplayName = req.DisplayName
	hh.AddressLine1 = req.AddressLine1
	hh.AddressLine2 = req.AddressLine2
	hh.City = req.City
	hh.Postcode = req.Postcode
	hh.Bedrooms = req.Bedrooms
	hh.SharingAllowed = req.SharingAllowed
	hh.Availability = models.HouseholdAvailability(req.Availability)

	if err := h.households.Update(c.Request.Context(), hh); err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"household": h.toHouseholdResponse(hh)})
}

const maxPhotoSize = 10 << 20

func (h HandlerSet) UploadHousePhoto(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	householdID := c.Param("id")
	if householdID != identity.HouseholdID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	header, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file required"})
		return
	}
	if header.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	contentType, body, err := media.SniffPhoto(file)
	if err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported photo type"})
		return
	}

	key, err := h.store.PutHousePhoto(c.Request.Context(), householdID, header.Filename, body, header.Size, contentType)
	if err != nil {
		h.log.Error().Err(err).Str("household_id", householdID).Msg("house photo upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}

	if err := h.households.AppendPhotoKey(c.Request.Context(), householdID, key); err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key": key, "url": h.store.PhotoURL(key)})
}
