package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/services"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(listingService services.IListingService) *RestListingHandler {
	return &RestListingHandler{listingService: listingService}
}

type CreateListingRequest struct {
	CropName string `json:"cropName" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
	Status   string `json:"status"`
	// HarvestDate accepts RFC 3339 or a plain YYYY-MM-DD date.
	HarvestDate string `json:"harvestDate"`
}

// CreateListing handles POST /api/listings
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req CreateListingRequest
	if !bindJSON(c, &req) {
		return
	}

	harvestDate, err := parseHarvestDate(req.HarvestDate)
	if err != nil {
		respondError(c, apperr.Validation("Harvest date must be a date like 2025-01-31"))
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), user, services.CreateListingInput{
		CropName:    req.CropName,
		Quantity:    req.Quantity,
		Status:      models.ListingStatus(strings.TrimSpace(req.Status)),
		HarvestDate: harvestDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func parseHarvestDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var lastErr error
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return &t, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// ListListings handles GET /api/listings?page&limit&crop&district&status
// Non-numeric page or limit fall back to the defaults.
func (h *RestListingHandler) ListListings(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.listingService.ListListings(c.Request.Context(), services.ListingQuery{
		Page:  page,
		Limit: limit,
		Filter: models.ListingFilter{
			Crop:     c.Query("crop"),
			District: c.Query("district"),
			Status:   models.ListingStatus(c.Query("status")),
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetListingByID handles GET /api/listings/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Validation("Invalid listing ID format"))
		return
	}

	view, err := h.listingService.GetListingView(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
