package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/services"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

// RestInquiryHandler handles inquiry and bid requests.
type RestInquiryHandler struct {
	inquiryService services.IInquiryService
}

func NewRestInquiryHandler(inquiryService services.IInquiryService) *RestInquiryHandler {
	return &RestInquiryHandler{inquiryService: inquiryService}
}

type SendInquiryRequest struct {
	ListingID     string        `json:"listingId" binding:"required"`
	Message       string        `json:"message" binding:"max=2000"`
	OfferPrice    *models.Price `json:"offerPrice"`
	OfferQuantity string        `json:"offerQuantity" binding:"max=200"`
}

type DecideInquiryRequest struct {
	Status models.BidStatus `json:"status" binding:"required,oneof=accepted rejected"`
}

// SendInquiry handles POST /api/inquiries
func (h *RestInquiryHandler) SendInquiry(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req SendInquiryRequest
	if !bindJSON(c, &req) {
		return
	}
	listingID, err := utils.ParseSixID(req.ListingID)
	if err != nil {
		// An id that cannot exist names no listing.
		respondError(c, apperr.NotFound("Listing not found"))
		return
	}

	inquiry, err := h.inquiryService.SendInquiry(c.Request.Context(), user, services.SendInquiryInput{
		ListingID:     listingID,
		Message:       req.Message,
		OfferPrice:    req.OfferPrice,
		OfferQuantity: req.OfferQuantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inquiry)
}

// MyInquiries handles GET /api/inquiries/my-inquiries
func (h *RestInquiryHandler) MyInquiries(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	views, err := h.inquiryService.ListMine(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// DecideInquiry handles PATCH /api/inquiries/:id/status
func (h *RestInquiryHandler) DecideInquiry(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	inquiryID, ok := inquiryIDParam(c)
	if !ok {
		return
	}
	var req DecideInquiryRequest
	if !bindJSON(c, &req) {
		return
	}

	inquiry, err := h.inquiryService.DecideInquiry(c.Request.Context(), user, inquiryID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

// MarkRead handles PATCH /api/inquiries/:id/read
func (h *RestInquiryHandler) MarkRead(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	inquiryID, ok := inquiryIDParam(c)
	if !ok {
		return
	}

	inquiry, err := h.inquiryService.MarkRead(c.Request.Context(), user, inquiryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

func inquiryIDParam(c *gin.Context) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Validation("Invalid inquiry ID format"))
		return utils.SixID{}, false
	}
	return id, true
}
