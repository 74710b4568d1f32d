package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopi7989/agri-connect/internal/services"
)

// RestStatsHandler serves the public counters.
type RestStatsHandler struct {
	statsService services.IStatsService
}

func NewRestStatsHandler(statsService services.IStatsService) *RestStatsHandler {
	return &RestStatsHandler{statsService: statsService}
}

// Summary handles GET /api/stats
func (h *RestStatsHandler) Summary(c *gin.Context) {
	stats, err := h.statsService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Districts handles GET /api/stats/districts
func (h *RestStatsHandler) Districts(c *gin.Context) {
	counts, err := h.statsService.Districts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
