package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushq/helpdesk-api/internal/service"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
	"github.com/campushq/helpdesk-api/pkg/response"
)

// AnalyticsHandler serves request rollups and system metrics snapshots.
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// Overview godoc
// @Summary Request analytics for a date window
// @Description Defaults to the trailing 30 days when no window is given
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param from query string false "Window start (YYYY-MM-DD)"
// @Param to query string false "Window end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope{data=models.RequestAnalytics}
// @Router /analytics/requests [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	if h.analyticsService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}

	from, err := queryDate(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := queryDate(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}

	overview, err := h.analyticsService.Overview(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Stats godoc
// @Summary Status breakdown of service requests
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /requests/stats [get]
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	if h.analyticsService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}

	byStatus, total, err := h.analyticsService.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"by_status": byStatus, "total": total}, nil)
}

// System godoc
// @Summary Process-level service metrics
// @Description Includes cache hit ratio and connected realtime clients
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.SystemMetrics}
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analyticsService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	response.JSON(c, http.StatusOK, h.analyticsService.System(c.Request.Context()), nil)
}

func queryDate(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	value, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid "+key+" date, expected YYYY-MM-DD")
	}
	return value, nil
}
