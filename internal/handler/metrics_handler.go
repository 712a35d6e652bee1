package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campushq/helpdesk-api/internal/service"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct {
	metricsService *service.MetricsService
}

func NewMetricsHandler(metricsService *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metricsService: metricsService}
}

// Scrape serves metrics in the Prometheus exposition format.
func (h *MetricsHandler) Scrape(c *gin.Context) {
	h.metricsService.Handler().ServeHTTP(c.Writer, c.Request)
}
