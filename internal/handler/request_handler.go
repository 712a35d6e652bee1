package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushq/helpdesk-api/internal/models"
	"github.com/campushq/helpdesk-api/internal/service"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
	"github.com/campushq/helpdesk-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, req service.CreateRequestRequest, actor models.Identity) (*models.ServiceRequest, error)
	Get(ctx context.Context, id string, actor models.Identity) (*models.ServiceRequest, error)
	List(ctx context.Context, req service.ListRequestsRequest, actor models.Identity) ([]models.ServiceRequest, *models.Pagination, error)
	Update(ctx context.Context, id string, patch models.RequestPatch, actor models.Identity) (*models.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id string, req service.UpdateStatusRequest, actor models.Identity) (*models.ServiceRequest, error)
	Delete(ctx context.Context, id string, actor models.Identity) error
}

// RequestHandler serves the service-request lifecycle endpoints.
type RequestHandler struct {
	requestService requestService
}

func NewRequestHandler(requestService requestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

// Create godoc
// @Summary File a service request
// @Description Students file for themselves; staff may file on behalf of a student
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateRequestRequest true "Request details"
// @Success 201 {object} response.Envelope{data=models.ServiceRequest}
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	if h.requestService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload"))
		return
	}

	created, err := h.requestService.Create(c.Request.Context(), req, identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List service requests
// @Description Students see their own requests; staff see everything
// @Tags requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param priority query string false "Filter by priority"
// @Param category query string false "Filter by category slug"
// @Param search query string false "Search in description"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.ServiceRequest}
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	if h.requestService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.ListRequestsRequest{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	requests, pagination, err := h.requestService.List(c.Request.Context(), req, identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Fetch a single service request
// @Tags requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope{data=models.ServiceRequest}
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	if h.requestService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.requestService.Get(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Update godoc
// @Summary Patch service request fields
// @Description Status and admin notes are staff-only; a resolved request never reopens
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body models.RequestPatch true "Fields to update"
// @Success 200 {object} response.Envelope{data=models.ServiceRequest}
// @Failure 400 {object} response.Envelope
// @Router /requests/{id} [patch]
func (h *RequestHandler) Update(c *gin.Context) {
	if h.requestService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var patch models.RequestPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patch payload"))
		return
	}

	updated, err := h.requestService.Update(c.Request.Context(), c.Param("id"), patch, identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// UpdateStatus godoc
// @Summary Transition request status
// @Description Staff-only lifecycle transition; resolving a request is final
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body service.UpdateStatusRequest true "New status"
// @Success 200 {object} response.Envelope{data=models.ServiceRequest}
// @Failure 400 {object} response.Envelope
// @Router /requests/{id}/status [patch]
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	if h.requestService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload"))
		return
	}

	updated, err := h.requestService.UpdateStatus(c.Request.Context(), c.Param("id"), req, identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Delete godoc
// @Summary Soft delete a service request
// @Tags requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [delete]
func (h *RequestHandler) Delete(c *gin.Context) {
	if h.requestService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.requestService.Delete(c.Request.Context(), c.Param("id"), identity); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
