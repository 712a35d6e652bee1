package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/helpdesk-api/internal/models"
	"github.com/campushq/helpdesk-api/internal/service"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
	"github.com/campushq/helpdesk-api/pkg/response"
)

type announcementService interface {
	Create(ctx context.Context, req service.CreateAnnouncementRequest) (*models.Announcement, error)
	Get(ctx context.Context, id string, actor models.Identity) (*models.Announcement, error)
	ListForRecipient(ctx context.Context, actor models.Identity, unreadOnly bool) ([]models.Announcement, error)
	ListAll(ctx context.Context, page, pageSize int) ([]models.Announcement, *models.Pagination, error)
	UnreadCount(ctx context.Context, actor models.Identity) (int, error)
	MarkRead(ctx context.Context, id string, actor models.Identity) error
	MarkAllRead(ctx context.Context, actor models.Identity) (int64, error)
	Delete(ctx context.Context, id string, actor models.Identity) error
}

// AnnouncementHandler serves announcement endpoints.
type AnnouncementHandler struct {
	announcementService announcementService
}

func NewAnnouncementHandler(announcementService announcementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: announcementService}
}

// Create godoc
// @Summary Publish an announcement
// @Description Staff-only; targeting must match the chosen target mode
// @Tags announcements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAnnouncementRequest true "Announcement"
// @Success 201 {object} response.Envelope{data=models.Announcement}
// @Failure 400 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	if h.announcementService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload"))
		return
	}
	req.CreatedBy = identity.UserID
	req.CreatedByRole = identity.Role

	created, err := h.announcementService.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List announcements addressed to the caller
// @Tags announcements
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread announcements"
// @Success 200 {object} response.Envelope{data=[]models.Announcement}
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	if h.announcementService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	unreadOnly := c.Query("unread") == "true"
	announcements, err := h.announcementService.ListForRecipient(c.Request.Context(), identity, unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, nil)
}

// ListAll godoc
// @Summary List every announcement regardless of audience
// @Description Staff-only administrative view
// @Tags announcements
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.Announcement}
// @Router /announcements/all [get]
func (h *AnnouncementHandler) ListAll(c *gin.Context) {
	if h.announcementService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}

	announcements, pagination, err := h.announcementService.ListAll(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "page_size", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, pagination)
}

// Get godoc
// @Summary Fetch an announcement
// @Tags announcements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope{data=models.Announcement}
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	if h.announcementService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	announcement, err := h.announcementService.Get(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// MarkRead godoc
// @Summary Mark an announcement read
// @Description Idempotent: marking twice is not an error
// @Tags announcements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /announcements/{id}/read [post]
func (h *AnnouncementHandler) MarkRead(c *gin.Context) {
	if h.announcementService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.announcementService.MarkRead(c.Request.Context(), c.Param("id"), identity); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark every addressed announcement read
// @Tags announcements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /announcements/read-all [post]
func (h *AnnouncementHandler) MarkAllRead(c *gin.Context) {
	if h.announcementService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	marked, err := h.announcementService.MarkAllRead(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"marked": marked}, nil)
}

// UnreadCount godoc
// @Summary Count unread announcements addressed to the caller
// @Tags announcements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /announcements/unread-count [get]
func (h *AnnouncementHandler) UnreadCount(c *gin.Context) {
	if h.announcementService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	count, err := h.announcementService.UnreadCount(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}

// Delete godoc
// @Summary Retract an announcement
// @Description Staff-only; connected clients receive a retraction event
// @Tags announcements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	if h.announcementService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.announcementService.Delete(c.Request.Context(), c.Param("id"), identity); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
