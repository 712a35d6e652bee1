package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/campushq/helpdesk-api/internal/models"
	"github.com/campushq/helpdesk-api/internal/service"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
	"github.com/campushq/helpdesk-api/pkg/response"
)

// ExportHandler serves asynchronous request-ledger exports.
type ExportHandler struct {
	exportService *service.ExportService
}

func NewExportHandler(exportService *service.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// EnqueueExportRequest is the export request payload.
type EnqueueExportRequest struct {
	Format   string `json:"format" binding:"required"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Category string `json:"category"`
	Search   string `json:"search"`
}

// Enqueue godoc
// @Summary Queue a request-ledger export
// @Description Returns a pending job; poll the job endpoint for the download link
// @Tags exports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body EnqueueExportRequest true "Export options"
// @Success 202 {object} response.Envelope{data=models.ExportJob}
// @Failure 400 {object} response.Envelope
// @Router /exports/requests [post]
func (h *ExportHandler) Enqueue(c *gin.Context) {
	if h.exportService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req EnqueueExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload"))
		return
	}

	filter := models.RequestFilter{Category: req.Category, Search: req.Search}
	if req.Status != "" {
		status := models.RequestStatus(req.Status)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status)))
			return
		}
		filter.Status = &status
	}
	if req.Priority != "" {
		priority := models.RequestPriority(req.Priority)
		if !priority.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", req.Priority)))
			return
		}
		filter.Priority = &priority
	}

	job, err := h.exportService.Enqueue(models.ExportFormat(req.Format), identity.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Job godoc
// @Summary Export job status
// @Tags exports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope{data=models.ExportJob}
// @Failure 404 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Job(c *gin.Context) {
	if h.exportService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}

	job, err := h.exportService.Job(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export
// @Description Authenticated by the signature embedded in the download URL
// @Tags exports
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Param sig query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /exports/{id}/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.exportService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}

	jobID, relPath, err := h.exportService.ParseToken(c.Query("sig"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if jobID != c.Param("id") {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "signature does not match job"))
		return
	}

	file, err := h.exportService.Open(relPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	filename := filepath.Base(relPath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", contentTypeForExport(filename))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

func contentTypeForExport(filename string) string {
	switch filepath.Ext(filename) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
