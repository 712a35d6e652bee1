package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/helpdesk-api/internal/service"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
	"github.com/campushq/helpdesk-api/pkg/response"
)

// CategoryHandler serves request-category endpoints.
type CategoryHandler struct {
	categoryService *service.CategoryService
}

func NewCategoryHandler(categoryService *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// List godoc
// @Summary List request categories
// @Description Public; only staff callers see inactive categories
// @Tags categories
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.Category}
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	if h.categoryService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	// Anonymous callers get the active set only.
	identity, _ := identityFromContext(c)

	categories, err := h.categoryService.List(c.Request.Context(), !identity.Role.IsStaff())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Create godoc
// @Summary Create a request category
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateCategoryRequest true "Category"
// @Success 201 {object} response.Envelope{data=models.Category}
// @Failure 409 {object} response.Envelope
// @Router /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	if h.categoryService == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}

	var req service.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload"))
		return
	}

	created, err := h.categoryService.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}
