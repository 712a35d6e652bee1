package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/helpdesk-api/internal/models"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
)

type requestRepository interface {
	Create(ctx context.Context, req *models.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*models.ServiceRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.ServiceRequest, int, error)
	UpdateFields(ctx context.Context, id string, patch models.RequestPatch) (*models.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus, notes string) (*models.ServiceRequest, error)
	SoftDelete(ctx context.Context, id, actor string) (*models.ServiceRequest, error)
}

type categoryChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type eventPublisher interface {
	Publish(ev models.NotificationEvent)
}

// statusAnnouncer is the announcement-creation entry point used by the
// status-change workflow. The announcement goes through the same path as a
// hand-written one, so it is persisted, read-trackable, and fanned out like
// any other.
type statusAnnouncer interface {
	Create(ctx context.Context, req CreateAnnouncementRequest) (*models.Announcement, error)
}

// RequestService handles the service-request lifecycle.
type RequestService struct {
	repo       requestRepository
	categories categoryChecker
	events     eventPublisher
	announcer  statusAnnouncer
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewRequestService constructs the service.
func NewRequestService(repo requestRepository, categories categoryChecker, events eventPublisher, announcer statusAnnouncer, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RequestService{
		repo:       repo,
		categories: categories,
		events:     events,
		announcer:  announcer,
		validator:  validate,
		logger:     logger,
	}
	svc.validator.RegisterValidation("request_priority", func(fl validator.FieldLevel) bool {
		return models.RequestPriority(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("request_status", func(fl validator.FieldLevel) bool {
		return models.RequestStatus(fl.Field().String()).Valid()
	})
	return svc
}

// CreateRequestRequest describes the create payload.
type CreateRequestRequest struct {
	Category      string  `json:"category" validate:"required"`
	Description   string  `json:"description" validate:"required"`
	Priority      string  `json:"priority" validate:"omitempty,request_priority"`
	StudentID     string  `json:"student_id"`
	StudentName   *string `json:"student_name"`
	AttachmentURL *string `json:"attachment_url"`
}

// ListRequestsRequest describes list filters.
type ListRequestsRequest struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Category string `json:"category"`
	Search   string `json:"search"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// UpdateStatusRequest describes a lifecycle transition.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,request_status"`
	Note   string `json:"note"`
}

// Create registers a new request. Students always file for themselves; staff
// may file on a student's behalf by naming the student id.
func (s *RequestService) Create(ctx context.Context, req CreateRequestRequest, actor models.Identity) (*models.ServiceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if err := s.ensureCategory(ctx, req.Category); err != nil {
		return nil, err
	}
	if req.Priority == "" {
		req.Priority = string(models.RequestPriorityMedium)
	}

	studentID := req.StudentID
	if actor.Role == models.RoleStudent {
		studentID = actor.UserID
	}

	request := &models.ServiceRequest{
		Category:      req.Category,
		Description:   req.Description,
		Priority:      models.RequestPriority(req.Priority),
		Status:        models.RequestStatusPending,
		StudentName:   req.StudentName,
		AttachmentURL: req.AttachmentURL,
		CreatedBy:     actor.UserID,
	}
	if studentID != "" {
		request.StudentID = &studentID
	}
	if request.StudentName == nil && actor.Role == models.RoleStudent && actor.Name != "" {
		name := actor.Name
		request.StudentName = &name
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.publish(models.NotificationEvent{
		Kind:    models.EventRequestCreated,
		Request: request,
		Meta:    models.EventMeta{UpdatedBy: actor.UserID, ActorRole: actor.Role},
	})
	return request, nil
}

// Get returns a request. Students only see their own requests; an id that
// belongs to someone else behaves exactly like a missing one.
func (s *RequestService) Get(ctx context.Context, id string, actor models.Identity) (*models.ServiceRequest, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && request.OwnerID() != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return request, nil
}

// List returns matching requests with pagination. Student callers are scoped
// to their own requests regardless of the submitted filter.
func (s *RequestService) List(ctx context.Context, req ListRequestsRequest, actor models.Identity) ([]models.ServiceRequest, *models.Pagination, error) {
	filter := models.RequestFilter{
		Category: req.Category,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Status != "" {
		status := models.RequestStatus(req.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
		}
		filter.Status = &status
	}
	if req.Priority != "" {
		priority := models.RequestPriority(req.Priority)
		if !priority.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", req.Priority))
		}
		filter.Priority = &priority
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return requests, pagination, nil
}

// Update applies a partial field update. A resolved request rejects any patch
// that carries a status field, including one restating "resolved".
func (s *RequestService) Update(ctx context.Context, id string, patch models.RequestPatch, actor models.Identity) (*models.ServiceRequest, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if (patch.Status != nil || patch.AdminNotes != nil) && !actor.Role.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may change status or admin notes")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && existing.OwnerID() != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	if patch.Status != nil && existing.Status == models.RequestStatusResolved {
		return nil, appErrors.Clone(appErrors.ErrRequestResolved, "")
	}

	updated, err := s.repo.UpdateFields(ctx, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The pre-read raced a concurrent resolve or delete; reclassify
			// from current state.
			return nil, s.classifyConditionalMiss(ctx, id, patch.Status != nil)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}

	if patch.Status != nil && updated.Status != existing.Status {
		s.publish(models.NotificationEvent{
			Kind:    models.EventRequestStatusChanged,
			Request: updated,
			Meta: models.EventMeta{
				OldStatus: existing.Status,
				NewStatus: updated.Status,
				UpdatedBy: actor.UserID,
				ActorRole: actor.Role,
			},
		})
		s.announceStatusChange(ctx, updated, actor)
		return updated, nil
	}

	s.publish(models.NotificationEvent{
		Kind:    models.EventRequestUpdated,
		Request: updated,
		Meta:    models.EventMeta{UpdatedBy: actor.UserID, ActorRole: actor.Role},
	})
	return updated, nil
}

// UpdateStatus transitions the lifecycle state. The terminal state is
// enforced twice: here against the loaded row, and inside the conditional
// write for whatever committed in between.
func (s *RequestService) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest, actor models.Identity) (*models.ServiceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !actor.Role.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may change request status")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.RequestStatusResolved {
		return nil, appErrors.Clone(appErrors.ErrRequestResolved, "")
	}

	updated, err := s.repo.UpdateStatus(ctx, id, models.RequestStatus(req.Status), req.Note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyConditionalMiss(ctx, id, true)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}

	s.publish(models.NotificationEvent{
		Kind:    models.EventRequestStatusChanged,
		Request: updated,
		Meta: models.EventMeta{
			OldStatus: existing.Status,
			NewStatus: updated.Status,
			UpdatedBy: actor.UserID,
			ActorRole: actor.Role,
		},
	})
	s.announceStatusChange(ctx, updated, actor)
	return updated, nil
}

// Delete soft-deletes a request. The row stays in storage for the audit view
// but disappears from every list, count, and detail read.
func (s *RequestService) Delete(ctx context.Context, id string, actor models.Identity) error {
	if !actor.Role.IsStaff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff may delete requests")
	}

	deleted, err := s.repo.SoftDelete(ctx, id, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}

	s.publish(models.NotificationEvent{
		Kind:    models.EventRequestDeleted,
		Request: deleted,
		Meta:    models.EventMeta{DeletedBy: actor.UserID, ActorRole: actor.Role},
	})
	return nil
}

// announceStatusChange runs the status-change announcement workflow: a team
// member updating a request with a known owner produces a targeted
// request-update announcement for that owner. Announcement failure never
// fails the status update; the transition has already committed.
func (s *RequestService) announceStatusChange(ctx context.Context, request *models.ServiceRequest, actor models.Identity) {
	if s.announcer == nil || actor.Role != models.RoleTeam {
		return
	}
	owner := request.OwnerID()
	if owner == "" {
		return
	}

	priority := models.AnnouncementPriorityMedium
	if request.Status == models.RequestStatusResolved {
		priority = models.AnnouncementPriorityHigh
	}
	relatedID := request.ID
	_, err := s.announcer.Create(ctx, CreateAnnouncementRequest{
		Title:            fmt.Sprintf("Update on your %s request", request.Category),
		Content:          fmt.Sprintf("Your %s request is now %s.", request.Category, request.Status),
		Type:             string(models.AnnouncementTypeRequestUpdate),
		Priority:         string(priority),
		Target:           string(models.AnnouncementTargetUsers),
		TargetUserIDs:    []string{owner},
		RelatedRequestID: &relatedID,
		CreatedBy:        actor.UserID,
		CreatedByRole:    actor.Role,
	})
	if err != nil {
		s.logger.Warn("status-change announcement failed",
			zap.String("request_id", request.ID),
			zap.Error(err))
	}
}

func (s *RequestService) ensureCategory(ctx context.Context, slug string) error {
	if s.categories == nil {
		return nil
	}
	exists, err := s.categories.SlugExists(ctx, slug)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check category")
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", slug))
	}
	return nil
}

func (s *RequestService) load(ctx context.Context, id string) (*models.ServiceRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// classifyConditionalMiss explains a guarded write that matched no row:
// either the request vanished, or it reached the terminal state first.
func (s *RequestService) classifyConditionalMiss(ctx context.Context, id string, touchedStatus bool) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	if touchedStatus && current.Status == models.RequestStatusResolved {
		return appErrors.Clone(appErrors.ErrRequestResolved, "")
	}
	return appErrors.Clone(appErrors.ErrNotFound, "request not found")
}

func validatePatch(patch models.RequestPatch) error {
	if patch.Category == nil && patch.Description == nil && patch.Priority == nil &&
		patch.Status == nil && patch.StudentName == nil && patch.AttachmentURL == nil &&
		patch.AdminNotes == nil {
		return appErrors.Clone(appErrors.ErrValidation, "empty patch")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", *patch.Priority))
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", *patch.Status))
	}
	return nil
}

func (s *RequestService) publish(ev models.NotificationEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(ev)
}
