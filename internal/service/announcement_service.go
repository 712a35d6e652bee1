package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/campushq/helpdesk-api/internal/audience"
	"github.com/campushq/helpdesk-api/internal/models"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
)

type announcementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	ListForRecipient(ctx context.Context, userID string, role models.UserRole, unreadOnly bool) ([]models.Announcement, error)
	UnreadCount(ctx context.Context, userID string, role models.UserRole) (int, error)
	List(ctx context.Context, page, pageSize int) ([]models.Announcement, int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string, role models.UserRole) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// AnnouncementService handles announcement workflows and read tracking.
type AnnouncementService struct {
	repo      announcementRepository
	events    eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, events eventPublisher, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AnnouncementService{repo: repo, events: events, validator: validate, logger: logger}
	svc.validator.RegisterValidation("announcement_type", func(fl validator.FieldLevel) bool {
		return models.AnnouncementType(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("announcement_priority", func(fl validator.FieldLevel) bool {
		return models.AnnouncementPriority(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("announcement_target", func(fl validator.FieldLevel) bool {
		return models.AnnouncementTarget(fl.Field().String()).Valid()
	})
	return svc
}

// CreateAnnouncementRequest describes the create payload.
type CreateAnnouncementRequest struct {
	Title            string          `json:"title" validate:"required"`
	Content          string          `json:"content" validate:"required"`
	Type             string          `json:"type" validate:"required,announcement_type"`
	Priority         string          `json:"priority" validate:"required,announcement_priority"`
	Target           string          `json:"target" validate:"required,announcement_target"`
	TargetRoles      []string        `json:"target_roles"`
	TargetUserIDs    []string        `json:"target_user_ids"`
	RelatedRequestID *string         `json:"related_request_id"`
	CreatedBy        string          `json:"created_by" validate:"required"`
	CreatedByRole    models.UserRole `json:"created_by_role" validate:"required"`
}

// Create persists a new announcement and fans it out to connected recipients.
func (s *AnnouncementService) Create(ctx context.Context, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if err := ensureTargetSelection(req); err != nil {
		return nil, err
	}

	announcement := &models.Announcement{
		Title:            req.Title,
		Content:          req.Content,
		Type:             models.AnnouncementType(req.Type),
		Priority:         models.AnnouncementPriority(req.Priority),
		Target:           models.AnnouncementTarget(req.Target),
		CreatedBy:        req.CreatedBy,
		CreatedByRole:    req.CreatedByRole,
		RelatedRequestID: req.RelatedRequestID,
	}
	switch announcement.Target {
	case models.AnnouncementTargetRoles:
		announcement.TargetRoles = pq.StringArray(req.TargetRoles)
	case models.AnnouncementTargetUsers:
		announcement.TargetUserIDs = pq.StringArray(req.TargetUserIDs)
	}

	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.publish(models.NotificationEvent{
		Kind:         models.EventAnnouncementCreated,
		Announcement: announcement,
		Meta:         models.EventMeta{UpdatedBy: req.CreatedBy, ActorRole: req.CreatedByRole},
	})
	return announcement, nil
}

// Get returns an announcement. Non-staff callers only see announcements
// addressed to them; anything else reads as missing.
func (s *AnnouncementService) Get(ctx context.Context, id string, actor models.Identity) (*models.Announcement, error) {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() && !audience.IsRecipient(announcement, actor.UserID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	return announcement, nil
}

// ListForRecipient returns announcements addressed to the caller, newest
// first, optionally restricted to unread ones.
func (s *AnnouncementService) ListForRecipient(ctx context.Context, actor models.Identity, unreadOnly bool) ([]models.Announcement, error) {
	announcements, err := s.repo.ListForRecipient(ctx, actor.UserID, actor.Role, unreadOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, nil
}

// ListAll returns every announcement for the management view.
func (s *AnnouncementService) ListAll(ctx context.Context, page, pageSize int) ([]models.Announcement, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	announcements, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return announcements, pagination, nil
}

// UnreadCount returns the number of addressed-and-unread announcements. It is
// computed from the same membership predicate as ListForRecipient, so the
// badge count always matches the unread list length.
func (s *AnnouncementService) UnreadCount(ctx context.Context, actor models.Identity) (int, error) {
	count, err := s.repo.UnreadCount(ctx, actor.UserID, actor.Role)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread announcements")
	}
	return count, nil
}

// MarkRead records that the caller has read the announcement. Marking an
// already-read announcement is a no-op, never an error.
func (s *AnnouncementService) MarkRead(ctx context.Context, id string, actor models.Identity) error {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !audience.IsRecipient(announcement, actor.UserID, actor.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "announcement is not addressed to caller")
	}
	if announcement.ReadByUser(actor.UserID) {
		return nil
	}
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark announcement read")
	}
	return nil
}

// MarkAllRead marks every announcement addressed to the caller as read and
// returns how many were newly marked.
func (s *AnnouncementService) MarkAllRead(ctx context.Context, actor models.Identity) (int64, error) {
	marked, err := s.repo.MarkAllRead(ctx, actor.UserID, actor.Role)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark announcements read")
	}
	return marked, nil
}

// Delete removes an announcement and pushes a retraction to all connected
// clients, so consumers can drop it from any view that showed it.
func (s *AnnouncementService) Delete(ctx context.Context, id string, actor models.Identity) error {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}

	s.publish(models.NotificationEvent{
		Kind:         models.EventAnnouncementDeleted,
		Announcement: announcement,
		Meta:         models.EventMeta{DeletedBy: actor.UserID, ActorRole: actor.Role},
	})
	return nil
}

func (s *AnnouncementService) load(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *AnnouncementService) publish(ev models.NotificationEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(ev)
}

// ensureTargetSelection enforces the target invariant: a role-targeted
// announcement names at least one valid role, a user-targeted one names at
// least one user id.
func ensureTargetSelection(req CreateAnnouncementRequest) error {
	switch models.AnnouncementTarget(req.Target) {
	case models.AnnouncementTargetRoles:
		if len(req.TargetRoles) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "target_roles required for roles target")
		}
		for _, role := range req.TargetRoles {
			switch models.UserRole(role) {
			case models.RoleStudent, models.RoleTeam, models.RoleManager, models.RoleAdmin:
			default:
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q in target_roles", role))
			}
		}
	case models.AnnouncementTargetUsers:
		if len(req.TargetUserIDs) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "target_user_ids required for users target")
		}
	}
	return nil
}
