package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campushq/helpdesk-api/internal/audience"
	"github.com/campushq/helpdesk-api/internal/models"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
)

type announcementRepoStub struct {
	announcements map[string]*models.Announcement
}

func newAnnouncementRepoStub() *announcementRepoStub {
	return &announcementRepoStub{announcements: make(map[string]*models.Announcement)}
}

func (s *announcementRepoStub) Create(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = fmt.Sprintf("ann-%d", len(s.announcements)+1)
	}
	if a.ReadBy == nil {
		a.ReadBy = []string{}
	}
	a.CreatedAt = time.Now().UTC()
	stored := *a
	s.announcements[a.ID] = &stored
	return nil
}

func (s *announcementRepoStub) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	a, ok := s.announcements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (s *announcementRepoStub) ListForRecipient(ctx context.Context, userID string, role models.UserRole, unreadOnly bool) ([]models.Announcement, error) {
	result := make([]models.Announcement, 0, len(s.announcements))
	for _, a := range s.announcements {
		if !audience.IsRecipient(a, userID, role) {
			continue
		}
		if unreadOnly && a.ReadByUser(userID) {
			continue
		}
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *announcementRepoStub) UnreadCount(ctx context.Context, userID string, role models.UserRole) (int, error) {
	count := 0
	for _, a := range s.announcements {
		if audience.IsRecipient(a, userID, role) && !a.ReadByUser(userID) {
			count++
		}
	}
	return count, nil
}

func (s *announcementRepoStub) List(ctx context.Context, page, pageSize int) ([]models.Announcement, int, error) {
	result := make([]models.Announcement, 0, len(s.announcements))
	for _, a := range s.announcements {
		result = append(result, *a)
	}
	return result, len(result), nil
}

func (s *announcementRepoStub) MarkRead(ctx context.Context, id, userID string) error {
	a, ok := s.announcements[id]
	if !ok {
		return sql.ErrNoRows
	}
	if !a.ReadByUser(userID) {
		a.ReadBy = append(a.ReadBy, userID)
	}
	return nil
}

func (s *announcementRepoStub) MarkAllRead(ctx context.Context, userID string, role models.UserRole) (int64, error) {
	var marked int64
	for _, a := range s.announcements {
		if audience.IsRecipient(a, userID, role) && !a.ReadByUser(userID) {
			a.ReadBy = append(a.ReadBy, userID)
			marked++
		}
	}
	return marked, nil
}

func (s *announcementRepoStub) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := s.announcements[id]; !ok {
		return 0, nil
	}
	delete(s.announcements, id)
	return 1, nil
}

func newAnnouncementServiceForTest() (*AnnouncementService, *announcementRepoStub, *publisherStub) {
	repo := newAnnouncementRepoStub()
	events := &publisherStub{}
	svc := NewAnnouncementService(repo, events, nil, nil)
	return svc, repo, events
}

func adminAnnouncement(target models.AnnouncementTarget, roles, users []string) CreateAnnouncementRequest {
	return CreateAnnouncementRequest{
		Title:         "Scheduled maintenance",
		Content:       "Portal offline Saturday night.",
		Type:          string(models.AnnouncementTypeNotice),
		Priority:      string(models.AnnouncementPriorityMedium),
		Target:        string(target),
		TargetRoles:   roles,
		TargetUserIDs: users,
		CreatedBy:     "admin-1",
		CreatedByRole: models.RoleAdmin,
	}
}

func TestAnnouncementServiceCreateTargetInvariant(t *testing.T) {
	svc, _, events := newAnnouncementServiceForTest()

	_, err := svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetRoles, nil, nil))
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetUsers, nil, nil))
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetRoles, []string{"wizard"}, nil))
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	created, err := svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetRoles, []string{"student"}, nil))
	require.NoError(t, err)
	require.Equal(t, models.AnnouncementTargetRoles, created.Target)
	require.Len(t, events.events, 1)
	require.Equal(t, models.EventAnnouncementCreated, events.events[0].Kind)
}

func TestAnnouncementServiceCreateAllTargetDropsSelectors(t *testing.T) {
	svc, _, _ := newAnnouncementServiceForTest()

	created, err := svc.Create(context.Background(),
		adminAnnouncement(models.AnnouncementTargetAll, []string{"student"}, []string{"user-1"}))
	require.NoError(t, err)
	require.Empty(t, created.TargetRoles)
	require.Empty(t, created.TargetUserIDs)
}

func TestAnnouncementServiceMarkReadIdempotent(t *testing.T) {
	svc, repo, _ := newAnnouncementServiceForTest()

	created, err := svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetAll, nil, nil))
	require.NoError(t, err)

	reader := models.Identity{UserID: "student-1", Role: models.RoleStudent}
	require.NoError(t, svc.MarkRead(context.Background(), created.ID, reader))
	require.NoError(t, svc.MarkRead(context.Background(), created.ID, reader))

	stored := repo.announcements[created.ID]
	require.Equal(t, []string{"student-1"}, []string(stored.ReadBy))

	count, err := svc.UnreadCount(context.Background(), reader)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAnnouncementServiceMarkReadRequiresAddressing(t *testing.T) {
	svc, _, _ := newAnnouncementServiceForTest()

	created, err := svc.Create(context.Background(),
		adminAnnouncement(models.AnnouncementTargetUsers, nil, []string{"student-2"}))
	require.NoError(t, err)

	err = svc.MarkRead(context.Background(), created.ID, models.Identity{UserID: "student-1", Role: models.RoleStudent})
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	err = svc.MarkRead(context.Background(), "ann-404", models.Identity{UserID: "student-1", Role: models.RoleStudent})
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAnnouncementServiceUnreadCountMatchesList(t *testing.T) {
	svc, _, _ := newAnnouncementServiceForTest()
	reader := models.Identity{UserID: "student-1", Role: models.RoleStudent}

	_, err := svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetAll, nil, nil))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetRoles, []string{"student"}, nil))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetUsers, nil, []string{"student-1"}))
	require.NoError(t, err)
	// Addressed to someone else; never counted for the reader.
	_, err = svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetRoles, []string{"team"}, nil))
	require.NoError(t, err)

	unread, err := svc.ListForRecipient(context.Background(), reader, true)
	require.NoError(t, err)
	count, err := svc.UnreadCount(context.Background(), reader)
	require.NoError(t, err)
	require.Equal(t, len(unread), count)
	require.Equal(t, 3, count)

	require.NoError(t, svc.MarkRead(context.Background(), unread[0].ID, reader))
	unread, err = svc.ListForRecipient(context.Background(), reader, true)
	require.NoError(t, err)
	count, err = svc.UnreadCount(context.Background(), reader)
	require.NoError(t, err)
	require.Equal(t, len(unread), count)
	require.Equal(t, 2, count)
}

func TestAnnouncementServiceMarkAllRead(t *testing.T) {
	svc, _, _ := newAnnouncementServiceForTest()
	reader := models.Identity{UserID: "student-1", Role: models.RoleStudent}

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetAll, nil, nil))
		require.NoError(t, err)
	}

	marked, err := svc.MarkAllRead(context.Background(), reader)
	require.NoError(t, err)
	require.EqualValues(t, 3, marked)

	count, err := svc.UnreadCount(context.Background(), reader)
	require.NoError(t, err)
	require.Zero(t, count)

	// Second pass finds nothing left to mark.
	marked, err = svc.MarkAllRead(context.Background(), reader)
	require.NoError(t, err)
	require.Zero(t, marked)
}

func TestAnnouncementServiceDeleteEmitsRetraction(t *testing.T) {
	svc, _, events := newAnnouncementServiceForTest()

	created, err := svc.Create(context.Background(), adminAnnouncement(models.AnnouncementTargetAll, nil, nil))
	require.NoError(t, err)

	admin := models.Identity{UserID: "admin-1", Role: models.RoleAdmin}
	require.NoError(t, svc.Delete(context.Background(), created.ID, admin))

	last := events.events[len(events.events)-1]
	require.Equal(t, models.EventAnnouncementDeleted, last.Kind)
	require.NotNil(t, last.Announcement)
	require.Equal(t, created.ID, last.Announcement.ID)
	require.Equal(t, "admin-1", last.Meta.DeletedBy)

	err = svc.Delete(context.Background(), created.ID, admin)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAnnouncementServiceGetHidesUnaddressed(t *testing.T) {
	svc, _, _ := newAnnouncementServiceForTest()

	created, err := svc.Create(context.Background(),
		adminAnnouncement(models.AnnouncementTargetUsers, nil, []string{"student-2"}))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), created.ID, models.Identity{UserID: "student-1", Role: models.RoleStudent})
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	got, err := svc.Get(context.Background(), created.ID, models.Identity{UserID: "team-1", Role: models.RoleTeam})
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}
