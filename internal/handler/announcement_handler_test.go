package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campushq/helpdesk-api/internal/models"
	"github.com/campushq/helpdesk-api/internal/service"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
)

type fakeAnnouncementSrv struct {
	created    *models.Announcement
	createErr  error
	lastCreate service.CreateAnnouncementRequest

	listResp   []models.Announcement
	lastUnread bool

	unreadCount int
	markReadErr error
	markedAll   int64
	deleteErr   error
}

func (f *fakeAnnouncementSrv) Create(_ context.Context, req service.CreateAnnouncementRequest) (*models.Announcement, error) {
	f.lastCreate = req
	return f.created, f.createErr
}

func (f *fakeAnnouncementSrv) Get(context.Context, string, models.Identity) (*models.Announcement, error) {
	return f.created, f.createErr
}

func (f *fakeAnnouncementSrv) ListForRecipient(_ context.Context, _ models.Identity, unreadOnly bool) ([]models.Announcement, error) {
	f.lastUnread = unreadOnly
	return f.listResp, nil
}

func (f *fakeAnnouncementSrv) ListAll(context.Context, int, int) ([]models.Announcement, *models.Pagination, error) {
	return f.listResp, nil, nil
}

func (f *fakeAnnouncementSrv) UnreadCount(context.Context, models.Identity) (int, error) {
	return f.unreadCount, nil
}

func (f *fakeAnnouncementSrv) MarkRead(context.Context, string, models.Identity) error {
	return f.markReadErr
}

func (f *fakeAnnouncementSrv) MarkAllRead(context.Context, models.Identity) (int64, error) {
	return f.markedAll, nil
}

func (f *fakeAnnouncementSrv) Delete(context.Context, string, models.Identity) error {
	return f.deleteErr
}

func TestAnnouncementHandlerCreateStampsAuthor(t *testing.T) {
	fake := &fakeAnnouncementSrv{created: &models.Announcement{ID: "ann-1"}}
	h := NewAnnouncementHandler(fake)

	c, rec := testContext(t, http.MethodPost, "/announcements",
		`{"title":"Maintenance","content":"Power off Saturday","type":"notice","priority":"medium","target":"all","created_by":"spoofed","created_by_role":"student"}`)
	authenticate(c, "manager-1", models.RoleManager)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	// The author always comes from the token, never the payload.
	assert.Equal(t, "manager-1", fake.lastCreate.CreatedBy)
	assert.Equal(t, models.RoleManager, fake.lastCreate.CreatedByRole)
}

func TestAnnouncementHandlerListUnreadFilter(t *testing.T) {
	fake := &fakeAnnouncementSrv{}
	h := NewAnnouncementHandler(fake)

	c, rec := testContext(t, http.MethodGet, "/announcements?unread=true", "")
	authenticate(c, "student-1", models.RoleStudent)

	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fake.lastUnread)
}

func TestAnnouncementHandlerUnreadCount(t *testing.T) {
	fake := &fakeAnnouncementSrv{unreadCount: 4}
	h := NewAnnouncementHandler(fake)

	c, rec := testContext(t, http.MethodGet, "/announcements/unread-count", "")
	authenticate(c, "student-1", models.RoleStudent)

	h.UnreadCount(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var data map[string]int
	assert.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, 4, data["unread"])
}

func TestAnnouncementHandlerMarkReadForbidden(t *testing.T) {
	fake := &fakeAnnouncementSrv{markReadErr: appErrors.ErrForbidden}
	h := NewAnnouncementHandler(fake)

	c, rec := testContext(t, http.MethodPost, "/announcements/ann-1/read", "")
	c.Params = gin.Params{{Key: "id", Value: "ann-1"}}
	authenticate(c, "student-1", models.RoleStudent)

	h.MarkRead(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnnouncementHandlerMarkAllRead(t *testing.T) {
	fake := &fakeAnnouncementSrv{markedAll: 3}
	h := NewAnnouncementHandler(fake)

	c, rec := testContext(t, http.MethodPost, "/announcements/read-all", "")
	authenticate(c, "student-1", models.RoleStudent)

	h.MarkAllRead(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var data map[string]int64
	assert.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, int64(3), data["marked"])
}

func TestAnnouncementHandlerRequiresAuth(t *testing.T) {
	h := NewAnnouncementHandler(&fakeAnnouncementSrv{})

	c, rec := testContext(t, http.MethodGet, "/announcements", "")

	h.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
