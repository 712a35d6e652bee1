package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campushq/helpdesk-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "category", "description", "priority", "status",
		"student_id", "student_name", "attachment_url", "admin_notes",
		"resolved_at", "created_by", "deleted_by", "deleted_at",
		"created_at", "updated_at",
	})
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO service_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	studentID := "student-1"
	req := &models.ServiceRequest{
		Category:    "it-support",
		Description: "wifi down in dorm 4",
		Priority:    models.RequestPriorityHigh,
		Status:      models.RequestStatusPending,
		StudentID:   &studentID,
		CreatedBy:   "student-1",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)

	rows := requestRows().
		AddRow(req.ID, "it-support", "wifi down in dorm 4", "high", "pending",
			"student-1", nil, nil, "", nil, "student-1", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, category, description")).
		WithArgs(req.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, req.ID, found.ID)
	require.Equal(t, models.RequestStatusPending, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetByIDExcludesDeleted(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("deleted_at IS NULL")).
		WithArgs("req-gone").
		WillReturnRows(requestRows())

	_, err := repo.GetByID(context.Background(), "req-gone")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	status := models.RequestStatusPending
	rows := requestRows().
		AddRow("req-1", "it-support", "wifi down", "medium", "pending",
			"student-1", nil, nil, "", nil, "student-1", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, category, description")).
		WithArgs("pending", "%wifi%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM service_requests")).
		WithArgs("pending", "%wifi%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.RequestFilter{
		Status: &status,
		Search: "wifi",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	now := time.Now()
	rows := requestRows().
		AddRow("req-1", "it-support", "wifi down", "medium", "resolved",
			"student-1", nil, nil, "replaced the access point", now, "student-1", nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("status <> 'resolved'")).
		WithArgs("resolved", "replaced the access point", "req-1").
		WillReturnRows(rows)

	updated, err := repo.UpdateStatus(context.Background(), "req-1", models.RequestStatusResolved, "replaced the access point")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatusGuardBlocksTerminal(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("status <> 'resolved'")).
		WithArgs("in-progress", "", "req-1").
		WillReturnRows(requestRows())

	_, err := repo.UpdateStatus(context.Background(), "req-1", models.RequestStatusInProgress, "")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateFieldsGuardsStatus(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	status := models.RequestStatusInProgress
	mock.ExpectQuery(regexp.QuoteMeta("AND status <> 'resolved' RETURNING")).
		WithArgs("in-progress", "req-1").
		WillReturnRows(requestRows())

	_, err := repo.UpdateFields(context.Background(), "req-1", models.RequestPatch{Status: &status})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateFieldsWithoutStatusSkipsGuard(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	description := "wifi down, now affecting dorm 5 too"
	now := time.Now()
	rows := requestRows().
		AddRow("req-1", "it-support", description, "medium", "pending",
			"student-1", nil, nil, "", nil, "student-1", nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE service_requests SET")).
		WithArgs(description, "req-1").
		WillReturnRows(rows)

	updated, err := repo.UpdateFields(context.Background(), "req-1", models.RequestPatch{Description: &description})
	require.NoError(t, err)
	require.Equal(t, description, updated.Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	now := time.Now()
	rows := requestRows().
		AddRow("req-1", "it-support", "wifi down", "medium", "pending",
			"student-1", nil, nil, "", nil, "student-1", "admin-1", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SET deleted_by = $1, deleted_at = NOW()")).
		WithArgs("admin-1", "req-1").
		WillReturnRows(rows)

	deleted, err := repo.SoftDelete(context.Background(), "req-1", "admin-1")
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)
	require.NotNil(t, deleted.DeletedBy)
	require.Equal(t, "admin-1", *deleted.DeletedBy)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta("SET deleted_by = $1, deleted_at = NOW()")).
		WithArgs("admin-1", "req-1").
		WillReturnRows(requestRows())
	_, err = repo.SoftDelete(context.Background(), "req-1", "admin-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
