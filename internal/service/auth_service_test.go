package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushq/helpdesk-api/internal/models"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
)

type userRepoStub struct {
	users map[string]*models.User
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func newAuthServiceForTest(t *testing.T) (*AuthService, *userRepoStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &userRepoStub{users: map[string]*models.User{
		"user-1": {
			ID:           "user-1",
			Email:        "rivera@campus.edu",
			PasswordHash: string(hash),
			FullName:     "Sam Rivera",
			Role:         models.RoleStudent,
			Active:       true,
		},
		"user-2": {
			ID:           "user-2",
			Email:        "dormant@campus.edu",
			PasswordHash: string(hash),
			FullName:     "Dormant Account",
			Role:         models.RoleTeam,
			Active:       false,
		},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "campus-helpdesk",
	})
	return svc, repo
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "rivera@campus.edu",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.TokenType)
	require.NotEmpty(t, resp.AccessToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, models.RoleStudent, claims.Role)
	require.Equal(t, "Sam Rivera", claims.Identity().Name)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "rivera@campus.edu",
		Password: "wrong",
	})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@campus.edu",
		Password: "correct horse",
	})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginRejectsInactiveAccount(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dormant@campus.edu",
		Password: "correct horse",
	})
	require.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)
	other := NewAuthService(&userRepoStub{}, nil, nil, AuthConfig{Secret: "other-secret", Expiration: time.Hour})

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "rivera@campus.edu",
		Password: "correct horse",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
