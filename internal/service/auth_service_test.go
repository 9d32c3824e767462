package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ayandah-api/internal/models"
	"github.com/noah-isme/ayandah-api/internal/repository"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
)

type mockAuthRepo struct {
	users           map[string]*models.User
	phones          map[string]bool
	findByEmailErr  error
	existsErr       error
	createErr       error
	created         []*models.User
	refreshTokens   map[string]*models.RefreshToken
	revokedForUsers []string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]*models.User),
		phones:        make(map[string]bool),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) addUser(u *models.User) {
	m.users[u.Email] = u
	m.phones[u.Phone] = true
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.users[email]
	return ok, nil
}

func (m *mockAuthRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.phones[phone], nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "generated-id"
	m.created = append(m.created, user)
	m.addUser(user)
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedForUsers = append(m.revokedForUsers, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
}

func seedUser(t *testing.T, repo *mockAuthRepo, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{ID: "u1", Email: "ada@example.com", PasswordHash: string(hash), FirstName: "Ada", LastName: "Lovelace", Phone: "+2348000000000", Role: models.RoleUser}
	repo.addUser(u)
	return u
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "password")
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "  ADA@example.com ", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, "Ada", res.User.FirstName)
	assert.Len(t, repo.refreshTokens, 1)
}

func TestAuthServiceLoginInvalidCredentials(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "password")
	svc := newTestAuthService(repo)

	_, wrongPassword := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "nope"})
	_, unknownEmail := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})

	for _, err := range []error{wrongPassword, unknownEmail} {
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, 401, appErr.Status)
		assert.Equal(t, "Invalid credentials", appErr.Message)
	}
	assert.Empty(t, repo.refreshTokens)
}

func TestAuthServiceLoginMissingFields(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "Email and password are required", appErr.Message)
}

func TestAuthServiceLoginRepositoryFailure(t *testing.T) {
	repo := newMockAuthRepo()
	repo.findByEmailErr = errors.New("connection refused")
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	assert.Equal(t, 500, appErrors.FromError(err).Status)
}

func TestAuthServiceLoginSingleSessionRevokesPrevious(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "password")
	svc := newTestAuthService(repo)
	svc.config.SingleSession = true

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, repo.revokedForUsers)
}

func TestAuthServiceRegisterSuccess(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "Grace@Example.com", Password: "secret1", FirstName: "Grace", LastName: "Hopper", Phone: "+15550001",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated-id", res.User.ID)
	assert.Equal(t, "grace@example.com", res.User.Email)

	require.Len(t, repo.created, 1)
	stored := repo.created[0]
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, PasswordCost, cost)
}

func TestAuthServiceRegisterMissingFields(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@b.co", Password: "secret1", FirstName: "A"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "Missing required fields", appErr.Message)
	assert.Empty(t, repo.created)
}

func TestAuthServiceRegisterDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		req     models.RegisterRequest
		message string
	}{
		{
			name:    "email",
			req:     models.RegisterRequest{Email: "ada@example.com", Password: "secret1", FirstName: "A", LastName: "B", Phone: "+1999"},
			message: "Email already in use",
		},
		{
			name:    "phone",
			req:     models.RegisterRequest{Email: "new@example.com", Password: "secret1", FirstName: "A", LastName: "B", Phone: "+2348000000000"},
			message: "Phone number already in use",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockAuthRepo()
			seedUser(t, repo, "password")
			svc := newTestAuthService(repo)

			_, err := svc.Register(context.Background(), tc.req)
			appErr := appErrors.FromError(err)
			assert.Equal(t, 400, appErr.Status)
			assert.Equal(t, tc.message, appErr.Message)
			assert.Empty(t, repo.created)
		})
	}
}

func TestAuthServiceRegisterRaceMapsConstraint(t *testing.T) {
	repo := newMockAuthRepo()
	repo.createErr = &repository.UniqueViolationError{Constraint: repository.ConstraintUsersPhone, Err: errors.New("duplicate")}
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "x@example.com", Password: "secret1", FirstName: "X", LastName: "Y", Phone: "+1"})
	assert.True(t, errors.Is(err, appErrors.ErrPhoneTaken))
}

func TestAuthServiceRefreshRotates(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "password")
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo)

	res, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshRejectsRevoked(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "password")
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour), Revoked: true}
	svc := newTestAuthService(repo)

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.Equal(t, 401, appErrors.FromError(err).Status)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo)

	err := svc.Logout(context.Background(), "token", "someone-else")
	assert.Equal(t, 403, appErrors.FromError(err).Status)

	require.NoError(t, svc.Logout(context.Background(), "token", "u1"))
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceMe(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "password")
	svc := newTestAuthService(repo)

	info, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", info.Email)

	_, err = svc.Me(context.Background(), "missing")
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = svc.ValidateToken(token + "x")
	assert.Error(t, err)
}
