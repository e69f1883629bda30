package services_test

import (
	"context"
	"testing"
	"time"

	"dealhub/internal/models"
	"dealhub/internal/repositories"
	"dealhub/internal/revocation"
	"dealhub/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, nil, testJWTSecret, 200*time.Hour)

	user := &models.User{
		ID:       42,
		Email:    "test@example.com",
		Username: "testuser",
		Password: hashed(t, "Password123"),
		Avatar:   "seed-1",
	}

	// Successful login
	mockRepo.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
	token, err := authService.Authenticate(ctx, models.Credentials{Email: user.Email, Password: "Password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims := &models.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "HS256", parsed.Method.Alg())
	assert.Equal(t, uint(42), claims.ID)
	assert.Equal(t, "testuser", claims.Username)
	assert.Equal(t, "seed-1", claims.Avatar)
	assert.Equal(t, int64(200*time.Hour/time.Second), claims.ExpiresAt-claims.IssuedAt)

	// Wrong password
	mockRepo.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
	_, err = authService.Authenticate(ctx, models.Credentials{Email: user.Email, Password: "Wrongpass123"})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Unknown email
	mockRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.Authenticate(ctx, models.Credentials{Email: "nobody@example.com", Password: "Password123"})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_AuthenticateRejectsMalformedInput(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, nil, testJWTSecret, time.Hour)

	for _, creds := range []models.Credentials{
		{Email: "not-an-email", Password: "Password123"},
		{Email: "a@b.co", Password: "weak"},
		{Email: "", Password: ""},
	} {
		_, err := authService.Authenticate(context.Background(), creds)
		assert.ErrorIs(t, err, services.ErrValidation, "credentials %+v", creds)
	}
	// Malformed input never reaches the repository.
	mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestAuthService_ValidateToken(t *testing.T) {
	ctx := context.Background()
	authService := services.NewAuthService(new(MockUserRepository), nil, testJWTSecret, time.Hour)

	token, err := authService.IssueToken(&models.User{ID: 7, Email: "a@b.co", Username: "alice"})
	require.NoError(t, err)

	claims, err := authService.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.ID)
	assert.Equal(t, "alice", claims.Username)

	_, err = authService.ValidateToken(ctx, "invalid.token.string")
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	other := services.NewAuthService(new(MockUserRepository), nil, "another_secret", time.Hour)
	_, err = other.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, models.Claims{
		ID: 7,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		},
	})
	expiredString, err := expired.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	_, err = authService.ValidateToken(ctx, expiredString)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestAuthService_Revocation(t *testing.T) {
	ctx := context.Background()
	authService := services.NewAuthService(new(MockUserRepository), revocation.NewMemoryStore(time.Hour), testJWTSecret, time.Hour)
	user := &models.User{ID: 3, Email: "a@b.co", Username: "alice"}

	earlier := time.Now().Add(-time.Minute)
	authService.WithClock(func() time.Time { return earlier })
	oldToken, err := authService.IssueToken(user)
	require.NoError(t, err)

	authService.WithClock(time.Now)
	require.NoError(t, authService.RevokeOlderTokens(ctx, user.ID))

	_, err = authService.ValidateToken(ctx, oldToken)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	freshToken, err := authService.IssueToken(user)
	require.NoError(t, err)
	_, err = authService.ValidateToken(ctx, freshToken)
	assert.NoError(t, err)

	// Revoking everything also rejects a token from the current second.
	require.NoError(t, authService.RevokeAllTokens(ctx, user.ID))
	_, err = authService.ValidateToken(ctx, freshToken)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// Other users are unaffected.
	otherToken, err := authService.IssueToken(&models.User{ID: 4})
	require.NoError(t, err)
	_, err = authService.ValidateToken(ctx, otherToken)
	assert.NoError(t, err)
}
