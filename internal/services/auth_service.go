package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dealhub/internal/metrics"
	"dealhub/internal/models"
	"dealhub/internal/repositories"
	"dealhub/internal/revocation"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for stored password hashes.
const PasswordCost = 10

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo    repositories.UserRepository
	revocations revocation.Store
	jwtSecret   []byte
	tokenTTL    time.Duration
	validate    *validator.Validate
	now         func() time.Time
}

// NewAuthService creates a new AuthService. revocations may be nil, in which
// case issued tokens stay valid until they expire.
func NewAuthService(userRepo repositories.UserRepository, revocations revocation.Store, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		revocations: revocations,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		validate:    NewValidator(),
		now:         time.Now,
	}
}

// WithClock replaces the time source used for issuing and revoking tokens.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Authenticate checks email and password and returns a fresh token.
func (s *AuthService) Authenticate(ctx context.Context, creds models.Credentials) (string, error) {
	if err := s.validate.Struct(creds); err != nil {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return "", validationError(err)
	}

	user, err := s.userRepo.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.LoginAttempts.WithLabelValues("rejected").Inc()
			return "", ErrInvalidCredentials
		}
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			metrics.LoginAttempts.WithLabelValues("rejected").Inc()
			return "", ErrInvalidCredentials
		}
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to compare password hash: %w", err)
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return s.IssueToken(user)
}

// IssueToken signs a token carrying the identity claims of user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := models.ClaimsFor(user)
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Add(s.tokenTTL).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a token, returning its claims if valid.
// Tokens issued before the user's revocation cutoff are rejected.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token: %v", ErrUnauthorized, err)
	}
	if !token.Valid || claims.ID == 0 {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	if s.revocations != nil {
		cutoff, revoked, err := s.revocations.RevokedAt(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked && claims.IssuedAt < cutoff.Unix() {
			return nil, fmt.Errorf("%w: token has been revoked", ErrUnauthorized)
		}
	}
	return claims, nil
}

// RevokeOlderTokens invalidates the user's tokens issued before the current
// second. A token issued right after the call stays valid.
func (s *AuthService) RevokeOlderTokens(ctx context.Context, userID uint) error {
	return s.revoke(ctx, userID, s.now().Truncate(time.Second))
}

// RevokeAllTokens invalidates every token issued to the user so far.
func (s *AuthService) RevokeAllTokens(ctx context.Context, userID uint) error {
	return s.revoke(ctx, userID, s.now().Truncate(time.Second).Add(time.Second))
}

func (s *AuthService) revoke(ctx context.Context, userID uint, cutoff time.Time) error {
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, userID, cutoff); err != nil {
		return fmt.Errorf("failed to revoke tokens of user %d: %w", userID, err)
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "cutoff": cutoff.Unix()}).Info("Revoked user tokens")
	return nil
}
