package services

import (
	"context"
	"errors"
	"fmt"

	"dealhub/internal/models"
	"dealhub/internal/repositories"
	"dealhub/pkg/rabbitmq"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// UserService handles business logic related to user accounts.
type UserService struct {
	userRepo       repositories.UserRepository
	auth           *AuthService
	events         EventPublisher
	validate       *validator.Validate
	ownershipCheck bool
}

// NewUserService creates a new UserService. When ownershipCheck is set, a
// caller may only update or delete its own account.
func NewUserService(userRepo repositories.UserRepository, auth *AuthService, events EventPublisher, ownershipCheck bool) *UserService {
	return &UserService{
		userRepo:       userRepo,
		auth:           auth,
		events:         events,
		validate:       NewValidator(),
		ownershipCheck: ownershipCheck,
	}
}

// Register creates an account and returns its id and a token.
func (s *UserService) Register(ctx context.Context, req models.UserCreate) (uint, string, error) {
	if err := s.validate.Struct(req); err != nil {
		return 0, "", validationError(err)
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return 0, "", fmt.Errorf("%w: email '%s' already registered", ErrDuplicateUser, req.Email)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return 0, "", fmt.Errorf("failed to check existing user: %w", err)
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return 0, "", err
	}
	user := &models.User{
		Email:    req.Email,
		Username: req.Username,
		Password: hashed,
		Avatar:   req.Avatar,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return 0, "", fmt.Errorf("%w: email '%s' already registered", ErrDuplicateUser, req.Email)
		}
		return 0, "", fmt.Errorf("failed to register user: %w", err)
	}

	token, err := s.auth.IssueToken(user)
	if err != nil {
		return 0, "", err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User registered")
	return user.ID, token, nil
}

// List returns every user without credentials.
func (s *UserService) List(ctx context.Context) ([]models.UserSummary, error) {
	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}

// GetByID returns the user with the given id.
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// GetByEmail returns the user registered under email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// Update writes the supplied fields and returns a token with the merged claims.
// A password change revokes the user's earlier tokens.
func (s *UserService) Update(ctx context.Context, caller *models.Claims, id uint, upd models.UserUpdate) (string, error) {
	if err := s.validate.Struct(upd); err != nil {
		return "", validationError(err)
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return "", notFound(err)
	}
	if err := s.authorize(caller, id); err != nil {
		return "", err
	}

	fields := make(map[string]any)
	if upd.Email != nil && *upd.Email != user.Email {
		fields["email"] = *upd.Email
		user.Email = *upd.Email
	}
	if upd.Username != nil {
		fields["username"] = *upd.Username
		user.Username = *upd.Username
	}
	if upd.Avatar != nil {
		fields["avatar"] = *upd.Avatar
		user.Avatar = *upd.Avatar
	}
	if upd.Password != nil {
		hashed, err := HashPassword(*upd.Password)
		if err != nil {
			return "", err
		}
		fields["password"] = hashed
		user.Password = hashed
	}

	if len(fields) > 0 {
		if err := s.userRepo.Update(ctx, id, fields); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return "", fmt.Errorf("%w: email '%s' already registered", ErrDuplicateUser, user.Email)
			}
			return "", notFound(err)
		}
	}

	if upd.Password != nil {
		if err := s.auth.RevokeOlderTokens(ctx, id); err != nil {
			return "", err
		}
	}
	return s.auth.IssueToken(user)
}

// Delete removes the account and invalidates all of its tokens.
func (s *UserService) Delete(ctx context.Context, caller *models.Claims, id uint) error {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return notFound(err)
	}
	if err := s.authorize(caller, id); err != nil {
		return err
	}
	// Revoke first so a failure leaves the account and its tokens intact.
	if err := s.auth.RevokeAllTokens(ctx, id); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return notFound(err)
	}

	event := rabbitmq.NewEvent(models.EventUserDeleted)
	event.UserID = id
	publish(ctx, s.events, event)
	logrus.WithField("user_id", id).Info("User deleted")
	return nil
}

func (s *UserService) authorize(caller *models.Claims, id uint) error {
	if !s.ownershipCheck {
		return nil
	}
	if caller == nil || caller.ID != id {
		return fmt.Errorf("%w: users may only modify their own account", ErrForbidden)
	}
	return nil
}

// notFound translates a repository miss into ErrNotFound and keeps any
// other error as is.
func notFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
