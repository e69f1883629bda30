package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dealhub/internal/models"
)

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	users  map[uint]models.User
	nextID uint
	mu     sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[uint]models.User),
	}
}

// Create adds a new user, enforcing email uniqueness.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return fmt.Errorf("user with email %s: %w", user.Email, ErrDuplicate)
		}
	}
	r.nextID++
	user.ID = r.nextID
	if user.DateCreation.IsZero() {
		user.DateCreation = time.Now()
	}
	r.users[user.ID] = *user
	return nil
}

// GetAll returns all users ordered by ID.
func (r *MockUserRepository) GetAll(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// GetByID returns a user by ID.
func (r *MockUserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with ID %d: %w", id, ErrNotFound)
	}
	return &u, nil
}

// GetByEmail returns a user by exact email.
func (r *MockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
}

// Update applies the given columns to an existing user.
func (r *MockUserRepository) Update(_ context.Context, id uint, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user with ID %d: %w", id, ErrNotFound)
	}
	if email, set := fields["email"].(string); set {
		for otherID, other := range r.users {
			if otherID != id && other.Email == email {
				return fmt.Errorf("user %d: %w", id, ErrDuplicate)
			}
		}
	}
	for column, value := range fields {
		s, isString := value.(string)
		if !isString {
			return fmt.Errorf("invalid value %T for user column %q", value, column)
		}
		switch column {
		case "email":
			u.Email = s
		case "username":
			u.Username = s
		case "password":
			u.Password = s
		case "avatar":
			u.Avatar = s
		default:
			return fmt.Errorf("unknown user column %q", column)
		}
	}
	r.users[id] = u
	return nil
}

// Delete removes a user by ID.
func (r *MockUserRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("user with ID %d: %w", id, ErrNotFound)
	}
	delete(r.users, id)
	return nil
}
