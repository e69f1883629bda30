// Package client is a Go client for the dealhub REST API. It keeps the
// bearer token in a Session and derives display and ownership state from the
// token claims, without verifying the signature.
package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dealhub/internal/models"

	"github.com/dgrijalva/jwt-go"
)

// Session stores the current token on disk and exposes its decoded claims.
// Claims are re-derived from the token on every Load and Save.
type Session struct {
	path string

	mu     sync.RWMutex
	token  string
	claims *models.Claims
}

// NewSession creates a session persisted at path. Call Load to restore it.
func NewSession(path string) *Session {
	return &Session{path: path}
}

// DecodeClaims reads the claims of token without checking its signature.
// The server remains the only party that verifies tokens.
func DecodeClaims(token string) (*models.Claims, error) {
	claims := &models.Claims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// Load restores the token from disk. A missing file leaves the session empty.
func (s *Session) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.set("", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session %s: %w", s.path, err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		s.set("", nil)
		return nil
	}
	claims, err := DecodeClaims(token)
	if err != nil {
		return err
	}
	s.set(token, claims)
	return nil
}

// Save replaces the token and writes it to disk.
func (s *Session) Save(token string) error {
	claims, err := DecodeClaims(token)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create session dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("failed to write session %s: %w", s.path, err)
	}
	s.set(token, claims)
	return nil
}

// Clear logs out and removes the stored token.
func (s *Session) Clear() error {
	s.set("", nil)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session %s: %w", s.path, err)
	}
	return nil
}

// Token returns the raw bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Claims returns a copy of the decoded claims, or nil when logged out.
func (s *Session) Claims() *models.Claims {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return nil
	}
	c := *s.claims
	return &c
}

// Active reports whether the session holds a token that has not expired at now.
func (s *Session) Active(now time.Time) bool {
	claims := s.Claims()
	return claims != nil && (claims.ExpiresAt == 0 || now.Unix() < claims.ExpiresAt)
}

func (s *Session) set(token string, claims *models.Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.claims = claims
}
