// Package auth resolves bearer credentials to identities and enforces the
// role policy. Tokens are opaque 32-byte random values stored on the user
// record; authenticating overwrites the stored token, so each user has at
// most one active session.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/conanshim/registry/internal/common"
	"github.com/conanshim/registry/internal/logging"
	"github.com/conanshim/registry/internal/registry/models"
	"github.com/conanshim/registry/internal/registry/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

// Identity is a resolved credential: who the token belongs to and what
// they may do.
type Identity struct {
	Username string
	Role     string
}

// Service implements authentication and token verification over the users
// repository.
type Service struct {
	users  users.Repository
	logger logging.Logger
}

func NewService(users users.Repository, logger logging.Logger) *Service {
	return &Service{users: users, logger: logger}
}

// ExtractToken pulls a bearer credential from the request: first the
// auth_token query parameter (redirected requests cannot carry custom
// headers), then the Authorization header, accepting "Bearer <t>",
// "Token <t>" (case-insensitive scheme), or a raw token.
func ExtractToken(r *http.Request) string {
	if t := r.URL.Query().Get("auth_token"); t != "" {
		return t
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	if len(header) > 6 && strings.EqualFold(header[:6], "token ") {
		return header[6:]
	}
	return header
}

// nowMillis is a seam for tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// newToken returns 32 random bytes hex-encoded.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token generation: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Authenticate verifies the username/password pair and, on success, issues
// a fresh token and persists it with the login time. The stored credential
// may be a bcrypt hash or, for accounts seeded before hashing, plaintext.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "user lookup failed", "username", username, "error", err)
		return "", common.ErrInternal
	}

	if !credentialMatches(user, password) {
		return "", common.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		s.logger.Error(ctx, "token generation failed", "error", err)
		return "", common.ErrInternal
	}

	if err := s.users.UpdateToken(ctx, username, token, nowMillis()); err != nil {
		s.logger.Error(ctx, "token persist failed", "username", username, "error", err)
		return "", common.ErrInternal
	}

	return token, nil
}

func credentialMatches(user *models.User, password string) bool {
	if user.PasswordHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil {
		return true
	}
	// Legacy plaintext fallback for pre-hashing accounts.
	if user.Password != "" &&
		subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) == 1 {
		return true
	}
	return false
}

// Verify resolves a token to an identity through the token index. It never
// returns an error: any lookup failure resolves to "no identity". Users
// without a role default to viewer.
func (s *Service) Verify(ctx context.Context, token string) (*Identity, bool) {
	if token == "" {
		return nil, false
	}
	user, err := s.users.GetByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "token lookup failed", "error", err)
		}
		return nil, false
	}
	role := user.Role
	if role == "" {
		role = models.RoleViewer
	}
	return &Identity{Username: user.Username, Role: role}, true
}

// CanUpload reports whether the role satisfies upload-class checks.
func CanUpload(role string) bool {
	return role == models.RoleAdmin || role == models.RoleDeveloper
}

// CanDelete reports whether the role satisfies destructive checks.
func CanDelete(role string) bool {
	return role == models.RoleAdmin
}
