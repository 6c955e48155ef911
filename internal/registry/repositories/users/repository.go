package users

import (
	"context"

	"github.com/conanshim/registry/internal/registry/models"
)

// Repository is the metadata store adapter for user records.
type Repository interface {
	// Get returns the user by username, or common.ErrNotFound.
	Get(ctx context.Context, username string) (*models.User, error)

	// GetByToken resolves a session token through the token secondary
	// index, or common.ErrNotFound.
	GetByToken(ctx context.Context, token string) (*models.User, error)

	// UpdateToken overwrites the user's session token and last-login
	// time, invalidating any previously issued token.
	UpdateToken(ctx context.Context, username, token string, lastLogin int64) error

	// Upsert creates or replaces a user record. Used by the bootstrap
	// CLI, not by request handling.
	Upsert(ctx context.Context, user *models.User) error
}
