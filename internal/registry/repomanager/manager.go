package repomanager

import (
	"context"
	"database/sql"

	"github.com/conanshim/registry/internal/dbx"
	"github.com/conanshim/registry/internal/registry/repositories/audit"
	"github.com/conanshim/registry/internal/registry/repositories/recipes"
	"github.com/conanshim/registry/internal/registry/repositories/users"
)

// RepositoryManager vends metadata store adapters bound to a database
// handle and exposes the schema migration hook.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Recipes(db dbx.DBTX) recipes.Repository
	Users(db dbx.DBTX) users.Repository
	Audit(db dbx.DBTX) audit.Repository
}
