package audit

import (
	"context"
	"fmt"

	"github.com/conanshim/registry/internal/dbx"
	"github.com/conanshim/registry/internal/registry/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	query :=
		`INSERT INTO audit_log (log_id, ts, action, username, details)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query,
		entry.LogID, entry.Timestamp, entry.Action, entry.Username, entry.Details)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
