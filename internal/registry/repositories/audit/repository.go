package audit

import (
	"context"

	"github.com/conanshim/registry/internal/registry/models"
)

// Repository is the append-only audit log adapter. Entries are never
// updated or deleted.
type Repository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
}
