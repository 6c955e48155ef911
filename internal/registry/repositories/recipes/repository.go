package recipes

import (
	"context"

	"github.com/conanshim/registry/internal/registry/models"
	"github.com/conanshim/registry/internal/registry/ref"
)

// Repository is the metadata store adapter for recipe records.
//
// UpsertFiles and UpsertBinary are read-modify-write sequences over the
// single recipe key, with no optimistic guard: concurrent writers to the
// same reference race and the later write wins.
type Repository interface {
	// Get returns the recipe for the canonical reference, or
	// common.ErrNotFound.
	Get(ctx context.Context, reference string) (*models.Recipe, error)

	// Put writes the whole record, replacing any existing one.
	Put(ctx context.Context, recipe *models.Recipe) error

	// All returns every recipe record. Used by search, which is an
	// accepted full scan.
	All(ctx context.Context) ([]*models.Recipe, error)

	// UpsertFiles replaces the recipe's file list and timestamp while
	// preserving the existing binaries map. Creates the record if absent.
	UpsertFiles(ctx context.Context, r ref.Ref, files []string) (*models.Recipe, error)

	// UpsertBinary sets the binary entry for binaryID, preserving files
	// and the other binaries. Nil settings/options keep the prior values
	// for an existing entry.
	UpsertBinary(ctx context.Context, r ref.Ref, binaryID string, settings, options map[string]any) (*models.Recipe, error)
}
