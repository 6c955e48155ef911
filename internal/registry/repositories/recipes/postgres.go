package recipes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conanshim/registry/internal/common"
	"github.com/conanshim/registry/internal/dbx"
	"github.com/conanshim/registry/internal/registry/models"
	"github.com/conanshim/registry/internal/registry/ref"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// nowMillis is a seam for tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

func scanRecipe(files, binaries []byte, r *models.Recipe) error {
	if err := json.Unmarshal(files, &r.Files); err != nil {
		return fmt.Errorf("decode files: %w", err)
	}
	if err := json.Unmarshal(binaries, &r.Binaries); err != nil {
		return fmt.Errorf("decode binaries: %w", err)
	}
	if len(r.Binaries) == 0 {
		r.Binaries = nil
	}
	return nil
}

func (repo *PostgresRepository) Get(ctx context.Context, reference string) (*models.Recipe, error) {
	query :=
		`SELECT reference, name, version, owner, channel, updated_at, files, binaries
		 FROM recipes
		 WHERE reference = $1
		 `

	r := &models.Recipe{}
	var files, binaries []byte
	err := repo.db.QueryRowContext(ctx, query, reference).Scan(
		&r.Reference, &r.Name, &r.Version, &r.User, &r.Channel, &r.Timestamp, &files, &binaries)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := scanRecipe(files, binaries, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (repo *PostgresRepository) Put(ctx context.Context, recipe *models.Recipe) error {
	files, err := json.Marshal(recipe.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	binaries := recipe.Binaries
	if binaries == nil {
		binaries = map[string]models.Binary{}
	}
	bins, err := json.Marshal(binaries)
	if err != nil {
		return fmt.Errorf("encode binaries: %w", err)
	}

	query :=
		`INSERT INTO recipes (reference, name, version, owner, channel, updated_at, files, binaries)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (reference) DO UPDATE SET
		   name = EXCLUDED.name,
		   version = EXCLUDED.version,
		   owner = EXCLUDED.owner,
		   channel = EXCLUDED.channel,
		   updated_at = EXCLUDED.updated_at,
		   files = EXCLUDED.files,
		   binaries = EXCLUDED.binaries
		 `

	_, err = repo.db.ExecContext(ctx, query,
		recipe.Reference, recipe.Name, recipe.Version, recipe.User, recipe.Channel,
		recipe.Timestamp, files, bins)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (repo *PostgresRepository) All(ctx context.Context) ([]*models.Recipe, error) {
	query :=
		`SELECT reference, name, version, owner, channel, updated_at, files, binaries
		 FROM recipes
		 ORDER BY reference
		 `

	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Recipe
	for rows.Next() {
		r := &models.Recipe{}
		var files, binaries []byte
		if err := rows.Scan(&r.Reference, &r.Name, &r.Version, &r.User, &r.Channel,
			&r.Timestamp, &files, &binaries); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := scanRecipe(files, binaries, r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (repo *PostgresRepository) UpsertFiles(ctx context.Context, r ref.Ref, files []string) (*models.Recipe, error) {
	existing, err := repo.Get(ctx, r.String())
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	merged := &models.Recipe{
		Reference: r.String(),
		Name:      r.Name,
		Version:   r.Version,
		User:      r.User,
		Channel:   r.Channel,
		Timestamp: nowMillis(),
		Files:     files,
	}
	if existing != nil {
		merged.Binaries = existing.Binaries
	}

	if err := repo.Put(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (repo *PostgresRepository) UpsertBinary(ctx context.Context, r ref.Ref, binaryID string, settings, options map[string]any) (*models.Recipe, error) {
	merged, err := repo.Get(ctx, r.String())
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		merged = &models.Recipe{
			Reference: r.String(),
			Name:      r.Name,
			Version:   r.Version,
			User:      r.User,
			Channel:   r.Channel,
			Timestamp: nowMillis(),
		}
	}
	if merged.Binaries == nil {
		merged.Binaries = map[string]models.Binary{}
	}

	entry := merged.Binaries[binaryID]
	if settings != nil {
		entry.Settings = settings
	} else if entry.Settings == nil {
		entry.Settings = map[string]any{}
	}
	if options != nil {
		entry.Options = options
	} else if entry.Options == nil {
		entry.Options = map[string]any{}
	}
	merged.Binaries[binaryID] = entry

	if err := repo.Put(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}
