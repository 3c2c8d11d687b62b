package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riskmap-io/riskmap/internal/errs"
	"github.com/riskmap-io/riskmap/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL,
    environment      TEXT,
    asset_type       TEXT,
    business_unit    TEXT,
    compliance_scope TEXT,
    custom_fields    TEXT,
    created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_environment ON assets(environment);
CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(asset_type);
`

// SQLiteRegistry implements Registry on the shared SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry wraps an open database handle.
func NewSQLiteRegistry(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

// Init creates the assets table if it doesn't exist.
func (r *SQLiteRegistry) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Create inserts an asset and returns its assigned id.
func (r *SQLiteRegistry) Create(ctx context.Context, a Asset) (int64, error) {
	if a.Name == "" {
		return 0, errs.Validation("asset name is required")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (name, environment, asset_type, business_unit, compliance_scope, custom_fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.Name, a.Environment, a.AssetType, a.BusinessUnit, a.ComplianceScope, a.CustomFields,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("inserting asset: %w", err)
	}
	return res.LastInsertId()
}

// Exists reports whether an asset with the given id is registered.
func (r *SQLiteRegistry) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM assets WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get retrieves a single asset by id.
func (r *SQLiteRegistry) Get(ctx context.Context, id int64) (*Asset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, environment, asset_type, business_unit, compliance_scope, custom_fields, created_at
		FROM assets WHERE id = ?
	`, id)
	return scanAsset(row)
}

// GetMetadata returns the typed metadata for an asset, or a not-found error.
func (r *SQLiteRegistry) GetMetadata(ctx context.Context, id int64) (models.AssetMetadata, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return models.AssetMetadata{}, err
	}
	if a == nil {
		return models.AssetMetadata{}, errs.NotFound("asset %d not found", id)
	}
	return a.Metadata(), nil
}

// List returns assets matching the filter, ordered by id.
func (r *SQLiteRegistry) List(ctx context.Context, filter Filter) ([]Asset, error) {
	query := `SELECT id, name, environment, asset_type, business_unit, compliance_scope, custom_fields, created_at FROM assets WHERE 1=1`
	var args []any

	if filter.Environment != "" {
		query += ` AND environment = ?`
		args = append(args, filter.Environment)
	}
	if filter.AssetType != "" {
		query += ` AND asset_type = ?`
		args = append(args, filter.AssetType)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// Count returns the total number of registered assets.
func (r *SQLiteRegistry) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&count)
	return count, err
}

func scanAsset(row interface{ Scan(dest ...any) error }) (*Asset, error) {
	var a Asset
	var env, typ, bu, scope, custom sql.NullString
	var createdAt string

	err := row.Scan(&a.ID, &a.Name, &env, &typ, &bu, &scope, &custom, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	a.Environment = env.String
	a.AssetType = typ.String
	a.BusinessUnit = bu.String
	a.ComplianceScope = scope.String
	a.CustomFields = custom.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &a, nil
}
