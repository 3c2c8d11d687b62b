package graph

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/riskmap-io/riskmap/internal/errs"
	"github.com/riskmap-io/riskmap/internal/registry"
	"github.com/riskmap-io/riskmap/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS relationships (
    rowid_order           INTEGER PRIMARY KEY AUTOINCREMENT,
    id                    TEXT UNIQUE NOT NULL,
    source_asset_id       INTEGER NOT NULL,
    target_asset_id       INTEGER NOT NULL,
    relationship_type     TEXT NOT NULL,
    strength              TEXT NOT NULL,
    port                  INTEGER DEFAULT 0,
    protocol              TEXT,
    data_flow_direction   TEXT,
    impact_percentage     REAL DEFAULT 0,
    recovery_time_minutes INTEGER DEFAULT 0,
    is_validated          INTEGER DEFAULT 0,
    is_active             INTEGER DEFAULT 1,
    discovered_via        TEXT,
    created_at            DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rel_source ON relationships(source_asset_id);
CREATE INDEX IF NOT EXISTS idx_rel_target ON relationships(target_asset_id);
CREATE INDEX IF NOT EXISTS idx_rel_type ON relationships(relationship_type);
CREATE INDEX IF NOT EXISTS idx_rel_active ON relationships(is_active);

CREATE TABLE IF NOT EXISTS graph_meta (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS derived_cache (
    key        TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`

// SQLiteStore implements Store using SQLite. Writes are serialized by the
// database; readers take a consistent edge-list snapshot in a single query.
type SQLiteStore struct {
	db  *sql.DB
	reg registry.Registry
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// The registry is consulted to validate that relationship endpoints exist.
func NewSQLiteStore(dbPath string, reg registry.Registry) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{db: db, reg: reg}, nil
}

// NewSQLiteStoreDB wraps an already-open database handle.
func NewSQLiteStoreDB(db *sql.DB, reg registry.Registry) *SQLiteStore {
	return &SQLiteStore{db: db, reg: reg}
}

// DB exposes the underlying handle for components sharing the database.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Init creates the schema if it doesn't exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_meta (key, value) VALUES ('edge_version', 0)
		ON CONFLICT(key) DO NOTHING
	`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// validate checks structural invariants on a relationship.
func validate(rel models.Relationship) error {
	if rel.SourceAssetID == rel.TargetAssetID {
		return errs.Validation("relationship cannot be self-referential (asset %d)", rel.SourceAssetID)
	}
	if !models.IsValidRelationshipType(rel.Type) {
		return errs.Validation("unknown relationship type %q", rel.Type)
	}
	if rel.Strength != "" && !models.IsValidStrength(rel.Strength) {
		return errs.Validation("unknown strength %q", rel.Strength)
	}
	if rel.ImpactPercentage < 0 || rel.ImpactPercentage > 100 {
		return errs.Validation("impact_percentage %.1f out of [0,100]", rel.ImpactPercentage)
	}
	if rel.RecoveryTimeMinutes < 0 {
		return errs.Validation("recovery_time_minutes must be >= 0")
	}
	return nil
}

// Add validates and inserts a relationship. Both endpoints must exist in
// the registry. The stored relationship (with assigned id and defaults) is
// returned.
func (s *SQLiteStore) Add(ctx context.Context, rel models.Relationship) (models.Relationship, error) {
	return s.add(ctx, rel, true)
}

func (s *SQLiteStore) add(ctx context.Context, rel models.Relationship, checkAssets bool) (models.Relationship, error) {
	if err := validate(rel); err != nil {
		return models.Relationship{}, err
	}

	if checkAssets && s.reg != nil {
		for _, id := range []int64{rel.SourceAssetID, rel.TargetAssetID} {
			ok, err := s.reg.Exists(ctx, id)
			if err != nil {
				return models.Relationship{}, fmt.Errorf("checking asset %d: %w", id, err)
			}
			if !ok {
				return models.Relationship{}, errs.NotFound("asset %d not found", id)
			}
		}
	}

	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.Strength == "" {
		rel.Strength = models.StrengthModerate
	}
	rel.IsActive = true
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, source_asset_id, target_asset_id, relationship_type,
			strength, port, protocol, data_flow_direction, impact_percentage,
			recovery_time_minutes, is_validated, is_active, discovered_via, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, rel.ID, rel.SourceAssetID, rel.TargetAssetID, string(rel.Type),
		string(rel.Strength), rel.Port, rel.Protocol, string(rel.DataFlowDirection),
		rel.ImpactPercentage, rel.RecoveryTimeMinutes, boolInt(rel.IsValidated),
		rel.DiscoveredVia, rel.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return models.Relationship{}, fmt.Errorf("inserting relationship: %w", err)
	}

	if err := s.bumpVersion(ctx); err != nil {
		return models.Relationship{}, err
	}
	return rel, nil
}

// Remove soft-deletes a relationship by flipping is_active off.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE relationships SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.NotFound("relationship %q not found", id)
	}
	return s.bumpVersion(ctx)
}

// Get retrieves a relationship by id, active or not.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Relationship, error) {
	row := s.db.QueryRowContext(ctx, selectClause+` WHERE id = ?`, id)
	return scanRelationship(row)
}

const selectClause = `
	SELECT id, source_asset_id, target_asset_id, relationship_type, strength,
	       port, protocol, data_flow_direction, impact_percentage,
	       recovery_time_minutes, is_validated, is_active, discovered_via, created_at
	FROM relationships`

// ListOutgoing returns active relationships originating at the asset.
func (s *SQLiteStore) ListOutgoing(ctx context.Context, assetID int64) ([]models.Relationship, error) {
	return s.List(ctx, Filter{SourceAssetID: assetID})
}

// ListIncoming returns active relationships pointing at the asset.
func (s *SQLiteStore) ListIncoming(ctx context.Context, assetID int64) ([]models.Relationship, error) {
	return s.List(ctx, Filter{TargetAssetID: assetID})
}

// List returns relationships matching the filter in insertion order.
// Inactive relationships are excluded unless the filter asks for them.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]models.Relationship, error) {
	query := selectClause + ` WHERE 1=1`
	var args []any

	if !filter.IncludeInactive {
		query += ` AND is_active = 1`
	}
	if filter.Type != "" {
		query += ` AND relationship_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.SourceAssetID != 0 {
		query += ` AND source_asset_id = ?`
		args = append(args, filter.SourceAssetID)
	}
	if filter.TargetAssetID != 0 {
		query += ` AND target_asset_id = ?`
		args = append(args, filter.TargetAssetID)
	}

	query += ` ORDER BY rowid_order`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var rels []models.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *r)
	}
	return rels, rows.Err()
}

// ActiveEdges returns every active relationship in insertion order. This is
// the consistent snapshot traversals read once up front.
func (s *SQLiteStore) ActiveEdges(ctx context.Context) ([]models.Relationship, error) {
	return s.List(ctx, Filter{})
}

// EdgeVersion returns the current edge-set version.
func (s *SQLiteStore) EdgeVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM graph_meta WHERE key = 'edge_version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

func (s *SQLiteStore) bumpVersion(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE graph_meta SET value = value + 1 WHERE key = 'edge_version'`)
	return err
}

// PutBlob stores a derived value as opaque JSON under a key, replacing any
// previous value.
func (s *SQLiteStore) PutBlob(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO derived_cache (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, key, string(payload), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetBlob retrieves a derived value by key; nil when absent.
func (s *SQLiteStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM derived_cache WHERE key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// RelationshipCount returns the number of active relationships.
func (s *SQLiteStore) RelationshipCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships WHERE is_active = 1`).Scan(&count)
	return count, err
}

// CountByType returns active relationship counts grouped by type.
func (s *SQLiteStore) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relationship_type, COUNT(*) FROM relationships
		WHERE is_active = 1 GROUP BY relationship_type ORDER BY relationship_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			return nil, err
		}
		counts[t] = c
	}
	return counts, rows.Err()
}

func scanRelationship(row interface{ Scan(dest ...any) error }) (*models.Relationship, error) {
	var r models.Relationship
	var typ, strength string
	var protocol, flow, via sql.NullString
	var validated, active int
	var createdAt string

	err := row.Scan(&r.ID, &r.SourceAssetID, &r.TargetAssetID, &typ, &strength,
		&r.Port, &protocol, &flow, &r.ImpactPercentage, &r.RecoveryTimeMinutes,
		&validated, &active, &via, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	r.Type = models.RelationshipType(typ)
	r.Strength = models.Strength(strength)
	r.Protocol = protocol.String
	r.DataFlowDirection = models.DataFlowDirection(flow.String)
	r.DiscoveredVia = via.String
	r.IsValidated = validated == 1
	r.IsActive = active == 1
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
