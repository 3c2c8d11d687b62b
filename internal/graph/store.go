// Package graph owns the relationship store and the dependency graph engine:
// directed, typed, weighted edges between assets, and the derived snapshot
// computations (reachability, critical path, failure risk) built on them.
package graph

import (
	"context"

	"github.com/riskmap-io/riskmap/pkg/models"
)

// Store defines the persistence interface for relationships and for the
// opaque derived-value cache (snapshots, scenarios).
type Store interface {
	// Init initializes the store (creates tables, indexes, etc.).
	Init(ctx context.Context) error

	// Close closes the store connection.
	Close() error

	// Add validates and inserts a relationship.
	Add(ctx context.Context, rel models.Relationship) (models.Relationship, error)

	// Remove soft-deletes a relationship by id.
	Remove(ctx context.Context, id string) error

	// Get retrieves a relationship by id, active or not.
	Get(ctx context.Context, id string) (*models.Relationship, error)

	// ListOutgoing returns active relationships originating at the asset.
	ListOutgoing(ctx context.Context, assetID int64) ([]models.Relationship, error)

	// ListIncoming returns active relationships pointing at the asset.
	ListIncoming(ctx context.Context, assetID int64) ([]models.Relationship, error)

	// List returns relationships matching the filter, in insertion order.
	List(ctx context.Context, filter Filter) ([]models.Relationship, error)

	// ActiveEdges returns every active relationship in insertion order.
	ActiveEdges(ctx context.Context) ([]models.Relationship, error)

	// EdgeVersion returns the monotonic version of the edge set. Any
	// mutation bumps it; derived caches key on it.
	EdgeVersion(ctx context.Context) (int64, error)

	// PutBlob stores a derived value as opaque JSON under a key.
	PutBlob(ctx context.Context, key string, payload []byte) error

	// GetBlob retrieves a derived value by key; nil when absent.
	GetBlob(ctx context.Context, key string) ([]byte, error)
}

// Filter specifies criteria for listing relationships.
type Filter struct {
	Type          models.RelationshipType
	SourceAssetID int64
	TargetAssetID int64
	// IncludeInactive also returns soft-deleted relationships.
	IncludeInactive bool
}
