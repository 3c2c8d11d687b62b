// Package registry provides the asset lookup interface the graph engine and
// scenario generator read from, plus a SQLite-backed implementation.
package registry

import (
	"context"
	"time"

	"github.com/riskmap-io/riskmap/pkg/models"
)

// Asset is one registered asset with its scoring-relevant metadata.
type Asset struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Environment     string    `json:"environment"`
	AssetType       string    `json:"asset_type"`
	BusinessUnit    string    `json:"business_unit"`
	ComplianceScope string    `json:"compliance_scope"` // serialized JSON array
	CustomFields    string    `json:"custom_fields"`    // serialized JSON object
	CreatedAt       time.Time `json:"created_at"`
}

// Metadata returns the typed metadata view of the asset. Serialized fields
// that fail to parse degrade to empty values.
func (a Asset) Metadata() models.AssetMetadata {
	meta := models.AssetMetadata{
		Environment:  a.Environment,
		AssetType:    a.AssetType,
		BusinessUnit: a.BusinessUnit,
	}
	if a.ComplianceScope != "" {
		_ = meta.ComplianceScope.UnmarshalJSON([]byte(a.ComplianceScope))
	}
	if a.CustomFields != "" {
		_ = meta.CustomFields.UnmarshalJSON([]byte(a.CustomFields))
	}
	return meta
}

// Registry is the read interface consumed by the core components.
type Registry interface {
	// Exists reports whether an asset with the given id is registered.
	Exists(ctx context.Context, id int64) (bool, error)

	// GetMetadata returns the typed metadata for an asset.
	GetMetadata(ctx context.Context, id int64) (models.AssetMetadata, error)
}

// Filter specifies criteria for listing assets.
type Filter struct {
	Environment string
	AssetType   string
}
