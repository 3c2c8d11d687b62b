package graph

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/riskmap-io/riskmap/pkg/models"
)

// ImportRecord is one relationship in a bulk import payload.
type ImportRecord struct {
	SourceAssetID       int64   `json:"source_asset_id" yaml:"source_asset_id"`
	TargetAssetID       int64   `json:"target_asset_id" yaml:"target_asset_id"`
	Type                string  `json:"relationship_type" yaml:"relationship_type"`
	Strength            string  `json:"strength" yaml:"strength"`
	Port                int     `json:"port" yaml:"port"`
	Protocol            string  `json:"protocol" yaml:"protocol"`
	DataFlowDirection   string  `json:"data_flow_direction" yaml:"data_flow_direction"`
	ImpactPercentage    float64 `json:"impact_percentage" yaml:"impact_percentage"`
	RecoveryTimeMinutes int     `json:"recovery_time_minutes" yaml:"recovery_time_minutes"`
	IsValidated         bool    `json:"is_validated" yaml:"is_validated"`
	DiscoveredVia       string  `json:"discovered_via" yaml:"discovered_via"`
}

// ImportError records a single failed record without aborting the batch.
type ImportError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ImportResult reports the partial outcome of a bulk import.
type ImportResult struct {
	SuccessCount int                   `json:"success_count"`
	ErrorCount   int                   `json:"error_count"`
	Errors       []ImportError         `json:"errors"`
	Created      []models.Relationship `json:"created"`
}

// ImportOptions controls bulk import behavior.
type ImportOptions struct {
	// AutoCreateReverse also creates the semantically inverse edge for
	// every imported record.
	AutoCreateReverse bool
	// ValidateAssets checks both endpoints against the registry.
	ValidateAssets bool
}

// BulkImport inserts a batch of relationships. A failure on one record
// never aborts the batch; errors are accumulated per record. Reverse edges
// created for a record do not count toward SuccessCount but do appear in
// Created.
func (s *SQLiteStore) BulkImport(ctx context.Context, records []ImportRecord, opts ImportOptions) ImportResult {
	result := ImportResult{}

	for i, rec := range records {
		rel := models.Relationship{
			SourceAssetID:       rec.SourceAssetID,
			TargetAssetID:       rec.TargetAssetID,
			Type:                models.RelationshipType(rec.Type),
			Strength:            models.Strength(rec.Strength),
			Port:                rec.Port,
			Protocol:            rec.Protocol,
			DataFlowDirection:   models.DataFlowDirection(rec.DataFlowDirection),
			ImpactPercentage:    rec.ImpactPercentage,
			RecoveryTimeMinutes: rec.RecoveryTimeMinutes,
			IsValidated:         rec.IsValidated,
			DiscoveredVia:       rec.DiscoveredVia,
		}

		created, err := s.add(ctx, rel, opts.ValidateAssets)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, ImportError{Index: i, Message: err.Error()})
			continue
		}
		result.SuccessCount++
		result.Created = append(result.Created, created)

		if !opts.AutoCreateReverse {
			continue
		}

		reverse := rel
		reverse.ID = ""
		reverse.SourceAssetID = rel.TargetAssetID
		reverse.TargetAssetID = rel.SourceAssetID
		reverse.Type = models.InverseType(rel.Type)
		reverse.DataFlowDirection = invertFlow(rel.DataFlowDirection)

		revCreated, err := s.add(ctx, reverse, opts.ValidateAssets)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{
				Index:   i,
				Message: fmt.Sprintf("reverse edge: %v", err),
			})
			continue
		}
		result.Created = append(result.Created, revCreated)
	}

	return result
}

func invertFlow(f models.DataFlowDirection) models.DataFlowDirection {
	switch f {
	case models.FlowSourceToTarget:
		return models.FlowTargetToSource
	case models.FlowTargetToSource:
		return models.FlowSourceToTarget
	default:
		return f
	}
}

// importFile is the YAML shape accepted by ImportFromFile.
type importFile struct {
	AutoCreateReverse bool           `yaml:"auto_create_reverse"`
	ValidateAssets    bool           `yaml:"validate_assets"`
	Relationships     []ImportRecord `yaml:"relationships"`
}

// ImportFromFile reads a YAML relationship list and bulk-imports it.
// File-level options may be overridden by the caller via opts when
// override is true.
func (s *SQLiteStore) ImportFromFile(ctx context.Context, path string, opts *ImportOptions) (ImportResult, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from user CLI arg
	if err != nil {
		return ImportResult{}, fmt.Errorf("reading import file: %w", err)
	}

	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return ImportResult{}, fmt.Errorf("parsing import file: %w", err)
	}

	effective := ImportOptions{
		AutoCreateReverse: f.AutoCreateReverse,
		ValidateAssets:    f.ValidateAssets,
	}
	if opts != nil {
		effective = *opts
	}

	return s.BulkImport(ctx, f.Relationships, effective), nil
}
