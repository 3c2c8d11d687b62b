package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/riskmap-io/riskmap/internal/registry"
	"github.com/riskmap-io/riskmap/pkg/models"
)

// SyncToMemgraph performs a full synchronization from SQLite to Memgraph.
// It clears all Memgraph data and re-inserts every asset and active
// relationship, so ad-hoc Cypher analysis always sees the current graph.
func SyncToMemgraph(ctx context.Context, store *SQLiteStore, reg *registry.SQLiteRegistry, driver neo4j.DriverWithContext, logger *slog.Logger) error {
	return syncToMemgraph(ctx, store, reg, newNeo4jSessionFactory(driver), logger)
}

func syncToMemgraph(ctx context.Context, store *SQLiteStore, reg *registry.SQLiteRegistry, sf sessionFactory, logger *slog.Logger) error {
	session := sf(ctx)
	defer session.Close(ctx) //nolint:errcheck // best-effort cleanup

	logger.Info("clearing memgraph data")
	_, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
	if err != nil {
		return fmt.Errorf("clearing memgraph: %w", err)
	}

	logger.Info("creating memgraph indexes")
	for _, cypher := range []string{
		"CREATE INDEX ON :Asset(id)",
		"CREATE INDEX ON :Asset(environment)",
		"CREATE INDEX ON :Asset(asset_type)",
	} {
		_, err := session.Run(ctx, cypher, nil)
		if err != nil {
			logger.Warn("creating index (may already exist)", "error", err)
		}
	}

	assets, err := reg.List(ctx, registry.Filter{})
	if err != nil {
		return fmt.Errorf("listing assets from sqlite: %w", err)
	}

	logger.Info("syncing assets to memgraph", "count", len(assets))

	batchSize := 500
	for i := 0; i < len(assets); i += batchSize {
		end := i + batchSize
		if end > len(assets) {
			end = len(assets)
		}
		batch := assets[i:end]

		assetParams := make([]map[string]any, len(batch))
		for j, a := range batch {
			assetParams[j] = assetToParams(a)
		}

		cypher := `
			UNWIND $assets AS a
			CREATE (n:Asset {
				id: a.id, name: a.name,
				environment: a.environment, asset_type: a.assetType,
				business_unit: a.businessUnit,
				compliance_scope: a.complianceScope,
				custom_fields: a.customFields,
				created_at: a.createdAt
			})
		`
		_, err := session.Run(ctx, cypher, map[string]any{"assets": assetParams})
		if err != nil {
			return fmt.Errorf("syncing asset batch %d-%d: %w", i, end, err)
		}
	}

	rels, err := store.ActiveEdges(ctx)
	if err != nil {
		return fmt.Errorf("listing relationships from sqlite: %w", err)
	}

	logger.Info("syncing relationships to memgraph", "count", len(rels))

	for i := 0; i < len(rels); i += batchSize {
		end := i + batchSize
		if end > len(rels) {
			end = len(rels)
		}
		batch := rels[i:end]

		relParams := make([]map[string]any, len(batch))
		for j, r := range batch {
			relParams[j] = relationshipToParams(r)
		}

		cypher := `
			UNWIND $rels AS r
			MATCH (from:Asset {id: r.sourceID})
			MATCH (to:Asset {id: r.targetID})
			CREATE (from)-[:RELATES {
				id: r.id, type: r.type, strength: r.strength,
				port: r.port, protocol: r.protocol,
				data_flow_direction: r.dataFlow,
				impact_percentage: r.impactPct,
				recovery_time_minutes: r.recoveryMin,
				is_validated: r.validated,
				discovered_via: r.discoveredVia
			}]->(to)
		`
		_, err := session.Run(ctx, cypher, map[string]any{"rels": relParams})
		if err != nil {
			return fmt.Errorf("syncing relationship batch %d-%d: %w", i, end, err)
		}
	}

	logger.Info("memgraph sync complete", "assets", len(assets), "relationships", len(rels))
	fmt.Printf("Synced %d assets and %d relationships to Memgraph\n", len(assets), len(rels))
	return nil
}

func assetToParams(a registry.Asset) map[string]any {
	return map[string]any{
		"id":              a.ID,
		"name":            a.Name,
		"environment":     a.Environment,
		"assetType":       a.AssetType,
		"businessUnit":    a.BusinessUnit,
		"complianceScope": a.ComplianceScope,
		"customFields":    a.CustomFields,
		"createdAt":       a.CreatedAt.Format(time.RFC3339),
	}
}

func relationshipToParams(r models.Relationship) map[string]any {
	return map[string]any{
		"id":            r.ID,
		"sourceID":      r.SourceAssetID,
		"targetID":      r.TargetAssetID,
		"type":          string(r.Type),
		"strength":      string(r.Strength),
		"port":          r.Port,
		"protocol":      r.Protocol,
		"dataFlow":      string(r.DataFlowDirection),
		"impactPct":     r.ImpactPercentage,
		"recoveryMin":   r.RecoveryTimeMinutes,
		"validated":     r.IsValidated,
		"discoveredVia": r.DiscoveredVia,
	}
}
