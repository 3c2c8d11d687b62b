// Package scenario projects asset failures onto the dependency graph,
// producing named impact scenarios for operators.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/riskmap-io/riskmap/internal/criticality"
	"github.com/riskmap-io/riskmap/internal/graph"
	"github.com/riskmap-io/riskmap/internal/registry"
	"github.com/riskmap-io/riskmap/pkg/models"
)

// DefaultProbability is assumed when the caller supplies none.
const DefaultProbability = 0.1

// rtoMinutes maps a recovery time objective string onto minutes. Substring
// match in declaration order, same matching discipline as the scorer;
// "24 hour" sits before "4 hour" so the longer substring is not shadowed.
var rtoMinutes = []struct {
	substr  string
	minutes int
}{
	{"immediate", 15},
	{"24 hour", 1440},
	{"1 hour", 60},
	{"4 hour", 240},
	{"8 hour", 480},
}

const defaultRTOMinutes = 240

// scenarioModifier scales downtime and revenue by the failure mode named in
// the scenario. The affected set is unchanged: a degraded asset still
// touches everything a failed one does.
func scenarioModifier(name string) float64 {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "partial_degradation":
		return 0.5
	case "performance_degradation":
		return 0.25
	default:
		return 1.0
	}
}

// stepTemplates maps relationship types seen on the critical path to the
// recovery action they suggest, checked in this order.
var stepTemplates = []struct {
	typ  models.RelationshipType
	step string
}{
	{models.RelLoadBalancedBy, "Fail over to the load balancer pool"},
	{models.RelBackupOf, "Promote the backup instance to primary"},
	{models.RelHostedOn, "Migrate workloads to an alternate host"},
	{models.RelClusterMember, "Rebalance the cluster onto remaining members"},
}

var genericSteps = []string{
	"Notify owners of affected services",
	"Restore the failed asset from the most recent known-good state",
	"Verify dependent services recover end to end",
}

// Generator builds impact scenarios from dependency graph snapshots.
type Generator struct {
	engine      *graph.Engine
	store       graph.Store
	reg         *registry.SQLiteRegistry
	logger      *slog.Logger
	probability float64
}

// NewGenerator creates an impact scenario generator. defaultProbability is
// assumed when a caller supplies none; non-positive values fall back to
// DefaultProbability.
func NewGenerator(engine *graph.Engine, store graph.Store, reg *registry.SQLiteRegistry, logger *slog.Logger, defaultProbability float64) *Generator {
	if defaultProbability <= 0 || defaultProbability > 1 {
		defaultProbability = DefaultProbability
	}
	return &Generator{engine: engine, store: store, reg: reg, logger: logger, probability: defaultProbability}
}

// Generate builds the named scenario for the asset with the generator's
// default probability. Results are cached per edge version, so repeated
// requests on an unchanged graph are served without recomputation.
func (g *Generator) Generate(ctx context.Context, assetID int64, name string) (*models.ImpactScenario, error) {
	return g.GenerateWithProbability(ctx, assetID, name, g.probability)
}

// GenerateWithProbability is Generate with a caller-supplied probability.
// A non-positive probability falls back to the generator's default.
func (g *Generator) GenerateWithProbability(ctx context.Context, assetID int64, name string, probability float64) (*models.ImpactScenario, error) {
	if name == "" {
		name = "complete_failure"
	}
	if probability <= 0 {
		probability = g.probability
	}

	version, err := g.store.EdgeVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading edge version: %w", err)
	}

	key := scenarioKey(assetID, name, version)
	if blob, err := g.store.GetBlob(ctx, key); err == nil && blob != nil {
		var cached models.ImpactScenario
		if err := json.Unmarshal(blob, &cached); err == nil {
			cached.ScenarioProbability = probability
			return &cached, nil
		}
	}

	snap, err := g.engine.GetSnapshot(ctx, assetID, 0)
	if err != nil {
		return nil, err
	}

	modifier := scenarioModifier(name)

	affected, services := g.classifyDependents(ctx, snap.Dependents)

	pathTypes, pathRecovery, err := g.engine.CriticalPathDetail(ctx, assetID)
	if err != nil {
		return nil, err
	}

	rootMeta, err := g.reg.GetMetadata(ctx, assetID)
	if err != nil {
		return nil, err
	}

	downtime := recoveryMinutes(rootMeta.CustomFields.RecoveryTimeObjective)
	if pathRecovery > downtime {
		downtime = pathRecovery
	}
	downtime = int(math.Round(float64(downtime) * modifier))

	// Revenue is prorated over the modified downtime, so the scenario
	// modifier flows through without being applied twice.
	revenue := g.revenueImpact(ctx, assetID, snap.Dependents, downtime)

	scenario := &models.ImpactScenario{
		ID:                     uuid.NewString(),
		AssetID:                assetID,
		ScenarioName:           name,
		AffectedAssets:         affected,
		AffectedServices:       services,
		EstimatedDowntimeMin:   downtime,
		EstimatedRevenueImpact: revenue,
		RecoverySteps:          recoverySteps(pathTypes),
		ScenarioProbability:    probability,
		EdgeVersion:            version,
	}

	if blob, err := json.Marshal(scenario); err == nil {
		if err := g.store.PutBlob(ctx, key, blob); err != nil && g.logger != nil {
			g.logger.Warn("caching scenario", "assetID", assetID, "error", err)
		}
	}

	if g.logger != nil {
		g.logger.Debug("scenario generated", "assetID", assetID, "name", name,
			"affected", len(affected), "downtimeMin", downtime, "revenue", revenue)
	}
	return scenario, nil
}

func scenarioKey(assetID int64, name string, version int64) string {
	return fmt.Sprintf("scenario:%d:%s:v%d", assetID, name, version)
}

// classifyDependents assigns each dependent an impact severity and collects
// the names of affected service-class assets. Severity starts from the
// strength of the edge that discovered the dependent and is raised one step
// when the dependent itself scores high or critical.
func (g *Generator) classifyDependents(ctx context.Context, dependents []models.DependencyNode) (map[int64]models.ImpactSeverity, []string) {
	affected := make(map[int64]models.ImpactSeverity, len(dependents))
	var services []string

	for _, dep := range dependents {
		severity := severityForStrength(dep.Strength)

		asset, err := g.reg.Get(ctx, dep.AssetID)
		if err != nil || asset == nil {
			// A dependent that vanished mid-computation keeps its
			// strength-derived severity.
			affected[dep.AssetID] = severity
			continue
		}

		result := criticality.Score(asset.Metadata())
		if result.CriticalityLevel == models.LevelCritical || result.CriticalityLevel == models.LevelHigh {
			severity = raiseSeverity(severity)
		}
		affected[dep.AssetID] = severity

		if isServiceType(asset.AssetType) {
			services = append(services, asset.Name)
		}
	}

	return affected, services
}

func severityForStrength(s models.Strength) models.ImpactSeverity {
	switch s {
	case models.StrengthCritical:
		return models.SeverityCritical
	case models.StrengthStrong:
		return models.SeverityHigh
	case models.StrengthModerate:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func raiseSeverity(s models.ImpactSeverity) models.ImpactSeverity {
	switch s {
	case models.SeverityLow:
		return models.SeverityMedium
	case models.SeverityMedium:
		return models.SeverityHigh
	default:
		return models.SeverityCritical
	}
}

func isServiceType(assetType string) bool {
	switch strings.ToLower(assetType) {
	case "service", "application", "api_gateway", "load_balancer":
		return true
	}
	return false
}

// revenueImpact sums revenue_impact_per_hour over the failed asset and every
// dependent, prorated by the estimated downtime. Assets without the field
// contribute zero.
func (g *Generator) revenueImpact(ctx context.Context, rootID int64, dependents []models.DependencyNode, downtimeMin int) float64 {
	hours := float64(downtimeMin) / 60.0

	total := revenuePerHour(g.metadataOrEmpty(ctx, rootID)) * hours
	for _, dep := range dependents {
		total += revenuePerHour(g.metadataOrEmpty(ctx, dep.AssetID)) * hours
	}
	return total
}

func (g *Generator) metadataOrEmpty(ctx context.Context, assetID int64) models.AssetMetadata {
	meta, err := g.reg.GetMetadata(ctx, assetID)
	if err != nil {
		return models.AssetMetadata{}
	}
	return meta
}

func revenuePerHour(meta models.AssetMetadata) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(meta.CustomFields.RevenueImpactPerHour)), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func recoveryMinutes(rto string) int {
	lower := strings.ToLower(strings.TrimSpace(rto))
	for _, rule := range rtoMinutes {
		if strings.Contains(lower, rule.substr) {
			return rule.minutes
		}
	}
	return defaultRTOMinutes
}

// recoverySteps builds the ordered recovery list: path-specific actions
// first, deduplicated, then the generic closing steps.
func recoverySteps(pathTypes []models.RelationshipType) []string {
	onPath := make(map[models.RelationshipType]bool, len(pathTypes))
	for _, t := range pathTypes {
		onPath[t] = true
	}

	var steps []string
	for _, tmpl := range stepTemplates {
		if onPath[tmpl.typ] {
			steps = append(steps, tmpl.step)
		}
	}
	return append(steps, genericSteps...)
}
