package models

import "time"

// RelationshipType represents the kind of relationship between two assets.
type RelationshipType string

// Relationship type constants.
const (
	RelDependsOn        RelationshipType = "depends_on"
	RelProvidesService  RelationshipType = "provides_service_to"
	RelCommunicatesWith RelationshipType = "communicates_with"
	RelHostedOn         RelationshipType = "hosted_on"
	RelHosts            RelationshipType = "hosts"
	RelBackupOf         RelationshipType = "backup_of"
	RelClusterMember    RelationshipType = "cluster_member"
	RelLoadBalancedBy   RelationshipType = "load_balanced_by"
	RelMonitors         RelationshipType = "monitors"
	RelProcessesData    RelationshipType = "processes_data_from"
)

// ValidRelationshipTypes lists every accepted relationship type in a stable order.
var ValidRelationshipTypes = []RelationshipType{
	RelDependsOn, RelProvidesService, RelCommunicatesWith, RelHostedOn,
	RelHosts, RelBackupOf, RelClusterMember, RelLoadBalancedBy,
	RelMonitors, RelProcessesData,
}

// IsValidRelationshipType reports whether t is a known relationship type.
func IsValidRelationshipType(t RelationshipType) bool {
	for _, v := range ValidRelationshipTypes {
		if v == t {
			return true
		}
	}
	return false
}

// InverseType returns the semantic inverse of a relationship type.
// Symmetric types (communicates_with, cluster_member) invert to themselves,
// as do types with no natural inverse, per the bulk import contract.
func InverseType(t RelationshipType) RelationshipType {
	switch t {
	case RelDependsOn:
		return RelProvidesService
	case RelProvidesService:
		return RelDependsOn
	case RelHostedOn:
		return RelHosts
	case RelHosts:
		return RelHostedOn
	default:
		return t
	}
}

// Strength is the ordinal strength of a relationship, used as a multiplier
// in impact propagation.
type Strength string

// Relationship strength constants, weakest to strongest.
const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
	StrengthCritical Strength = "critical"
)

// PropagationFactor returns the failure propagation probability carried by
// an edge of this strength.
func (s Strength) PropagationFactor() float64 {
	switch s {
	case StrengthCritical:
		return 0.9
	case StrengthStrong:
		return 0.7
	case StrengthModerate:
		return 0.4
	default:
		return 0.15
	}
}

// IsValidStrength reports whether s is a known strength.
func IsValidStrength(s Strength) bool {
	switch s {
	case StrengthWeak, StrengthModerate, StrengthStrong, StrengthCritical:
		return true
	}
	return false
}

// DataFlowDirection describes which way data moves along a relationship.
type DataFlowDirection string

// Data flow direction constants.
const (
	FlowBidirectional  DataFlowDirection = "bidirectional"
	FlowSourceToTarget DataFlowDirection = "source_to_target"
	FlowTargetToSource DataFlowDirection = "target_to_source"
)

// Relationship is a directed, typed, weighted edge between two assets.
// Duplicate (source, target, type) tuples may coexist when they come from
// distinct discovery events; the graph engine deduplicates on traversal.
type Relationship struct {
	ID                  string            `json:"id"`
	SourceAssetID       int64             `json:"source_asset_id"`
	TargetAssetID       int64             `json:"target_asset_id"`
	Type                RelationshipType  `json:"relationship_type"`
	Strength            Strength          `json:"strength"`
	Port                int               `json:"port,omitempty"`
	Protocol            string            `json:"protocol,omitempty"`
	DataFlowDirection   DataFlowDirection `json:"data_flow_direction,omitempty"`
	ImpactPercentage    float64           `json:"impact_percentage,omitempty"`
	RecoveryTimeMinutes int               `json:"recovery_time_minutes,omitempty"`
	IsValidated         bool              `json:"is_validated"`
	IsActive            bool              `json:"is_active"`
	DiscoveredVia       string            `json:"discovered_via,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// CriticalityLevel is the categorical result of criticality scoring.
type CriticalityLevel string

// Criticality level constants.
const (
	LevelLow      CriticalityLevel = "low"
	LevelMedium   CriticalityLevel = "medium"
	LevelHigh     CriticalityLevel = "high"
	LevelCritical CriticalityLevel = "critical"
)

// ScoreResult is the output of the criticality scorer for one asset.
type ScoreResult struct {
	TotalScore       float64            `json:"total_score"`
	CriticalityLevel CriticalityLevel   `json:"criticality_level"`
	FactorScores     map[string]float64 `json:"factor_scores"`
	Recommendations  []string           `json:"recommendations"`
}

// DependencyNode is one asset discovered during snapshot traversal. Strength
// and Via come from the edge that first discovered the node under BFS.
type DependencyNode struct {
	AssetID  int64            `json:"asset_id"`
	Level    int              `json:"level"`
	Strength Strength         `json:"relationship_strength"`
	Via      RelationshipType `json:"via"`
}

// DependencyGraphSnapshot is the cached, derived view of one asset's place
// in the dependency graph. It is a read-only projection: callers never
// mutate it, recomputation replaces it wholesale.
type DependencyGraphSnapshot struct {
	AssetID               int64            `json:"asset_id"`
	DependencyLevel       int              `json:"dependency_level"`
	TotalDependencies     int              `json:"total_dependencies"`
	TotalDependents       int              `json:"total_dependents"`
	CriticalPathLength    int              `json:"critical_path_length"`
	SPOFRisk              float64          `json:"single_point_of_failure_risk"`
	CascadeRisk           float64          `json:"cascade_failure_risk"`
	OverallRisk           float64          `json:"overall_dependency_risk"`
	Dependencies          []DependencyNode `json:"dependencies"`
	Dependents            []DependencyNode `json:"dependents"`
	MaxDepth              int              `json:"max_depth"`
	EdgeVersion           int64            `json:"edge_version"`
	CalculationDurationMS int64            `json:"calculation_duration_ms"`
}

// ImpactSeverity classifies how hard a dependent is hit in a scenario.
type ImpactSeverity string

// Impact severity constants.
const (
	SeverityLow      ImpactSeverity = "low"
	SeverityMedium   ImpactSeverity = "medium"
	SeverityHigh     ImpactSeverity = "high"
	SeverityCritical ImpactSeverity = "critical"
)

// ImpactScenario is a named what-if projection of an asset failure.
type ImpactScenario struct {
	ID                     string                   `json:"id"`
	AssetID                int64                    `json:"asset_id"`
	ScenarioName           string                   `json:"scenario_name"`
	AffectedAssets         map[int64]ImpactSeverity `json:"affected_assets"`
	AffectedServices       []string                 `json:"affected_services"`
	EstimatedDowntimeMin   int                      `json:"estimated_downtime_minutes"`
	EstimatedRevenueImpact float64                  `json:"estimated_revenue_impact"`
	RecoverySteps          []string                 `json:"recovery_steps"`
	ScenarioProbability    float64                  `json:"scenario_probability"`
	EdgeVersion            int64                    `json:"edge_version"`
}
