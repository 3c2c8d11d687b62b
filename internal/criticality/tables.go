package criticality

import "github.com/riskmap-io/riskmap/pkg/models"

// Factor names, in presentation order.
const (
	FactorBusinessImpact  = "business_impact"
	FactorDataSensitivity = "data_sensitivity"
	FactorAvailability    = "availability_requirement"
	FactorFinancialImpact = "financial_impact"
	FactorOperationalDep  = "operational_dependency"
	FactorCompliance      = "compliance_requirements"
	FactorSLA             = "sla_stringency"
)

// factorOrder fixes iteration order for recommendations and tests.
var factorOrder = []string{
	FactorBusinessImpact, FactorDataSensitivity, FactorAvailability,
	FactorFinancialImpact, FactorOperationalDep, FactorCompliance, FactorSLA,
}

// factorWeights sum to 1.0. These are fixed policy values, not learned.
var factorWeights = map[string]float64{
	FactorBusinessImpact:  0.25,
	FactorDataSensitivity: 0.20,
	FactorAvailability:    0.15,
	FactorFinancialImpact: 0.15,
	FactorOperationalDep:  0.10,
	FactorCompliance:      0.10,
	FactorSLA:             0.05,
}

// Criticality level thresholds on the total score.
const (
	thresholdCritical = 8.5
	thresholdHigh     = 6.5
	thresholdMedium   = 4.0
)

// environmentScores weighs deployment environment. Unknown environments take
// the lowest-impact assumption.
var environmentScores = map[string]float64{
	"production":  10,
	"staging":     6,
	"development": 3,
	"test":        3,
}

const environmentDefault = 2

// assetTypeScores weighs the asset's role. Databases and servers sit above
// end-user hardware.
var assetTypeScores = map[string]float64{
	"database":       10,
	"server":         9,
	"load_balancer":  8,
	"network_device": 8,
	"application":    8,
	"storage":        7,
	"container":      6,
	"vm":             6,
	"workstation":    2,
	"printer":        1,
}

const assetTypeDefault = 2

// businessUnitScores weighs the owning unit; revenue-adjacent units rank higher.
var businessUnitScores = map[string]float64{
	"finance":     10,
	"payments":    10,
	"billing":     9,
	"sales":       8,
	"engineering": 7,
	"operations":  7,
	"support":     5,
	"hr":          4,
	"marketing":   4,
}

const businessUnitDefault = 2

// complianceSeverity ranks regimes. Unlisted regimes still count, at a
// moderate severity.
var complianceSeverity = map[string]float64{
	"pci-dss":  10,
	"pci_dss":  10,
	"hipaa":    10,
	"gdpr":     9,
	"sox":      8,
	"iso27001": 7,
	"soc2":     7,
}

const complianceSeverityDefault = 6

// dataClassificationScores weighs sensitivity labels.
var dataClassificationScores = map[string]float64{
	"secret":       10,
	"confidential": 10,
	"restricted":   9,
	"internal":     5,
	"public":       2,
}

const dataClassificationDefault = 1

// rtoRule maps a normalized RTO substring to a score. Rules are evaluated
// in order; the first match wins.
type rtoRule struct {
	substr string
	score  float64
}

// "24 hour" precedes "4 hour" so the longer substring is not shadowed.
var rtoRules = []rtoRule{
	{"immediate", 10},
	{"24 hour", 3},
	{"1 hour", 9},
	{"4 hour", 7},
	{"8 hour", 5},
}

const rtoDefault = 1

// revenueBucket maps a minimum hourly revenue impact to a score.
type revenueBucket struct {
	min   float64
	score float64
}

// Evaluated top-down; first threshold met wins. Zero scores 1.
var revenueBuckets = []revenueBucket{
	{100000, 10},
	{50000, 8},
	{10000, 6},
	{1000, 4},
}

const (
	revenueNonZeroScore = 2
	revenueZeroScore    = 1
)

// dependentBucket maps a minimum dependent-system count to a score.
type dependentBucket struct {
	min   int
	score float64
}

var dependentBuckets = []dependentBucket{
	{10, 10},
	{5, 7},
	{2, 5},
	{1, 3},
}

const dependentZeroScore = 1

// complianceCountBucket scores the number of compliance regimes in scope.
type complianceCountBucket struct {
	min   int
	score float64
}

var complianceCountBuckets = []complianceCountBucket{
	{3, 10},
	{2, 8},
	{1, 6},
}

const complianceZeroScore = 1

// slaBucket maps a minimum SLA percentage to a score.
type slaBucket struct {
	min   float64
	score float64
}

var slaBuckets = []slaBucket{
	{99.99, 10},
	{99.9, 8},
	{99.5, 6},
	{99.0, 5},
	{95.0, 3},
}

const slaDefault = 1

// recommendationTrigger is the per-factor score at or above which that
// factor's recommendation fires.
const recommendationTrigger = 8.0

// recommendations maps a factor to the advice emitted when it triggers.
var recommendations = map[string]string{
	FactorBusinessImpact:  "Implement redundancy and failover mechanisms",
	FactorDataSensitivity: "Encrypt data at rest and in transit",
	FactorAvailability:    "Provision hot standby capacity to meet recovery objectives",
	FactorFinancialImpact: "Prioritize this asset in business continuity planning",
	FactorOperationalDep:  "Map and monitor downstream system dependencies",
	FactorCompliance:      "Schedule regular compliance audits for in-scope regimes",
	FactorSLA:             "Enable continuous availability monitoring and alerting",
}

// FactorNames returns the factor names in presentation order.
func FactorNames() []string {
	names := make([]string, len(factorOrder))
	copy(names, factorOrder)
	return names
}

// LevelForScore maps a total score to its criticality level.
func LevelForScore(score float64) models.CriticalityLevel {
	switch {
	case score >= thresholdCritical:
		return models.LevelCritical
	case score >= thresholdHigh:
		return models.LevelHigh
	case score >= thresholdMedium:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}
