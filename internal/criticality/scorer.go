// Package criticality implements the multi-factor asset criticality scorer.
// Scoring is a pure function over the provided metadata: it performs no I/O,
// and missing or malformed fields degrade to lowest-score defaults instead
// of producing errors.
package criticality

import (
	"math"
	"strconv"
	"strings"

	"github.com/riskmap-io/riskmap/pkg/models"
)

// Score computes the weighted criticality of one asset from its metadata.
// Per-factor scores land in [1,10]; the total is the weighted sum clamped
// to [0,10].
func Score(meta models.AssetMetadata) models.ScoreResult {
	factors := map[string]float64{
		FactorBusinessImpact:  businessImpact(meta),
		FactorDataSensitivity: dataSensitivity(meta),
		FactorAvailability:    availabilityRequirement(meta.CustomFields.RecoveryTimeObjective),
		FactorFinancialImpact: financialImpact(string(meta.CustomFields.RevenueImpactPerHour)),
		FactorOperationalDep:  operationalDependency(meta.CustomFields.DependentSystems.Count),
		FactorCompliance:      complianceRequirements(meta.ComplianceScope),
		FactorSLA:             slaStringency(meta.CustomFields.SLARequirement),
	}

	// Summed in fixed factor order so repeated scoring is bit-identical.
	var total float64
	for _, name := range factorOrder {
		total += factorWeights[name] * factors[name]
	}
	total = math.Min(10, math.Max(0, total))

	return models.ScoreResult{
		TotalScore:       total,
		CriticalityLevel: LevelForScore(total),
		FactorScores:     factors,
		Recommendations:  recommend(factors),
	}
}

// businessImpact blends environment, asset type, and business unit.
func businessImpact(meta models.AssetMetadata) float64 {
	env := lookupScore(environmentScores, meta.Environment, environmentDefault)
	typ := lookupScore(assetTypeScores, meta.AssetType, assetTypeDefault)
	bu := lookupScore(businessUnitScores, meta.BusinessUnit, businessUnitDefault)
	return 0.5*env + 0.3*typ + 0.2*bu
}

// dataSensitivity blends the data classification label with the severity of
// the compliance regimes covering the asset.
func dataSensitivity(meta models.AssetMetadata) float64 {
	classification := lookupScore(dataClassificationScores,
		meta.CustomFields.DataClassification, dataClassificationDefault)

	regime := float64(complianceZeroScore)
	if len(meta.ComplianceScope) > 0 {
		var maxSev float64
		for _, scope := range meta.ComplianceScope {
			sev := lookupScore(complianceSeverity, scope, complianceSeverityDefault)
			if sev > maxSev {
				maxSev = sev
			}
		}
		// Additional regimes tighten the score, capped at 10.
		regime = math.Min(10, maxSev+float64(len(meta.ComplianceScope)-1))
	}

	return 0.6*classification + 0.4*regime
}

// availabilityRequirement scores the recovery time objective via the ordered
// substring rule table. First match wins.
func availabilityRequirement(rto string) float64 {
	normalized := strings.ToLower(strings.TrimSpace(rto))
	if normalized == "" {
		return rtoDefault
	}
	for _, rule := range rtoRules {
		if strings.Contains(normalized, rule.substr) {
			return rule.score
		}
	}
	return rtoDefault
}

// financialImpact buckets the hourly revenue impact. Unparseable values
// score as zero revenue.
func financialImpact(revenue string) float64 {
	amount, err := strconv.ParseFloat(strings.TrimSpace(revenue), 64)
	if err != nil || amount <= 0 {
		return revenueZeroScore
	}
	for _, b := range revenueBuckets {
		if amount >= b.min {
			return b.score
		}
	}
	return revenueNonZeroScore
}

// operationalDependency buckets the count of dependent systems.
func operationalDependency(count int) float64 {
	for _, b := range dependentBuckets {
		if count >= b.min {
			return b.score
		}
	}
	return dependentZeroScore
}

// complianceRequirements scores the breadth of compliance coverage, with a
// bump when a high-severity regime is present.
func complianceRequirements(scope models.StringList) float64 {
	score := float64(complianceZeroScore)
	for _, b := range complianceCountBuckets {
		if len(scope) >= b.min {
			score = b.score
			break
		}
	}
	for _, s := range scope {
		if lookupScore(complianceSeverity, s, complianceSeverityDefault) >= 9 {
			score = math.Min(10, score+2)
			break
		}
	}
	return score
}

// slaStringency parses an SLA percentage like "99.95%" and buckets it.
func slaStringency(sla string) float64 {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sla), "%"))
	if trimmed == "" {
		return slaDefault
	}
	pct, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return slaDefault
	}
	for _, b := range slaBuckets {
		if pct >= b.min {
			return b.score
		}
	}
	return slaDefault
}

// recommend collects the advice for every factor at or above its trigger,
// deduplicated, in fixed factor order.
func recommend(factors map[string]float64) []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range factorOrder {
		if factors[name] < recommendationTrigger {
			continue
		}
		rec := recommendations[name]
		if rec == "" || seen[rec] {
			continue
		}
		seen[rec] = true
		out = append(out, rec)
	}
	return out
}

func lookupScore(table map[string]float64, key string, def float64) float64 {
	if v, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return v
	}
	return def
}
