package models

import (
	"encoding/json"
	"strings"
)

// AssetMetadata is the typed view of an asset's scoring-relevant metadata.
// Upstream stores may persist compliance_scope and custom_fields as
// JSON-encoded strings; the flexible field types below absorb both shapes.
// Missing or unparseable values decode to their zero value, never to an error.
type AssetMetadata struct {
	Environment     string       `json:"environment"`
	AssetType       string       `json:"asset_type"`
	BusinessUnit    string       `json:"business_unit"`
	ComplianceScope StringList   `json:"compliance_scope"`
	CustomFields    CustomFields `json:"custom_fields"`
}

// CustomFields holds the free-form per-asset fields the scorer understands.
type CustomFields struct {
	DataClassification    string       `json:"data_classification"`
	SLARequirement        string       `json:"sla_requirement"`
	RecoveryTimeObjective string       `json:"recovery_time_objective"`
	RevenueImpactPerHour  FlexString   `json:"revenue_impact_per_hour"`
	DependentSystems      CountOrNames `json:"dependent_systems"`
}

// UnmarshalJSON accepts either a JSON object or a JSON-encoded string
// containing one. A failed inner parse yields empty fields.
func (c *CustomFields) UnmarshalJSON(data []byte) error {
	raw := normalizeEncoded(data)

	type plain CustomFields
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		*c = CustomFields{}
		return nil
	}
	*c = CustomFields(p)
	return nil
}

// StringList decodes from a JSON array of strings or from a JSON-encoded
// string holding such an array. Anything else decodes to nil.
type StringList []string

// UnmarshalJSON implements tolerant decoding for StringList.
func (l *StringList) UnmarshalJSON(data []byte) error {
	raw := normalizeEncoded(data)

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		*l = nil
		return nil
	}
	*l = items
	return nil
}

// FlexString decodes from a JSON string or a JSON number.
type FlexString string

// UnmarshalJSON implements tolerant decoding for FlexString.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// CountOrNames decodes dependent_systems, which appears either as a count
// or as a named list. Only the count matters to the scorer.
type CountOrNames struct {
	Count int      `json:"count"`
	Names []string `json:"names,omitempty"`
}

// UnmarshalJSON implements tolerant decoding for CountOrNames.
func (d *CountOrNames) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*d = CountOrNames{Count: n}
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*d = CountOrNames{Count: len(names), Names: names}
		return nil
	}
	*d = CountOrNames{}
	return nil
}

// normalizeEncoded unwraps one level of string encoding: if data is a JSON
// string, the contained text is returned as raw JSON.
func normalizeEncoded(data []byte) []byte {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, `"`) {
		return data
	}
	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		return data
	}
	return []byte(inner)
}

// ParseMetadata decodes raw JSON into AssetMetadata. Malformed input yields
// an empty metadata value rather than an error: scoring degrades to lowest
// defaults on missing data.
func ParseMetadata(raw []byte) AssetMetadata {
	var m AssetMetadata
	_ = json.Unmarshal(raw, &m)
	return m
}
