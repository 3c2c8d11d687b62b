package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML shape accepted by LoadSeed.
type seedFile struct {
	Assets []seedAsset `yaml:"assets"`
}

type seedAsset struct {
	Name            string         `yaml:"name"`
	Environment     string         `yaml:"environment"`
	AssetType       string         `yaml:"asset_type"`
	BusinessUnit    string         `yaml:"business_unit"`
	ComplianceScope []string       `yaml:"compliance_scope"`
	CustomFields    map[string]any `yaml:"custom_fields"`
}

// LoadSeed reads a YAML asset list and inserts every entry into the
// registry. It returns the ids assigned, in file order.
func LoadSeed(ctx context.Context, reg *SQLiteRegistry, path string) ([]int64, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from user CLI arg
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	ids := make([]int64, 0, len(seed.Assets))
	for i, sa := range seed.Assets {
		scope, _ := json.Marshal(sa.ComplianceScope)
		custom, _ := json.Marshal(sa.CustomFields)

		id, err := reg.Create(ctx, Asset{
			Name:            sa.Name,
			Environment:     sa.Environment,
			AssetType:       sa.AssetType,
			BusinessUnit:    sa.BusinessUnit,
			ComplianceScope: string(scope),
			CustomFields:    string(custom),
		})
		if err != nil {
			return ids, fmt.Errorf("inserting asset %d (%s): %w", i, sa.Name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
