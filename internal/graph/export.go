package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/riskmap-io/riskmap/internal/registry"
	"github.com/riskmap-io/riskmap/pkg/models"
)

// GraphData holds a full graph snapshot for export.
type GraphData struct {
	Assets        []registry.Asset      `json:"assets"`
	Relationships []models.Relationship `json:"relationships"`
}

// ExportJSON returns the active graph as an indented JSON string.
func ExportJSON(ctx context.Context, store Store, reg *registry.SQLiteRegistry) (string, error) {
	assets, rels, err := exportData(ctx, store, reg)
	if err != nil {
		return "", err
	}

	data := GraphData{Assets: assets, Relationships: rels}
	if data.Assets == nil {
		data.Assets = []registry.Asset{}
	}
	if data.Relationships == nil {
		data.Relationships = []models.Relationship{}
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExportDOT returns the active graph in Graphviz DOT format. Nodes are
// colored by environment and edges are labeled with type and strength.
func ExportDOT(ctx context.Context, store Store, reg *registry.SQLiteRegistry) (string, error) {
	assets, rels, err := exportData(ctx, store, reg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("digraph riskmap {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled];\n\n")

	for _, a := range assets {
		color := environmentColor(a.Environment)
		label := fmt.Sprintf("%s\\n(%s)", a.Name, a.AssetType)
		b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=%q];\n", nodeID(a.ID), label, color))
	}

	b.WriteString("\n")

	for _, r := range rels {
		label := fmt.Sprintf("%s/%s", r.Type, r.Strength)
		b.WriteString(fmt.Sprintf("  %q -> %q [label=%q%s];\n",
			nodeID(r.SourceAssetID), nodeID(r.TargetAssetID), label, edgeStyle(r.Strength)))
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// ExportMermaid returns the active graph in Mermaid format.
func ExportMermaid(ctx context.Context, store Store, reg *registry.SQLiteRegistry) (string, error) {
	assets, rels, err := exportData(ctx, store, reg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("graph LR\n")

	for _, a := range assets {
		b.WriteString(fmt.Sprintf("  %s[\"%s (%s)\"]\n", nodeID(a.ID), a.Name, a.AssetType))
	}

	for _, r := range rels {
		b.WriteString(fmt.Sprintf("  %s -->|%s| %s\n",
			nodeID(r.SourceAssetID), r.Type, nodeID(r.TargetAssetID)))
	}

	return b.String(), nil
}

func exportData(ctx context.Context, store Store, reg *registry.SQLiteRegistry) ([]registry.Asset, []models.Relationship, error) {
	assets, err := reg.List(ctx, registry.Filter{})
	if err != nil {
		return nil, nil, fmt.Errorf("listing assets: %w", err)
	}
	rels, err := store.ActiveEdges(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing relationships: %w", err)
	}
	return assets, rels, nil
}

func nodeID(id int64) string {
	return fmt.Sprintf("asset_%d", id)
}

func environmentColor(env string) string {
	switch strings.ToLower(env) {
	case "production":
		return "#F1948A"
	case "staging":
		return "#F9E79F"
	case "development":
		return "#A3E4D7"
	case "test":
		return "#AED6F1"
	default:
		return "#D5D8DC"
	}
}

func edgeStyle(s models.Strength) string {
	switch s {
	case models.StrengthCritical:
		return ", color=red, penwidth=2"
	case models.StrengthStrong:
		return ", color=orange"
	default:
		return ""
	}
}
