package graph

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/riskmap-io/riskmap/internal/registry"
	"github.com/riskmap-io/riskmap/pkg/models"
)

func syncTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAssetToParams(t *testing.T) {
	_, reg := newTestStore(t, 1)

	assets, err := reg.List(context.Background(), registry.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 {
		t.Fatalf("assets = %d, want 1", len(assets))
	}

	params := assetToParams(assets[0])
	if params["id"] != int64(1) {
		t.Errorf("id = %v", params["id"])
	}
	if params["name"] != "asset-1" {
		t.Errorf("name = %v", params["name"])
	}
	if params["environment"] != "production" {
		t.Errorf("environment = %v", params["environment"])
	}
	if params["assetType"] != "server" {
		t.Errorf("assetType = %v", params["assetType"])
	}
	createdAt, ok := params["createdAt"].(string)
	if !ok {
		t.Fatalf("createdAt = %v, want RFC3339 string", params["createdAt"])
	}
	if _, err := time.Parse(time.RFC3339, createdAt); err != nil {
		t.Errorf("createdAt %q does not parse: %v", createdAt, err)
	}
}

func TestRelationshipToParams(t *testing.T) {
	r := models.Relationship{
		ID:                  "rel-1",
		SourceAssetID:       1,
		TargetAssetID:       2,
		Type:                models.RelDependsOn,
		Strength:            models.StrengthStrong,
		Port:                5432,
		Protocol:            "tcp",
		DataFlowDirection:   models.FlowBidirectional,
		ImpactPercentage:    80,
		RecoveryTimeMinutes: 30,
		IsValidated:         true,
		DiscoveredVia:       "manual",
	}

	params := relationshipToParams(r)
	if params["id"] != "rel-1" {
		t.Errorf("id = %v", params["id"])
	}
	if params["sourceID"] != int64(1) || params["targetID"] != int64(2) {
		t.Errorf("endpoints = %v -> %v", params["sourceID"], params["targetID"])
	}
	if params["type"] != "depends_on" {
		t.Errorf("type = %v", params["type"])
	}
	if params["strength"] != "strong" {
		t.Errorf("strength = %v", params["strength"])
	}
	if params["port"] != 5432 {
		t.Errorf("port = %v", params["port"])
	}
	if params["validated"] != true {
		t.Errorf("validated = %v", params["validated"])
	}
}

func TestSyncToMemgraph_EmptyGraph(t *testing.T) {
	store, reg := newTestStore(t, 0)

	sess := &mockSession{}
	err := syncToMemgraph(context.Background(), store, reg, mockSessionFactory(sess), syncTestLogger())
	if err != nil {
		t.Fatal(err)
	}

	// Clear plus three index statements; no asset or relationship batches.
	if len(sess.calls) != 4 {
		t.Errorf("Run calls = %d, want 4", len(sess.calls))
	}
	if !strings.Contains(sess.calls[0].cypher, "DETACH DELETE") {
		t.Errorf("first call = %q, want clear", sess.calls[0].cypher)
	}
	if !sess.closed {
		t.Error("session not closed")
	}
}

func TestSyncToMemgraph_BatchesAssetsAndRelationships(t *testing.T) {
	store, reg := newTestStore(t, 3)
	mustAdd(t, store,
		makeRel(1, 2, models.RelDependsOn, models.StrengthStrong),
		makeRel(2, 3, models.RelHostedOn, models.StrengthCritical),
	)

	sess := &mockSession{}
	err := syncToMemgraph(context.Background(), store, reg, mockSessionFactory(sess), syncTestLogger())
	if err != nil {
		t.Fatal(err)
	}

	// Clear + 3 indexes + 1 asset batch + 1 relationship batch.
	if len(sess.calls) != 6 {
		t.Fatalf("Run calls = %d, want 6", len(sess.calls))
	}

	assetCall := sess.calls[4]
	if !strings.Contains(assetCall.cypher, "UNWIND $assets") {
		t.Errorf("asset batch cypher = %q", assetCall.cypher)
	}
	assetParams, ok := assetCall.params["assets"].([]map[string]any)
	if !ok || len(assetParams) != 3 {
		t.Errorf("asset batch params = %v, want 3 entries", assetCall.params["assets"])
	}

	relCall := sess.calls[5]
	if !strings.Contains(relCall.cypher, "UNWIND $rels") {
		t.Errorf("relationship batch cypher = %q", relCall.cypher)
	}
	relParams, ok := relCall.params["rels"].([]map[string]any)
	if !ok || len(relParams) != 2 {
		t.Errorf("relationship batch params = %v, want 2 entries", relCall.params["rels"])
	}
}

func TestSyncToMemgraph_SkipsInactiveRelationships(t *testing.T) {
	store, reg := newTestStore(t, 2)
	rel, err := store.Add(context.Background(), makeRel(1, 2, models.RelDependsOn, models.StrengthStrong))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(context.Background(), rel.ID); err != nil {
		t.Fatal(err)
	}

	sess := &mockSession{}
	if err := syncToMemgraph(context.Background(), store, reg, mockSessionFactory(sess), syncTestLogger()); err != nil {
		t.Fatal(err)
	}

	// Clear + 3 indexes + 1 asset batch; the removed edge produces no batch.
	if len(sess.calls) != 5 {
		t.Errorf("Run calls = %d, want 5", len(sess.calls))
	}
}

func TestSyncToMemgraph_ClearFails(t *testing.T) {
	store, reg := newTestStore(t, 1)

	boom := errors.New("connection refused")
	err := syncToMemgraph(context.Background(), store, reg, failSessionFactory(boom), syncTestLogger())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
