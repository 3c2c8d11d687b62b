package graph

import (
	"context"
	"log/slog"
	"math"
	"os"
	"reflect"
	"testing"

	"github.com/riskmap-io/riskmap/internal/errs"
	"github.com/riskmap-io/riskmap/pkg/models"
)

func newTestEngine(t *testing.T, assets int) (*Engine, *SQLiteStore) {
	t.Helper()
	store, reg := newTestStore(t, assets)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewEngine(store, reg, logger, DefaultDepth), store
}

func TestBuildSnapshot_LinearChain(t *testing.T) {
	engine, store := newTestEngine(t, 3)
	ctx := context.Background()

	// 1 depends on 2, 2 depends on 3.
	mustAdd(t, store,
		makeRel(1, 2, models.RelDependsOn, models.StrengthStrong),
		makeRel(2, 3, models.RelDependsOn, models.StrengthStrong),
	)

	snap, err := engine.BuildSnapshot(ctx, 1, 3)
	if err != nil {
		t.Fatal(err)
	}

	if snap.TotalDependencies != 2 {
		t.Errorf("TotalDependencies = %d, want 2", snap.TotalDependencies)
	}
	if snap.TotalDependents != 0 {
		t.Errorf("TotalDependents = %d, want 0", snap.TotalDependents)
	}

	want := []models.DependencyNode{
		{AssetID: 2, Level: 1, Strength: models.StrengthStrong, Via: models.RelDependsOn},
		{AssetID: 3, Level: 2, Strength: models.StrengthStrong, Via: models.RelDependsOn},
	}
	if !reflect.DeepEqual(snap.Dependencies, want) {
		t.Errorf("Dependencies = %+v, want %+v", snap.Dependencies, want)
	}

	// Both edges are strong, so the critical path runs the whole chain.
	if snap.CriticalPathLength != 2 {
		t.Errorf("CriticalPathLength = %d, want 2", snap.CriticalPathLength)
	}

	// The tail of the chain sees both upstream nodes as dependents.
	tail, err := engine.BuildSnapshot(ctx, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if tail.TotalDependents != 2 {
		t.Errorf("tail TotalDependents = %d, want 2", tail.TotalDependents)
	}
}

func TestBuildSnapshot_ConfiguredDefaultDepth(t *testing.T) {
	store, reg := newTestStore(t, 3)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	engine := NewEngine(store, reg, logger, 1)

	mustAdd(t, store,
		makeRel(1, 2, models.RelDependsOn, models.StrengthStrong),
		makeRel(2, 3, models.RelDependsOn, models.StrengthStrong),
	)

	// Depth 0 selects the engine's configured default of 1, not the
	// package-wide default of 3.
	snap, err := engine.BuildSnapshot(context.Background(), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TotalDependencies != 1 {
		t.Errorf("TotalDependencies = %d, want 1", snap.TotalDependencies)
	}

	// An out-of-range configured default falls back to DefaultDepth.
	fallback := NewEngine(store, reg, logger, 99)
	snap, err = fallback.BuildSnapshot(context.Background(), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TotalDependencies != 2 {
		t.Errorf("fallback TotalDependencies = %d, want 2", snap.TotalDependencies)
	}
}

func TestBuildSnapshot_MaxDepthBoundsTraversal(t *testing.T) {
	engine, store := newTestEngine(t, 4)
	mustAdd(t, store,
		makeRel(1, 2, models.RelDependsOn, models.StrengthWeak),
		makeRel(2, 3, models.RelDependsOn, models.StrengthWeak),
		makeRel(3, 4, models.RelDependsOn, models.StrengthWeak),
	)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TotalDependencies != 1 {
		t.Errorf("TotalDependencies at depth 1 = %d, want 1", snap.TotalDependencies)
	}
}

func TestBuildSnapshot_DepthValidation(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	ctx := context.Background()

	for _, depth := range []int{-1, 6, 100} {
		if _, err := engine.BuildSnapshot(ctx, 1, depth); !errs.IsValidation(err) {
			t.Errorf("depth %d: error = %v, want validation", depth, err)
		}
	}

	// Zero selects the default depth.
	if _, err := engine.BuildSnapshot(ctx, 1, 0); err != nil {
		t.Errorf("depth 0: unexpected error %v", err)
	}
}

func TestBuildSnapshot_UnknownAsset(t *testing.T) {
	engine, _ := newTestEngine(t, 1)
	if _, err := engine.BuildSnapshot(context.Background(), 404, 3); !errs.IsNotFound(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestBuildSnapshot_IsolatedAssetZeroValued(t *testing.T) {
	engine, _ := newTestEngine(t, 1)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TotalDependencies != 0 || snap.TotalDependents != 0 || snap.CriticalPathLength != 0 {
		t.Errorf("counts = %d/%d/%d, want all 0",
			snap.TotalDependencies, snap.TotalDependents, snap.CriticalPathLength)
	}
	if snap.SPOFRisk != 0.0 || snap.CascadeRisk != 0.0 || snap.OverallRisk != 0.0 {
		t.Errorf("risks = %v/%v/%v, want all 0.0", snap.SPOFRisk, snap.CascadeRisk, snap.OverallRisk)
	}
}

func TestBuildSnapshot_Deterministic(t *testing.T) {
	engine, store := newTestEngine(t, 5)
	mustAdd(t, store,
		makeRel(2, 1, models.RelDependsOn, models.StrengthCritical),
		makeRel(3, 1, models.RelDependsOn, models.StrengthStrong),
		makeRel(4, 3, models.RelHostedOn, models.StrengthModerate),
		makeRel(1, 5, models.RelCommunicatesWith, models.StrengthWeak),
	)
	ctx := context.Background()

	a, err := engine.BuildSnapshot(ctx, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	b, err := engine.BuildSnapshot(ctx, 1, 4)
	if err != nil {
		t.Fatal(err)
	}

	// Exact equality, including float risk scores. Only the measured
	// duration may differ between runs.
	a.CalculationDurationMS = 0
	b.CalculationDurationMS = 0
	if !reflect.DeepEqual(a, b) {
		t.Errorf("snapshots differ:\n%+v\n%+v", a, b)
	}
}

func TestBuildSnapshot_CycleTerminates(t *testing.T) {
	engine, store := newTestEngine(t, 3)
	mustAdd(t, store,
		makeRel(1, 2, models.RelCommunicatesWith, models.StrengthModerate),
		makeRel(2, 3, models.RelCommunicatesWith, models.StrengthModerate),
		makeRel(3, 1, models.RelCommunicatesWith, models.StrengthModerate),
	)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		snap, err := engine.BuildSnapshot(ctx, id, 5)
		if err != nil {
			t.Fatalf("asset %d: %v", id, err)
		}
		if snap.TotalDependents != 2 {
			t.Errorf("asset %d: TotalDependents = %d, want 2", id, snap.TotalDependents)
		}
	}
}

func TestCriticalPath_OnlyStrongAndCriticalEdges(t *testing.T) {
	engine, store := newTestEngine(t, 4)
	// strong -> critical -> weak: the weak edge caps the path at 2.
	mustAdd(t, store,
		makeRel(1, 2, models.RelDependsOn, models.StrengthStrong),
		makeRel(2, 3, models.RelDependsOn, models.StrengthCritical),
		makeRel(3, 4, models.RelDependsOn, models.StrengthWeak),
	)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if snap.CriticalPathLength != 2 {
		t.Errorf("CriticalPathLength = %d, want 2", snap.CriticalPathLength)
	}
}

func TestCriticalPath_CycleSafe(t *testing.T) {
	engine, store := newTestEngine(t, 2)
	// Mutual strong dependency; the path must not loop.
	mustAdd(t, store,
		makeRel(1, 2, models.RelDependsOn, models.StrengthStrong),
		makeRel(2, 1, models.RelDependsOn, models.StrengthStrong),
	)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if snap.CriticalPathLength != 1 {
		t.Errorf("CriticalPathLength = %d, want 1", snap.CriticalPathLength)
	}
}

func TestSPOFRisk_HubWithSoleDependents(t *testing.T) {
	engine, store := newTestEngine(t, 3)
	// Assets 2 and 3 depend solely on 1.
	mustAdd(t, store,
		makeRel(2, 1, models.RelDependsOn, models.StrengthStrong),
		makeRel(3, 1, models.RelDependsOn, models.StrengthCritical),
	)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}

	// Both dependents are bound: D/(D+1) * 2/2 = 2/3.
	want := 2.0 / 3.0
	if math.Abs(snap.SPOFRisk-want) > 1e-9 {
		t.Errorf("SPOFRisk = %v, want %v", snap.SPOFRisk, want)
	}
}

func TestSPOFRisk_AlternatePathLowersRisk(t *testing.T) {
	engine, store := newTestEngine(t, 3)
	// Asset 2 is load-balanced across 1 and 3: losing 1 leaves a path.
	mustAdd(t, store,
		makeRel(2, 1, models.RelLoadBalancedBy, models.StrengthStrong),
		makeRel(2, 3, models.RelLoadBalancedBy, models.StrengthStrong),
	)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TotalDependents != 1 {
		t.Fatalf("TotalDependents = %d, want 1", snap.TotalDependents)
	}
	if snap.SPOFRisk != 0.0 {
		t.Errorf("SPOFRisk = %v, want 0.0 (redundant path exists)", snap.SPOFRisk)
	}
}

func TestCascadeRisk_StrengthDerivedPropagation(t *testing.T) {
	engine, store := newTestEngine(t, 3)
	mustAdd(t, store,
		makeRel(2, 1, models.RelDependsOn, models.StrengthStrong),   // factor 0.7
		makeRel(3, 1, models.RelDependsOn, models.StrengthCritical), // factor 0.9
	)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}

	want := (0.7 + 0.9) / 2.0
	if math.Abs(snap.CascadeRisk-want) > 1e-9 {
		t.Errorf("CascadeRisk = %v, want %v", snap.CascadeRisk, want)
	}
}

func TestCascadeRisk_AttenuatesPerHop(t *testing.T) {
	engine, store := newTestEngine(t, 3)
	// 3 -> 2 -> 1: asset 3 fails with probability 0.7 * 0.7.
	mustAdd(t, store,
		makeRel(2, 1, models.RelDependsOn, models.StrengthStrong),
		makeRel(3, 2, models.RelDependsOn, models.StrengthStrong),
	)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}

	want := (0.7 + 0.7*0.7) / 2.0
	if math.Abs(snap.CascadeRisk-want) > 1e-9 {
		t.Errorf("CascadeRisk = %v, want %v", snap.CascadeRisk, want)
	}
}

func TestBuildSnapshot_DeduplicatesDiscoveryEvents(t *testing.T) {
	engine, store := newTestEngine(t, 2)
	// The same logical edge recorded by two discovery events counts once.
	a := makeRel(2, 1, models.RelDependsOn, models.StrengthStrong)
	a.DiscoveredVia = "netflow"
	b := makeRel(2, 1, models.RelDependsOn, models.StrengthWeak)
	b.DiscoveredVia = "manual"
	mustAdd(t, store, a, b)

	snap, err := engine.BuildSnapshot(context.Background(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TotalDependents != 1 {
		t.Errorf("TotalDependents = %d, want 1 after dedup", snap.TotalDependents)
	}
	// First-inserted edge wins the tie for discovery strength.
	if snap.Dependents[0].Strength != models.StrengthStrong {
		t.Errorf("Strength = %s, want strong (first discovery event)", snap.Dependents[0].Strength)
	}
}

func TestBuildSnapshot_InactiveEdgesExcluded(t *testing.T) {
	engine, store := newTestEngine(t, 2)
	ctx := context.Background()

	created, err := store.Add(ctx, makeRel(2, 1, models.RelDependsOn, models.StrengthStrong))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(ctx, created.ID); err != nil {
		t.Fatal(err)
	}

	snap, err := engine.BuildSnapshot(ctx, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TotalDependents != 0 {
		t.Errorf("TotalDependents = %d, want 0 (edge is soft-deleted)", snap.TotalDependents)
	}
}

func TestGetSnapshot_CachesPerEdgeVersion(t *testing.T) {
	engine, store := newTestEngine(t, 3)
	ctx := context.Background()
	mustAdd(t, store, makeRel(2, 1, models.RelDependsOn, models.StrengthStrong))

	first, err := engine.GetSnapshot(ctx, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if first.TotalDependents != 1 {
		t.Fatalf("TotalDependents = %d, want 1", first.TotalDependents)
	}

	// Cached result is served for the same edge version.
	again, err := engine.GetSnapshot(ctx, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if again.EdgeVersion != first.EdgeVersion {
		t.Errorf("EdgeVersion = %d, want %d", again.EdgeVersion, first.EdgeVersion)
	}

	// A mutation bumps the version and the next read reflects the change.
	mustAdd(t, store, makeRel(3, 1, models.RelDependsOn, models.StrengthStrong))
	refreshed, err := engine.GetSnapshot(ctx, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.TotalDependents != 2 {
		t.Errorf("TotalDependents after mutation = %d, want 2", refreshed.TotalDependents)
	}
	if refreshed.EdgeVersion == first.EdgeVersion {
		t.Error("EdgeVersion should change after an edge mutation")
	}
}

func TestDirectionSemantics(t *testing.T) {
	cases := []struct {
		typ     models.RelationshipType
		forward bool
		reverse bool
	}{
		{models.RelDependsOn, true, false},
		{models.RelHostedOn, true, false},
		{models.RelBackupOf, true, false},
		{models.RelLoadBalancedBy, true, false},
		{models.RelProvidesService, false, true},
		{models.RelHosts, false, true},
		{models.RelMonitors, false, true},
		{models.RelCommunicatesWith, true, true},
		{models.RelClusterMember, true, true},
		{models.RelProcessesData, true, true},
	}
	for _, tc := range cases {
		f, r := needsDirection(tc.typ)
		if f != tc.forward || r != tc.reverse {
			t.Errorf("needsDirection(%s) = %v,%v; want %v,%v", tc.typ, f, r, tc.forward, tc.reverse)
		}
	}
}
