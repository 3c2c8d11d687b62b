package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/riskmap-io/riskmap/internal/errs"
	"github.com/riskmap-io/riskmap/internal/registry"
	"github.com/riskmap-io/riskmap/pkg/models"
)

// Traversal depth bounds for snapshot computation.
const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 3
)

// Blend weights for the overall dependency risk.
const (
	spofWeight    = 0.4
	cascadeWeight = 0.4
	pathWeight    = 0.2
)

// Engine builds dependency graph snapshots. It is stateless between
// invocations beyond the derived cache it writes through the store;
// snapshot builds for different assets run fully in parallel over
// independent edge-list snapshots.
type Engine struct {
	store        Store
	reg          registry.Registry
	logger       *slog.Logger
	defaultDepth int
}

// NewEngine creates a dependency graph engine. defaultDepth is the depth
// used when a caller passes 0; values outside [MinDepth, MaxDepth] fall back
// to DefaultDepth.
func NewEngine(store Store, reg registry.Registry, logger *slog.Logger, defaultDepth int) *Engine {
	if defaultDepth < MinDepth || defaultDepth > MaxDepth {
		defaultDepth = DefaultDepth
	}
	return &Engine{store: store, reg: reg, logger: logger, defaultDepth: defaultDepth}
}

// edgeRef is one deduplicated directed adjacency entry.
type edgeRef struct {
	to       int64
	strength models.Strength
	typ      models.RelationshipType
	recovery int
}

// adjacency holds both traversal directions built from one consistent
// edge-list snapshot. needs[a] lists assets a depends on; serves[a] lists
// assets that depend on a.
type adjacency struct {
	needs  map[int64][]edgeRef
	serves map[int64][]edgeRef
}

// needsDirection reports whether the relationship type means "source needs
// target". The reverse-flowing types mean "target needs source", and the
// symmetric types count in both directions.
func needsDirection(t models.RelationshipType) (forward, reverse bool) {
	switch t {
	case models.RelDependsOn, models.RelHostedOn, models.RelBackupOf, models.RelLoadBalancedBy:
		return true, false
	case models.RelProvidesService, models.RelHosts, models.RelMonitors:
		return false, true
	default: // communicates_with, cluster_member, processes_data_from
		return true, true
	}
}

// buildAdjacency constructs both adjacency directions from the active edge
// list, deduplicating by (source, target, type) with first occurrence
// winning. Insertion order of the edge list is preserved, which makes every
// traversal deterministic for a fixed edge set.
func buildAdjacency(edges []models.Relationship) adjacency {
	adj := adjacency{
		needs:  make(map[int64][]edgeRef),
		serves: make(map[int64][]edgeRef),
	}

	type key struct {
		src, tgt int64
		typ      models.RelationshipType
	}
	seen := make(map[key]bool)

	add := func(from, to int64, e models.Relationship) {
		adj.needs[from] = append(adj.needs[from], edgeRef{
			to: to, strength: e.Strength, typ: e.Type, recovery: e.RecoveryTimeMinutes,
		})
		adj.serves[to] = append(adj.serves[to], edgeRef{
			to: from, strength: e.Strength, typ: e.Type, recovery: e.RecoveryTimeMinutes,
		})
	}

	for _, e := range edges {
		k := key{e.SourceAssetID, e.TargetAssetID, e.Type}
		if seen[k] {
			continue
		}
		seen[k] = true

		forward, reverse := needsDirection(e.Type)
		if forward {
			add(e.SourceAssetID, e.TargetAssetID, e)
		}
		if reverse {
			add(e.TargetAssetID, e.SourceAssetID, e)
		}
	}

	return adj
}

// BuildSnapshot computes a fresh dependency graph snapshot for the asset.
// maxDepth 0 selects the default; values outside [MinDepth, MaxDepth] are a
// validation error. An asset with no relationships yields a zero-valued
// snapshot, not an error.
func (e *Engine) BuildSnapshot(ctx context.Context, assetID int64, maxDepth int) (*models.DependencyGraphSnapshot, error) {
	if maxDepth == 0 {
		maxDepth = e.defaultDepth
	}
	if maxDepth < MinDepth || maxDepth > MaxDepth {
		return nil, errs.Validation("max_depth %d out of [%d,%d]", maxDepth, MinDepth, MaxDepth)
	}

	ok, err := e.reg.Exists(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("checking asset %d: %w", assetID, err)
	}
	if !ok {
		return nil, errs.NotFound("asset %d not found", assetID)
	}

	// Edge list and version are fetched once up front; traversal performs
	// no further I/O.
	version, err := e.store.EdgeVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading edge version: %w", err)
	}
	edges, err := e.store.ActiveEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}

	start := time.Now()
	adj := buildAdjacency(edges)

	deps := traverse(adj.needs, assetID, maxDepth)
	dependents := traverse(adj.serves, assetID, maxDepth)

	snap := &models.DependencyGraphSnapshot{
		AssetID:            assetID,
		DependencyLevel:    0,
		TotalDependencies:  len(deps),
		TotalDependents:    len(dependents),
		CriticalPathLength: criticalPathLength(adj.needs, assetID),
		Dependencies:       deps,
		Dependents:         dependents,
		MaxDepth:           maxDepth,
		EdgeVersion:        version,
	}

	snap.SPOFRisk = spofRisk(adj, assetID, dependents)
	snap.CascadeRisk = cascadeRisk(adj.serves, assetID, dependents, maxDepth)
	snap.OverallRisk = spofWeight*snap.SPOFRisk +
		cascadeWeight*snap.CascadeRisk +
		pathWeight*normalizePathLength(snap.CriticalPathLength)

	snap.CalculationDurationMS = time.Since(start).Milliseconds()

	if e.logger != nil {
		e.logger.Debug("snapshot built", "assetID", assetID,
			"dependencies", snap.TotalDependencies, "dependents", snap.TotalDependents,
			"overallRisk", snap.OverallRisk, "durationMs", snap.CalculationDurationMS)
	}
	return snap, nil
}

// GetSnapshot returns the cached snapshot for (assetID, maxDepth) at the
// current edge version, building and caching it on miss. Because the cache
// key carries the edge version, any mutation of the edge set invalidates
// prior entries implicitly.
func (e *Engine) GetSnapshot(ctx context.Context, assetID int64, maxDepth int) (*models.DependencyGraphSnapshot, error) {
	if maxDepth == 0 {
		maxDepth = e.defaultDepth
	}
	if maxDepth < MinDepth || maxDepth > MaxDepth {
		return nil, errs.Validation("max_depth %d out of [%d,%d]", maxDepth, MinDepth, MaxDepth)
	}

	version, err := e.store.EdgeVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading edge version: %w", err)
	}

	key := snapshotKey(assetID, maxDepth, version)
	if blob, err := e.store.GetBlob(ctx, key); err == nil && blob != nil {
		var cached models.DependencyGraphSnapshot
		if err := json.Unmarshal(blob, &cached); err == nil {
			return &cached, nil
		}
	}

	snap, err := e.BuildSnapshot(ctx, assetID, maxDepth)
	if err != nil {
		return nil, err
	}

	if blob, err := json.Marshal(snap); err == nil {
		if err := e.store.PutBlob(ctx, key, blob); err != nil && e.logger != nil {
			e.logger.Warn("caching snapshot", "assetID", assetID, "error", err)
		}
	}
	return snap, nil
}

func snapshotKey(assetID int64, maxDepth int, version int64) string {
	return fmt.Sprintf("snapshot:%d:depth%d:v%d", assetID, maxDepth, version)
}

// traverse performs a breadth-first walk from root along the given
// adjacency up to maxDepth hops. Each discovered node records its hop level
// and the strength/type of the edge that first reached it; ties are broken
// by edge insertion order.
func traverse(adj map[int64][]edgeRef, root int64, maxDepth int) []models.DependencyNode {
	type queueItem struct {
		id    int64
		depth int
	}

	visited := map[int64]bool{root: true}
	queue := []queueItem{{id: root, depth: 0}}
	var result []models.DependencyNode

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		for _, ref := range adj[current.id] {
			if visited[ref.to] {
				continue
			}
			visited[ref.to] = true
			result = append(result, models.DependencyNode{
				AssetID:  ref.to,
				Level:    current.depth + 1,
				Strength: ref.strength,
				Via:      ref.typ,
			})
			queue = append(queue, queueItem{id: ref.to, depth: current.depth + 1})
		}
	}

	return result
}

// criticalPathLength returns the length in hops of the longest simple path
// from root where every edge is strong or critical. DFS with per-node
// memoization; an on-path set keeps the recursion finite on cyclic graphs.
func criticalPathLength(needs map[int64][]edgeRef, root int64) int {
	memo := make(map[int64]int)
	onPath := make(map[int64]bool)

	var dfs func(id int64) int
	dfs = func(id int64) int {
		if best, ok := memo[id]; ok {
			return best
		}
		onPath[id] = true
		best := 0
		for _, ref := range needs[id] {
			if ref.strength != models.StrengthStrong && ref.strength != models.StrengthCritical {
				continue
			}
			if onPath[ref.to] {
				continue
			}
			if l := 1 + dfs(ref.to); l > best {
				best = l
			}
		}
		delete(onPath, id)
		memo[id] = best
		return best
	}

	return dfs(root)
}

// CriticalPathDetail returns the relationship types along the longest
// strong/critical dependency chain from the asset, in path order, together
// with the cumulative recovery time of that chain in minutes. Ties on
// length break toward the larger recovery time.
func (e *Engine) CriticalPathDetail(ctx context.Context, assetID int64) ([]models.RelationshipType, int, error) {
	edges, err := e.store.ActiveEdges(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("listing edges: %w", err)
	}
	adj := buildAdjacency(edges)
	types, recovery := criticalPathDetail(adj.needs, assetID)
	return types, recovery, nil
}

type pathInfo struct {
	length   int
	recovery int
	types    []models.RelationshipType
}

func criticalPathDetail(needs map[int64][]edgeRef, root int64) ([]models.RelationshipType, int) {
	memo := make(map[int64]pathInfo)
	onPath := make(map[int64]bool)

	var dfs func(id int64) pathInfo
	dfs = func(id int64) pathInfo {
		if p, ok := memo[id]; ok {
			return p
		}
		onPath[id] = true
		var best pathInfo
		for _, ref := range needs[id] {
			if ref.strength != models.StrengthStrong && ref.strength != models.StrengthCritical {
				continue
			}
			if onPath[ref.to] {
				continue
			}
			sub := dfs(ref.to)
			cand := pathInfo{
				length:   sub.length + 1,
				recovery: sub.recovery + ref.recovery,
				types:    append([]models.RelationshipType{ref.typ}, sub.types...),
			}
			if cand.length > best.length ||
				(cand.length == best.length && cand.recovery > best.recovery) {
				best = cand
			}
		}
		delete(onPath, id)
		memo[id] = best
		return best
	}

	p := dfs(root)
	return p.types, p.recovery
}

// normalizePathLength maps a critical path length onto [0,1], saturating at
// the maximum traversal depth.
func normalizePathLength(length int) float64 {
	v := float64(length) / float64(MaxDepth)
	if v > 1 {
		return 1
	}
	return v
}

// reachable returns the full set of nodes reachable from start along the
// adjacency. When excluded is non-zero that node is treated as removed:
// it is neither visited nor traversed through.
func reachable(adj map[int64][]edgeRef, start, excluded int64) map[int64]bool {
	visited := map[int64]bool{start: true}
	queue := []int64{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, ref := range adj[current] {
			if ref.to == excluded || visited[ref.to] {
				continue
			}
			visited[ref.to] = true
			queue = append(queue, ref.to)
		}
	}

	delete(visited, start)
	return visited
}

// spofRisk estimates single-point-of-failure risk: the dependent-count
// saturation D/(D+1) weighted by the fraction of dependents for which the
// asset is the sole route to their own dependencies. A dependent with an
// alternate path (a load-balanced peer, say) does not count as bound.
func spofRisk(adj adjacency, root int64, dependents []models.DependencyNode) float64 {
	d := len(dependents)
	if d == 0 {
		return 0
	}

	bound := 0
	for _, dep := range dependents {
		full := reachable(adj.needs, dep.AssetID, 0)
		if !full[root] {
			// The dependent reaches the root only via serving edges; it has
			// no dependency routed through the root.
			continue
		}
		without := reachable(adj.needs, dep.AssetID, root)

		lost := false
		for node := range full {
			if node == root {
				continue
			}
			if !without[node] {
				lost = true
				break
			}
		}
		// Either a downstream dependency disappears without the root, or
		// the root was the dependent's only dependency at all.
		if lost || len(full) == 1 {
			bound++
		}
	}

	return float64(d) / float64(d+1) * float64(bound) / float64(d)
}

// cascadeRisk propagates a failure probability from the root outward along
// dependents, multiplying by each edge's strength-derived factor per hop,
// and normalizes the accumulated probability mass by the dependent count.
func cascadeRisk(serves map[int64][]edgeRef, root int64, dependents []models.DependencyNode, maxDepth int) float64 {
	d := len(dependents)
	if d == 0 {
		return 0
	}

	type queueItem struct {
		id    int64
		depth int
		prob  float64
	}

	probs := make(map[int64]float64)
	visited := map[int64]bool{root: true}
	queue := []queueItem{{id: root, depth: 0, prob: 1.0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		for _, ref := range serves[current.id] {
			if visited[ref.to] {
				continue
			}
			visited[ref.to] = true
			p := current.prob * ref.strength.PropagationFactor()
			probs[ref.to] = p
			queue = append(queue, queueItem{id: ref.to, depth: current.depth + 1, prob: p})
		}
	}

	var sum float64
	for _, dep := range dependents {
		sum += probs[dep.AssetID]
	}
	return sum / float64(d)
}
