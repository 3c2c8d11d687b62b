package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/riskmap-io/riskmap/internal/criticality"
	"github.com/riskmap-io/riskmap/internal/errs"
	"github.com/riskmap-io/riskmap/internal/graph"
	"github.com/riskmap-io/riskmap/internal/registry"
	"github.com/riskmap-io/riskmap/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeKindError maps the error taxonomy onto HTTP status codes. Internal
// errors are logged but never leak details to the client.
func (s *Server) writeKindError(w http.ResponseWriter, err error, op string) {
	switch {
	case errs.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errs.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var meta models.AssetMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, "invalid metadata payload")
		return
	}
	writeJSON(w, http.StatusOK, criticality.Score(meta))
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.reg.List(r.Context(), registry.Filter{
		Environment: r.URL.Query().Get("environment"),
		AssetType:   r.URL.Query().Get("type"),
	})
	if err != nil {
		s.writeKindError(w, err, "listing assets")
		return
	}
	if assets == nil {
		assets = []registry.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleAssetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	asset, err := s.reg.Get(r.Context(), id)
	if err != nil {
		s.writeKindError(w, err, "getting asset")
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleAssetScore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	meta, err := s.reg.GetMetadata(r.Context(), id)
	if err != nil {
		s.writeKindError(w, err, "getting asset metadata")
		return
	}
	writeJSON(w, http.StatusOK, criticality.Score(meta))
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var asset registry.Asset
	if err := json.NewDecoder(r.Body).Decode(&asset); err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset payload")
		return
	}
	id, err := s.reg.Create(r.Context(), asset)
	if err != nil {
		s.writeKindError(w, err, "creating asset")
		return
	}
	asset.ID = id
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := graph.Filter{Type: models.RelationshipType(q.Get("type"))}
	if v := q.Get("source"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source id")
			return
		}
		filter.SourceAssetID = id
	}
	if v := q.Get("target"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid target id")
			return
		}
		filter.TargetAssetID = id
	}

	rels, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.writeKindError(w, err, "listing relationships")
		return
	}
	if rels == nil {
		rels = []models.Relationship{}
	}
	writeJSON(w, http.StatusOK, rels)
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var rel models.Relationship
	if err := json.NewDecoder(r.Body).Decode(&rel); err != nil {
		writeError(w, http.StatusBadRequest, "invalid relationship payload")
		return
	}
	created, err := s.store.Add(r.Context(), rel)
	if err != nil {
		s.writeKindError(w, err, "adding relationship")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "relationship id required")
		return
	}
	if err := s.store.Remove(r.Context(), id); err != nil {
		s.writeKindError(w, err, "removing relationship")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type bulkImportRequest struct {
	Relationships     []graph.ImportRecord `json:"relationships"`
	AutoCreateReverse bool                 `json:"auto_create_reverse"`
	ValidateAssets    *bool                `json:"validate_assets"`
}

func (s *Server) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	var req bulkImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid bulk import payload")
		return
	}

	validate := true
	if req.ValidateAssets != nil {
		validate = *req.ValidateAssets
	}

	result := s.store.BulkImport(r.Context(), req.Relationships, graph.ImportOptions{
		AutoCreateReverse: req.AutoCreateReverse,
		ValidateAssets:    validate,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	maxDepth := 0
	if v := r.URL.Query().Get("max_depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_depth")
			return
		}
		maxDepth = d
	}

	snap, err := s.engine.GetSnapshot(r.Context(), id, maxDepth)
	if err != nil {
		s.writeKindError(w, err, "building snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	probability := 0.0
	if v := r.URL.Query().Get("probability"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p <= 0 || p > 1 {
			writeError(w, http.StatusBadRequest, "probability must be in (0,1]")
			return
		}
		probability = p
	}

	scn, err := s.generator.GenerateWithProbability(r.Context(), id, name, probability)
	if err != nil {
		s.writeKindError(w, err, "generating scenario")
		return
	}
	writeJSON(w, http.StatusOK, scn)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetCount, err := s.reg.Count(ctx)
	if err != nil {
		s.writeKindError(w, err, "counting assets")
		return
	}
	relCount, err := s.store.RelationshipCount(ctx)
	if err != nil {
		s.writeKindError(w, err, "counting relationships")
		return
	}
	byType, err := s.store.CountByType(ctx)
	if err != nil {
		s.writeKindError(w, err, "counting by type")
		return
	}
	version, err := s.store.EdgeVersion(ctx)
	if err != nil {
		s.writeKindError(w, err, "reading edge version")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assets":                assetCount,
		"relationships":         relCount,
		"relationships_by_type": byType,
		"edge_version":          version,
	})
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	out, err := graph.ExportJSON(r.Context(), s.store, s.reg)
	if err != nil {
		s.writeKindError(w, err, "exporting json")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleExportDOT(w http.ResponseWriter, r *http.Request) {
	out, err := graph.ExportDOT(r.Context(), s.store, s.reg)
	if err != nil {
		s.writeKindError(w, err, "exporting dot")
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleExportMermaid(w http.ResponseWriter, r *http.Request) {
	out, err := graph.ExportMermaid(r.Context(), s.store, s.reg)
	if err != nil {
		s.writeKindError(w, err, "exporting mermaid")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(out))
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "asset id must be an integer")
		return 0, false
	}
	return id, true
}
