package server

import "net/http"

// RegisterRoutes registers all API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /api/v1/score", s.handleScore)

	mux.HandleFunc("GET /api/v1/assets", s.handleAssets)
	mux.HandleFunc("GET /api/v1/assets/{id}", s.handleAssetByID)
	mux.HandleFunc("GET /api/v1/assets/{id}/score", s.handleAssetScore)

	mux.HandleFunc("GET /api/v1/relationships", s.handleRelationships)
	mux.HandleFunc("GET /api/v1/graph/snapshot/{id}", s.handleSnapshot)
	mux.HandleFunc("GET /api/v1/scenario/{id}", s.handleScenario)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)

	mux.HandleFunc("GET /api/v1/export/json", s.handleExportJSON)
	mux.HandleFunc("GET /api/v1/export/dot", s.handleExportDOT)
	mux.HandleFunc("GET /api/v1/export/mermaid", s.handleExportMermaid)

	if !s.readOnly {
		mux.HandleFunc("POST /api/v1/assets", s.handleCreateAsset)
		mux.HandleFunc("POST /api/v1/relationships", s.handleCreateRelationship)
		mux.HandleFunc("DELETE /api/v1/relationships/{id}", s.handleDeleteRelationship)
		mux.HandleFunc("POST /api/v1/relationships/bulk", s.handleBulkImport)
	}
}
