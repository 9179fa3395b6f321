package server

import (
	"encoding/json"
	"net/http"

	"stemset/cache"
	"stemset/config"
	"stemset/core/analysis"
	"stemset/core/separation"
	"stemset/core/upload"
	"stemset/repository"
	"stemset/storage"
)

// APIHandler carries the dependencies every HTTP handler needs.
type APIHandler struct {
	cfg       *config.Config
	userRepo  repository.UserRepository
	songRepo  repository.SongRepository
	store     storage.ObjectStore
	orch      *upload.Orchestrator
	sepClient *separation.Client
	progress  *cache.ProgressCache
	analyzer  analysis.Provider
	songHub   *SongHub
}

// NewAPIHandler wires the handler set.
func NewAPIHandler(cfg *config.Config, userRepo repository.UserRepository,
	songRepo repository.SongRepository, store storage.ObjectStore,
	orch *upload.Orchestrator, sepClient *separation.Client,
	progress *cache.ProgressCache, analyzer analysis.Provider, songHub *SongHub) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		userRepo:  userRepo,
		songRepo:  songRepo,
		store:     store,
		orch:      orch,
		sepClient: sepClient,
		progress:  progress,
		analyzer:  analyzer,
		songHub:   songHub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
