package server

import (
	"net/http"

	"stemset/cache"
	"stemset/db"
)

// HealthHandler reports the service's own health plus the reachability of
// its dependencies. The service is "ok" as long as it can serve; dependency
// failures are reported but do not flip the top-level status, because the
// mixer keeps working on cached data when the backend is down.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	deps := map[string]string{
		"separation": "ok",
		"database":   "ok",
		"redis":      "ok",
	}

	if err := h.sepClient.Health(r.Context()); err != nil {
		deps["separation"] = err.Error()
	}
	if db.DB == nil || db.DB.PingContext(r.Context()) != nil {
		deps["database"] = "unreachable"
	}
	if err := cache.TestRedis(); err != nil {
		deps["redis"] = "unreachable"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"dependencies": deps,
	})
}
