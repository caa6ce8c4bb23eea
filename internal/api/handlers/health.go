package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
)

// HealthHandler returns a handler for the GET /api/health endpoint. It reports
// whether the asset root is readable without revealing where it is.
func HealthHandler(assetRoot, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		status, code := "ok", http.StatusOK
		assets := "ok"
		if _, err := os.ReadDir(assetRoot); err != nil {
			slog.Warn("asset root unreadable", "assetRoot", assetRoot, "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
			assets = "unreadable"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"version": version,
			"assets":  assets,
		}); err != nil {
			slog.Error("failed to encode health response", "error", err)
		}
	}
}
