package api

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"

	"yo.mini/yo/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status
// @Response: {"status": "ok"}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns the node version and party name
// @Response: {"version": "...", "status": "ok", "name": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"status":     "ok",
		"name":       s.network.Self().Party.Name,
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	})
}

// @Title: Get Logs
// @Route: GET /api/logs?limit=N
// @Description: Returns recent in-memory log messages, newest first
// @Response: [{"timestamp": "...", "text": "...", "level": "info"}]
func (s *Service) HandleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.logger.GetRecent(limit))
}

// @Title: List Flows
// @Route: GET /api/flows
// @Description: Returns the names of the flows this node can start
// @Response: {"flows": ["YoFlow"]}
func (s *Service) HandleFlows(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"flows": s.flows.Flows()})
}
