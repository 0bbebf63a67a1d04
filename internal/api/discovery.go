package api

import (
	"context"
	"net/http"
	"time"
)

// @Title: Scan Network
// @Route: POST /api/discovery/scan
// @Description: Scans the local subnets for other yo nodes and adds them to the network map
// @Response: 202 Accepted
func (s *Service) HandleDiscoveryScan(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Scanning is not available")
		return
	}

	go func() {
		s.logger.Info("API: Starting network discovery scan...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		count, err := s.scanner.ScanInto(ctx, s.network)
		if err != nil {
			s.logger.Errorf("Discovery scan failed: %v", err)
			return
		}
		s.logger.Infof("Discovery scan complete. Added %d nodes.", count)
	}()

	w.WriteHeader(http.StatusAccepted)
}
