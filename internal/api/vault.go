package api

import "net/http"

// @Title: Back Up Vault
// @Route: POST /api/vault/backup
// @Description: Writes a snapshot of the vault database under backups/
// @Response: {"status": "ok", "path": "..."}
func (s *Service) HandleVaultBackup(w http.ResponseWriter, r *http.Request) {
	path, err := s.vault.Backup(20)
	if err != nil {
		s.logger.Errorf("API: vault backup failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to back up vault")
		return
	}
	s.logger.Infof("API: Created vault backup at: %s", path)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": path})
}
