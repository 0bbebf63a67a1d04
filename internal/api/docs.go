package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// @Title: List Docs
// @Route: GET /api/docs
// @Description: Lists the embedded documentation pages
// @Response: {"docs": ["api.adoc", "yo.adoc"]}
func (s *Service) HandleDocsList(w http.ResponseWriter, r *http.Request) {
	names, err := s.docs.ListDocs()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list docs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"docs": names})
}

// @Title: Get Doc
// @Route: GET /api/docs/{name}
// @Description: Returns one documentation page rendered to HTML
// @Response: text/html fragment
func (s *Service) HandleDoc(w http.ResponseWriter, r *http.Request) {
	html, err := s.docs.GetDoc(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "Doc not found")
			return
		}
		s.logger.Errorf("API: rendering doc failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to render doc")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
