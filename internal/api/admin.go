package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/fidde/codesnip/pkg/models"
)

// listBackups returns metadata for all saved backups.
// GET /api/v1/admin/backups
func (s *Server) listBackups(w http.ResponseWriter, r *http.Request) {
	list, err := s.backups.List(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"backups": list,
		"total":   len(list),
	})
}

// createBackup snapshots the store.
// POST /api/v1/admin/backups?force=true
func (s *Server) createBackup(w http.ResponseWriter, r *http.Request) {
	var opts models.BackupSaveOptions
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &opts); err != nil {
			s.respondErr(w, r, err)
			return
		}
	}
	if r.URL.Query().Get("force") == "true" {
		opts.Force = true
	}

	meta, err := s.backups.Create(r.Context(), opts)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Backup created successfully",
		"backup":  meta,
	})
}

// getBackup returns one backup's metadata.
// GET /api/v1/admin/backups/{name}
func (s *Server) getBackup(w http.ResponseWriter, r *http.Request) {
	name, ok := backupName(w, r)
	if !ok {
		return
	}

	meta, err := s.backups.Get(r.Context(), name)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, meta)
}

// restoreBackup replaces the store contents with a backup.
// POST /api/v1/admin/backups/{name}/restore
func (s *Server) restoreBackup(w http.ResponseWriter, r *http.Request) {
	name, ok := backupName(w, r)
	if !ok {
		return
	}

	result, err := s.backups.Restore(r.Context(), name)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// deleteBackup removes a backup.
// DELETE /api/v1/admin/backups/{name}
func (s *Server) deleteBackup(w http.ResponseWriter, r *http.Request) {
	name, ok := backupName(w, r)
	if !ok {
		return
	}

	if err := s.backups.Delete(r.Context(), name); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func backupName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid backup name encoding")
		return "", false
	}
	return name, true
}
