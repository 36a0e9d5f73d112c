package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skiffterm/skiff/internal/serverstore"
)

// ListServers returns every saved server.
func (a *API) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := a.Store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]serverstore.Server{"servers": servers})
}

// CreateServer saves a new server record.
func (a *API) CreateServer(w http.ResponseWriter, r *http.Request) {
	var srv serverstore.Server
	if err := json.NewDecoder(r.Body).Decode(&srv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if srv.Name == "" || srv.Host == "" {
		writeError(w, http.StatusBadRequest, "name and host are required")
		return
	}
	if err := a.Store.Create(&srv); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

// UpdateServer saves changes to an existing server record. The ID comes
// from the URL; an ID in the body is ignored.
func (a *API) UpdateServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := a.Store.Get(id)
	if err != nil {
		if errors.Is(err, serverstore.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var srv serverstore.Server
	if err := json.NewDecoder(r.Body).Decode(&srv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if srv.Name == "" || srv.Host == "" {
		writeError(w, http.StatusBadRequest, "name and host are required")
		return
	}
	srv.ID = existing.ID
	if srv.Port == 0 {
		srv.Port = existing.Port
	}

	if err := a.Store.Update(&srv); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

// DeleteServer removes a server record and closes its sessions.
func (a *API) DeleteServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Store.Delete(id); err != nil {
		if errors.Is(err, serverstore.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.Mgr.CloseForServer(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

// LockServer sets the administrative lock flag on a server.
func (a *API) LockServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.Store.SetLocked(id, req.Locked); err != nil {
		if errors.Is(err, serverstore.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"locked": req.Locked})
}

// AuditLog returns recent audit entries, optionally filtered by session.
func (a *API) AuditLog(w http.ResponseWriter, r *http.Request) {
	if a.Auditor == nil {
		writeError(w, http.StatusNotFound, "audit log disabled")
		return
	}
	entries, err := a.Auditor.Query(auditQueryFromRequest(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
