// Package handlers exposes the session core over a local HTTP/WebSocket
// API consumed by the UI layer. Rendering stays on the other side of the
// socket; this package only moves bytes and lifecycle commands.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skiffterm/skiff/internal/audit"
	"github.com/skiffterm/skiff/internal/serverstore"
	"github.com/skiffterm/skiff/internal/session"
)

// API bundles the collaborators the handlers need. One instance is
// constructed in main and injected here.
type API struct {
	Mgr     *session.Manager
	Store   *serverstore.Store
	Auditor *audit.Auditor

	// ScrollbackBytes sizes surfaces created on terminal attach.
	ScrollbackBytes int
}

// Routes returns the router for the local API.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/api/servers", a.ListServers)
	r.Post("/api/servers", a.CreateServer)
	r.Put("/api/servers/{id}", a.UpdateServer)
	r.Delete("/api/servers/{id}", a.DeleteServer)
	r.Post("/api/servers/{id}/lock", a.LockServer)

	r.Get("/api/sessions", a.ListSessions)
	r.Post("/api/sessions", a.OpenSession)
	r.Delete("/api/sessions/{id}", a.CloseSession)
	r.Post("/api/sessions/{id}/panes", a.SplitPane)
	r.Post("/api/sessions/{id}/select", a.SelectSession)
	r.Post("/api/sessions/{id}/rename", a.RenameSession)
	r.Get("/api/sessions/{id}/events", a.SessionEvents)
	r.Get("/api/sessions/{id}/terminal", a.TerminalWS)

	r.Get("/api/audit", a.AuditLog)

	r.Get("/api/logs", a.Logs)
	r.Delete("/api/logs", a.ClearLogs)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
