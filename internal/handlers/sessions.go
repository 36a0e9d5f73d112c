package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skiffterm/skiff/internal/serverstore"
	"github.com/skiffterm/skiff/internal/session"
	"github.com/skiffterm/skiff/internal/sshclient"
)

// sessionInfo is the wire shape of one session in list responses.
type sessionInfo struct {
	ID            string `json:"id"`
	ServerID      string `json:"server_id"`
	Title         string `json:"title"`
	TabID         string `json:"tab_id,omitempty"`
	Transport     string `json:"transport"`
	State         string `json:"state"`
	Attempt       int    `json:"attempt,omitempty"`
	FailReason    string `json:"fail_reason,omitempty"`
	AutoReconnect bool   `json:"auto_reconnect"`
	Active        bool   `json:"active"`
}

func (a *API) sessionInfo(s *session.Session, activeID string) sessionInfo {
	return sessionInfo{
		ID:            s.ID,
		ServerID:      s.ServerID,
		Title:         s.Title(),
		TabID:         s.TabID,
		Transport:     string(s.Transport),
		State:         s.State().String(),
		Attempt:       s.Attempt(),
		FailReason:    s.FailReason(),
		AutoReconnect: s.AutoReconnect,
		Active:        s.ID == activeID,
	}
}

// ListSessions returns every live session in tab order.
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	activeID := ""
	if active := a.Mgr.ActiveSession(); active != nil {
		activeID = active.ID
	}

	sessions := a.Mgr.Sessions()
	result := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, a.sessionInfo(s, activeID))
	}
	writeJSON(w, http.StatusOK, map[string][]sessionInfo{"sessions": result})
}

type openSessionRequest struct {
	ServerID  string `json:"server_id"`
	ForceNew  bool   `json:"force_new"`
	Transport string `json:"transport"`
}

// OpenSession opens (or returns an existing) session for a server.
func (a *API) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	srv, err := a.Store.Get(req.ServerID)
	if err != nil {
		if errors.Is(err, serverstore.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	transport := sshclient.TransportDirect
	if req.Transport == string(sshclient.TransportTmux) {
		transport = sshclient.TransportTmux
	}

	s, err := a.Mgr.Open(srv, transport, req.ForceNew)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrCapacityExceeded):
			writeError(w, http.StatusPaymentRequired, "session limit reached")
		case errors.Is(err, session.ErrServerLocked):
			writeError(w, http.StatusForbidden, "server is locked")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, a.sessionInfo(s, s.ID))
}

type splitPaneRequest struct {
	ServerID  string `json:"server_id"`
	Transport string `json:"transport"`
	SplitPath []int  `json:"split_path"`
}

// SplitPane opens a pane inside the tab identified by the URL session ID.
func (a *API) SplitPane(w http.ResponseWriter, r *http.Request) {
	tabID := chi.URLParam(r, "id")
	if a.Mgr.Get(tabID) == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req splitPaneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	srv, err := a.Store.Get(req.ServerID)
	if err != nil {
		if errors.Is(err, serverstore.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	transport := sshclient.TransportDirect
	if req.Transport == string(sshclient.TransportTmux) {
		transport = sshclient.TransportTmux
	}

	p, err := a.Mgr.SplitPane(srv, transport, tabID, req.SplitPath)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrCapacityExceeded):
			writeError(w, http.StatusPaymentRequired, "session limit reached")
		case errors.Is(err, session.ErrServerLocked):
			writeError(w, http.StatusForbidden, "server is locked")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, a.sessionInfo(p, p.ID))
}

// CloseSession closes a session. Closing an unknown session succeeds; the
// close path is idempotent.
func (a *API) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.Mgr.Close(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

type selectRequest struct {
	Index *int   `json:"index,omitempty"`
	Move  string `json:"move,omitempty"` // "next" or "previous"
}

// SelectSession changes the active selection by index or direction.
func (a *API) SelectSession(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.Index != nil:
		a.Mgr.SelectAt(*req.Index)
	case req.Move == "next":
		a.Mgr.SelectNext()
	case req.Move == "previous":
		a.Mgr.SelectPrevious()
	default:
		writeError(w, http.StatusBadRequest, "index or move required")
		return
	}

	activeID := ""
	if active := a.Mgr.ActiveSession(); active != nil {
		activeID = active.ID
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": activeID})
}

type renameRequest struct {
	Title string `json:"title"`
}

// RenameSession updates a session's display title.
func (a *API) RenameSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s := a.Mgr.Get(id)
	if s == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	s.SetTitle(req.Title)
	writeJSON(w, http.StatusOK, map[string]string{"title": s.Title()})
}

// SessionEvents returns the lifecycle events for a session, most recent
// last. A limit query param caps the count.
func (a *API) SessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events := a.Mgr.Events(id)
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		events = a.Mgr.RecentEvents(id, limit)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events":      events,
		"transitions": a.Mgr.Transitions(id),
	})
}
