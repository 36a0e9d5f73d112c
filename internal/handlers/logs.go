package handlers

import (
	"net/http"
	"strconv"

	"github.com/skiffterm/skiff/internal/logging"
)

// defaultLogLines is returned by the logs endpoint when no count is given.
const defaultLogLines = 200

// Logs returns the tail of the daemon log file.
func (a *API) Logs(w http.ResponseWriter, r *http.Request) {
	n := defaultLogLines
	if v, err := strconv.Atoi(r.URL.Query().Get("lines")); err == nil && v > 0 {
		n = v
	}

	tail, err := logging.ReadTail(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": tail})
}

// ClearLogs truncates the daemon log file.
func (a *API) ClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := logging.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
