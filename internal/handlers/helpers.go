package handlers

import (
	"net/http"
	"strconv"

	"github.com/skiffterm/skiff/internal/audit"
)

// auditQueryFromRequest builds audit query options from request params.
func auditQueryFromRequest(r *http.Request) audit.QueryOptions {
	opts := audit.QueryOptions{
		SessionID: r.URL.Query().Get("session_id"),
		ServerID:  r.URL.Query().Get("server_id"),
		EventType: r.URL.Query().Get("event_type"),
		Limit:     100,
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}
	return opts
}
