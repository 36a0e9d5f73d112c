package audit

// Event types for session audit logging.
const (
	EventSessionOpened      = "session_opened"
	EventSessionClosed      = "session_closed"
	EventClientBound        = "client_bound"
	EventClientUnbound      = "client_unbound"
	EventTerminalAttached   = "terminal_attached"
	EventSurfaceEvicted     = "surface_evicted"
	EventReconnectStarted   = "reconnect_started"
	EventReconnectSucceeded = "reconnect_succeeded"
	EventReconnectFailed    = "reconnect_failed"
	EventReconnectGivenUp   = "reconnect_given_up"
)
