package audit

import (
	"github.com/skiffterm/skiff/internal/session"
)

// sessionEventTypes maps in-process lifecycle events to the audit event
// types persisted for them.
var sessionEventTypes = map[session.EventType]string{
	session.EventOpened:           EventSessionOpened,
	session.EventClosed:           EventSessionClosed,
	session.EventClientBound:      EventClientBound,
	session.EventClientUnbound:    EventClientUnbound,
	session.EventSurfaceEvicted:   EventSurfaceEvicted,
	session.EventReconnecting:     EventReconnectStarted,
	session.EventReconnectSuccess: EventReconnectSucceeded,
	session.EventReconnectFailed:  EventReconnectFailed,
	session.EventReconnectGivenUp: EventReconnectGivenUp,
}

// ObserveSessions subscribes the auditor to the manager's lifecycle
// events, so opens, closes, client binds, evictions, and reconnection
// attempts all get durable records. Write failures are logged inside
// Log and never reach the session core.
func (a *Auditor) ObserveSessions(mgr *session.Manager) {
	mgr.OnEvent(func(e session.Event) {
		eventType, ok := sessionEventTypes[e.Type]
		if !ok {
			return
		}
		a.Log(e.SessionID, e.ServerID, eventType, e.Details)
	})
}
