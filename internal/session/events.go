package session

import (
	"log"
	"time"
)

// EventType identifies the type of session lifecycle event.
type EventType string

const (
	EventOpened           EventType = "session_opened"
	EventClosed           EventType = "session_closed"
	EventClientBound      EventType = "client_bound"
	EventClientUnbound    EventType = "client_unbound"
	EventSurfaceEvicted   EventType = "surface_evicted"
	EventReconnecting     EventType = "reconnecting"
	EventReconnectSuccess EventType = "reconnect_success"
	EventReconnectFailed  EventType = "reconnect_failed"
	EventReconnectGivenUp EventType = "reconnect_given_up"
)

// Event records one lifecycle event for a session.
type Event struct {
	SessionID string    `json:"session_id"`
	ServerID  string    `json:"server_id,omitempty"`
	Type      EventType `json:"type"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHook receives every emitted lifecycle event. Hooks run outside
// the manager lock and may call back into the manager.
type EventHook func(e Event)

// OnEvent registers a hook fired for every lifecycle event.
func (m *Manager) OnEvent(hook EventHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventHooks = append(m.eventHooks, hook)
}

// maxEventsPerSession limits the number of stored events per session.
const maxEventsPerSession = 100

// emitEvent records a lifecycle event for a live session, resolving its
// server ID. Events for already-removed sessions go through
// emitEventFor with the server ID the caller still holds.
func (m *Manager) emitEvent(id string, eventType EventType, details string) {
	serverID := ""
	m.mu.Lock()
	if s := m.byID[id]; s != nil {
		serverID = s.ServerID
	}
	m.mu.Unlock()
	m.emitEventFor(id, serverID, eventType, details)
}

// emitEventFor records a lifecycle event in the per-session ring buffer,
// writes it to the standard logger, and fires the registered hooks.
func (m *Manager) emitEventFor(id, serverID string, eventType EventType, details string) {
	event := Event{
		SessionID: id,
		ServerID:  serverID,
		Type:      eventType,
		Details:   details,
		Timestamp: time.Now(),
	}

	m.mu.Lock()
	events := append(m.events[id], event)
	if len(events) > maxEventsPerSession {
		events = events[len(events)-maxEventsPerSession:]
	}
	m.events[id] = events
	hooks := make([]EventHook, len(m.eventHooks))
	copy(hooks, m.eventHooks)
	m.mu.Unlock()

	log.Printf("[session] event %s/%s: %s", id, eventType, details)
	for _, hook := range hooks {
		hook(event)
	}
}

// Events returns all stored events for the session.
func (m *Manager) Events(id string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events[id]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// RecentEvents returns the most recent n events for the session.
func (m *Manager) RecentEvents(id string, n int) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events[id]
	if len(events) <= n {
		result := make([]Event, len(events))
		copy(result, events)
		return result
	}
	result := make([]Event, n)
	copy(result, events[len(events)-n:])
	return result
}
