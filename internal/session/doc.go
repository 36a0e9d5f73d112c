// Package session is the connection/session lifecycle core of skiff.
//
// It owns every live SSH connection, arbitrates which client binds to a
// given terminal, bounds resident terminal surfaces with an LRU cache,
// and drives automatic reconnection with exponential backoff.
//
// # Architecture
//
// [Manager] is the single owner of all shared state. One mutex serializes
// every mutation of the session list, the ownership maps, and the LRU
// access order, so those mutations are totally ordered. Network I/O
// (connect, execute, disconnect) always runs on background goroutines
// that report back through the manager's methods.
//
// The manager is built from four cooperating parts:
//
//  1. Registry: the ordered list of sessions and panes, the active
//     selection, and open/close/select operations. Opening against a
//     server that already has a connected session returns that session
//     unless the caller forces a new one.
//
//  2. Ownership arbiter: a per-ID state machine (none → pending → bound)
//     that makes client binding race-free. [Manager.TryBeginShellStart]
//     is the sole gate; a client that loses the race can never complete
//     registration, no matter when its connect sequence finishes.
//
//  3. LRU terminal cache: caps the number of resident terminal surfaces.
//     The sweep runs before insertion and never evicts the currently
//     active session's surface.
//
//  4. Reconnection supervisor: a per-session retry loop (bounded
//     attempts, exponential backoff) started on unexpected disconnect
//     when the session opted into auto-reconnect. The reconnect path
//     reuses the arbiter gate for its unbind/rebind step.
//
// # Resource ownership
//
// Each SSH client is exclusively owned by at most one session or pane at
// a time; only the arbiter path calls Disconnect, exactly once per
// client. The cache exclusively owns terminal surfaces; only it releases
// them. Background disconnects are tracked by a wait group that
// [Manager.ResetForTesting] drains so tests can isolate runs.
//
// # Log Prefixes
//
// Log output uses the [session] prefix for lifecycle events, [arbiter]
// for ownership decisions, and [cache] for surface eviction.
package session
