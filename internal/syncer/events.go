package syncer

import "time"

// Phase is the lifecycle state of a Session.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseLoadingCache  Phase = "loading_cache"
	PhaseLoadingRemote Phase = "loading_remote"
	PhaseSynced        Phase = "synced"
	PhaseDisconnected  Phase = "disconnected"
)

// AllPhases lists every phase, used to reset gauges.
var AllPhases = []Phase{PhaseIdle, PhaseLoadingCache, PhaseLoadingRemote, PhaseSynced, PhaseDisconnected}

// DocKind names the document a write carried.
type DocKind string

const (
	DocProgress DocKind = "progress"
	DocSettings DocKind = "settings"
)

type EventKind string

const (
	EventPhaseChanged     EventKind = "phase_changed"
	EventRemoteApplied    EventKind = "remote_applied"
	EventRemoteSuppressed EventKind = "remote_suppressed"
	EventSyncFailed       EventKind = "sync_failed"
	EventWritePersisted   EventKind = "write_persisted"
)

// Event is a non-blocking notification about sync health. Handlers run
// outside the session lock and may call back into the session.
type Event struct {
	Kind   EventKind
	UserID string
	Phase  Phase
	Doc    DocKind
	Err    error
	At     time.Time
}
