package store

import (
	"errors"
	"sync"
	"time"
)

// ErrNoSessionStart is returned when a session-end capture is requested for a
// store that has no active session start time. Callers must treat this as a
// caller bug, not as a droppable event.
var ErrNoSessionStart = errors.New("store: session end captured without a session start time")

// Location is the device position attached to outgoing records.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Options carries the per-device runtime settings a store is created with.
// These fields are immutable for the lifetime of the store.
type Options struct {
	DeviceID              string
	ClientID              string
	SDKVersion            string
	AppVersion            string
	Debug                 bool
	Enabled               bool
	BridgedMode           bool
	PageURL               string
	Location              *Location
	IntegrationAttributes map[string]map[string]string
	ServerSettings        map[string]interface{}
}

// Store holds the mutable session state for one device: the active session,
// the last-event-sent clock, and the session-scoped accumulators. All mutable
// fields are guarded by one mutex; Capture performs the whole
// read-advance-maybe-reset sequence under a single lock acquisition so that
// concurrent callers cannot interleave between the clock read and the
// session-end reset.
type Store struct {
	mu sync.Mutex

	opts Options

	sessionID         string
	sessionStart      time.Time
	lastEventSent     time.Time
	enabled           bool
	sessionAttributes map[string]interface{}
	sessionMPIDs      []string
}

func New(opts Options) *Store {
	return &Store{
		opts:              opts,
		enabled:           opts.Enabled,
		sessionAttributes: make(map[string]interface{}),
		sessionMPIDs:      make([]string, 0),
	}
}

// Snapshot is the read-only view of the store handed to enrichment. Times are
// epoch milliseconds, matching the wire format.
type Snapshot struct {
	SessionID             string
	SessionStartMS        *int64
	LastEventSentMS       int64
	DeviceID              string
	ClientID              string
	SDKVersion            string
	AppVersion            string
	Debug                 bool
	Enabled               bool
	BridgedMode           bool
	PageURL               string
	Location              *Location
	IntegrationAttributes map[string]map[string]string
	ServerSettings        map[string]interface{}
}

// SessionEnd carries the session-scoped accumulators snapshotted when a
// session-end event is captured.
type SessionEnd struct {
	LengthMS   int64
	MPIDs      []string
	Attributes map[string]interface{}
}

// StartSession opens a new session. Any previous session state is discarded.
func (s *Store) StartSession(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
	s.sessionStart = now
	s.lastEventSent = now
	s.sessionAttributes = make(map[string]interface{})
	s.sessionMPIDs = make([]string, 0)
}

// SetEnabled flips the collection-enabled flag (opt-out handling).
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// AddSessionMPID records an MPID as seen during the current session.
func (s *Store) AddSessionMPID(mpid string) {
	if mpid == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessionMPIDs {
		if existing == mpid {
			return
		}
	}
	s.sessionMPIDs = append(s.sessionMPIDs, mpid)
}

// SetSessionAttributes merges attrs into the session attribute accumulator.
func (s *Store) SetSessionAttributes(attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range attrs {
		s.sessionAttributes[k] = v
	}
}

// Capture performs the per-event store transaction:
//
//   - guard: only proceeds with an active session, an opt-out event, or a
//     store running in bridged mode; otherwise returns (nil, nil, nil),
//   - advances the last-event-sent clock to now, unless the event is a
//     session end (which must read the frozen value),
//   - snapshots every contextual field,
//   - for session-end events, computes the session length and snapshots and
//     clears the session accumulators and start time.
//
// The whole sequence runs under one lock so no other event can observe the
// intermediate state.
func (s *Store) Capture(optOut, sessionEnd bool, now time.Time) (*Snapshot, *SessionEnd, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID == "" && !optOut && !s.opts.BridgedMode {
		return nil, nil, nil
	}

	if !sessionEnd || s.lastEventSent.IsZero() {
		s.lastEventSent = now
	}

	snap := &Snapshot{
		SessionID:             s.sessionID,
		LastEventSentMS:       s.lastEventSent.UnixMilli(),
		DeviceID:              s.opts.DeviceID,
		ClientID:              s.opts.ClientID,
		SDKVersion:            s.opts.SDKVersion,
		AppVersion:            s.opts.AppVersion,
		Debug:                 s.opts.Debug,
		Enabled:               s.enabled,
		BridgedMode:           s.opts.BridgedMode,
		PageURL:               s.opts.PageURL,
		Location:              s.opts.Location,
		IntegrationAttributes: s.opts.IntegrationAttributes,
		ServerSettings:        s.opts.ServerSettings,
	}
	if !s.sessionStart.IsZero() {
		ms := s.sessionStart.UnixMilli()
		snap.SessionStartMS = &ms
	}

	var end *SessionEnd
	if sessionEnd {
		if s.sessionStart.IsZero() {
			return nil, nil, ErrNoSessionStart
		}
		end = &SessionEnd{
			LengthMS:   s.lastEventSent.UnixMilli() - s.sessionStart.UnixMilli(),
			MPIDs:      s.sessionMPIDs,
			Attributes: s.sessionAttributes,
		}
		s.sessionMPIDs = make([]string, 0)
		s.sessionAttributes = make(map[string]interface{})
		s.sessionStart = time.Time{}
	}

	return snap, end, nil
}

// SessionID returns the current session id, empty when no session is active.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// SessionStarted reports whether a session start time is currently set.
func (s *Store) SessionStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.sessionStart.IsZero()
}

// SessionMPIDs returns a copy of the current-session MPID list.
func (s *Store) SessionMPIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sessionMPIDs))
	copy(out, s.sessionMPIDs)
	return out
}

// Registry keeps one store per device id.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// GetOrCreate returns the store for deviceID, creating it from opts on first
// use. Options of an existing store are not updated.
func (r *Registry) GetOrCreate(deviceID string, opts Options) *Store {
	r.mu.RLock()
	st, ok := r.stores[deviceID]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok = r.stores[deviceID]; ok {
		return st
	}
	st = New(opts)
	r.stores[deviceID] = st
	return st
}

// Get returns the store for deviceID if one exists.
func (r *Registry) Get(deviceID string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.stores[deviceID]
	return st, ok
}
