package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureGuard(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*Store)
		optOut      bool
		bridgedMode bool
		wantNil     bool
	}{
		{
			name:    "no session and no opt-out is dropped",
			setup:   func(*Store) {},
			wantNil: true,
		},
		{
			name: "active session passes",
			setup: func(s *Store) {
				s.StartSession("sess-1", time.Now())
			},
		},
		{
			name:   "opt-out passes without session",
			optOut: true,
		},
		{
			name:        "bridged mode passes without session",
			bridgedMode: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{DeviceID: "dev-1", Enabled: true, BridgedMode: tt.bridgedMode})
			if tt.setup != nil {
				tt.setup(s)
			}
			snap, end, err := s.Capture(tt.optOut, false, time.Now())
			require.NoError(t, err)
			assert.Nil(t, end)
			if tt.wantNil {
				assert.Nil(t, snap)
			} else {
				assert.NotNil(t, snap)
			}
		})
	}
}

func TestCaptureAdvancesClock(t *testing.T) {
	s := New(Options{DeviceID: "dev-1", Enabled: true})
	t0 := time.UnixMilli(1_000_000)
	s.StartSession("sess-1", t0)

	t1 := t0.Add(5 * time.Second)
	snap, _, err := s.Capture(false, false, t1)
	require.NoError(t, err)
	assert.Equal(t, t1.UnixMilli(), snap.LastEventSentMS)

	// A session end must read the frozen clock, not advance it.
	t2 := t1.Add(30 * time.Second)
	snap, end, err := s.Capture(false, true, t2)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, t1.UnixMilli(), snap.LastEventSentMS)
	assert.Equal(t, t1.UnixMilli()-t0.UnixMilli(), end.LengthMS)
}

func TestCaptureSessionEndClearsAccumulators(t *testing.T) {
	s := New(Options{DeviceID: "dev-1", Enabled: true})
	t0 := time.UnixMilli(1_000_000)
	s.StartSession("sess-1", t0)
	s.AddSessionMPID("mpid-1")
	s.AddSessionMPID("mpid-2")
	s.AddSessionMPID("mpid-1")
	s.SetSessionAttributes(map[string]interface{}{"plan": "pro"})

	t1 := t0.Add(time.Minute)
	_, _, err := s.Capture(false, false, t1)
	require.NoError(t, err)

	snap, end, err := s.Capture(false, true, t1.Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, []string{"mpid-1", "mpid-2"}, end.MPIDs)
	assert.Equal(t, map[string]interface{}{"plan": "pro"}, end.Attributes)
	assert.Equal(t, t1.UnixMilli()-t0.UnixMilli(), end.LengthMS)
	require.NotNil(t, snap.SessionStartMS)
	assert.Equal(t, t0.UnixMilli(), *snap.SessionStartMS)

	// Accumulators and start time are reset, session id survives.
	assert.Empty(t, s.SessionMPIDs())
	assert.False(t, s.SessionStarted())
	assert.Equal(t, "sess-1", s.SessionID())
}

func TestCaptureSessionEndWithoutStart(t *testing.T) {
	s := New(Options{DeviceID: "dev-1", Enabled: true})
	s.StartSession("sess-1", time.Now())
	_, _, err := s.Capture(false, true, time.Now())
	require.NoError(t, err)

	// Start time was cleared by the first session end.
	_, _, err = s.Capture(false, true, time.Now())
	assert.ErrorIs(t, err, ErrNoSessionStart)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("dev-1")
	assert.False(t, ok)

	s1 := r.GetOrCreate("dev-1", Options{DeviceID: "dev-1"})
	s2 := r.GetOrCreate("dev-1", Options{DeviceID: "dev-1", ClientID: "ignored"})
	assert.Same(t, s1, s2)

	got, ok := r.Get("dev-1")
	assert.True(t, ok)
	assert.Same(t, s1, got)
}
