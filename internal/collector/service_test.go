package collector

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	"beacon/internal/event"
	"beacon/internal/filtering"
	"beacon/internal/logger"
	"beacon/internal/profile"
	"beacon/internal/store"
)

type publishedRecord struct {
	topic string
	key   string
	dto   map[string]interface{}
}

type fakeProducer struct {
	mu        sync.Mutex
	failures  int
	published []publishedRecord
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}

	var dto map[string]interface{}
	if err := json.Unmarshal(value, &dto); err != nil {
		return err
	}
	p.published = append(p.published, publishedRecord{topic: topic, key: key, dto: dto})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) records() []publishedRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedRecord, len(p.published))
	copy(out, p.published)
	return out
}

type stubProfiles struct {
	user event.User
}

func (s stubProfiles) CurrentUser(context.Context, string) event.User { return s.user }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(50 * time.Millisecond)
	return c.t
}

func testConfig() *config.Config {
	return &config.Config{
		Broker: config.BrokerConfig{
			Kafka: config.KafkaConfig{OutputTopic: "uploads"},
		},
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      1.0,
		},
	}
}

func testService(t *testing.T, producer *fakeProducer, profiles profile.Service, rules []config.FilterRule) Service {
	t.Helper()

	var filters *filtering.Service
	if len(rules) > 0 {
		var err error
		filters, err = filtering.NewService(rules, logger.NopLogger())
		require.NoError(t, err)
	}

	svc := NewService(store.NewRegistry(), profiles, filters, producer, testConfig(), logger.NopLogger())

	impl := svc.(*serviceImpl)
	clock := &fakeClock{t: time.UnixMilli(1700000000000)}
	impl.now = clock.Now
	impl.newSessionID = func() string { return "session-1" }
	return svc
}

func TestProcessSessionLifecycle(t *testing.T) {
	producer := &fakeProducer{}
	profiles := stubProfiles{user: event.User{
		MPID:       "mpid-1",
		Identities: map[string]string{"email": "u@example.com"},
		Attributes: map[string]interface{}{"tier": "gold"},
	}}
	svc := testService(t, producer, profiles, nil)

	env := &Envelope{
		DeviceID:   "device-1",
		ClientID:   "client-1",
		AppVersion: "3.1.0",
		Events: []event.RawEvent{
			{MessageType: event.SessionStart},
			{MessageType: event.PageEvent, Name: "checkout", Data: map[string]interface{}{"step": "payment"}},
			{MessageType: event.SessionEnd},
		},
	}

	res, err := svc.Process(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: 3}, res)

	records := producer.records()
	require.Len(t, records, 3)

	for _, rec := range records {
		assert.Equal(t, "uploads", rec.topic)
		assert.Equal(t, "device-1", rec.key)
		assert.Equal(t, "session-1", rec.dto["sid"])
		assert.Equal(t, "mpid-1", rec.dto["mpid"])
		assert.Equal(t, "3.1.0", rec.dto["av"])
	}

	assert.Equal(t, float64(event.SessionStart), records[0].dto["dt"])
	assert.Equal(t, float64(event.PageEvent), records[1].dto["dt"])
	assert.Equal(t, float64(event.SessionEnd), records[2].dto["dt"])

	assert.Equal(t, "checkout", records[1].dto["n"])
	assert.Equal(t, map[string]interface{}{"step": "payment"}, records[1].dto["attrs"])

	end := records[2].dto
	sl, ok := end["sl"].(float64)
	require.True(t, ok)
	assert.Greater(t, sl, float64(0))
	assert.Equal(t, []interface{}{"mpid-1"}, end["smpids"])
}

func TestProcessDropsWithoutSession(t *testing.T) {
	producer := &fakeProducer{}
	svc := testService(t, producer, stubProfiles{}, nil)

	res, err := svc.Process(context.Background(), &Envelope{
		DeviceID: "device-1",
		Events:   []event.RawEvent{{MessageType: event.PageEvent, Name: "orphan"}},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Dropped: 1}, res)
	assert.Empty(t, producer.records())
}

func TestProcessOptOutWithoutSession(t *testing.T) {
	producer := &fakeProducer{}
	svc := testService(t, producer, stubProfiles{}, nil)

	res, err := svc.Process(context.Background(), &Envelope{
		DeviceID: "device-1",
		Events:   []event.RawEvent{{MessageType: event.OptOut}},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: 1}, res)

	records := producer.records()
	require.Len(t, records, 1)
	assert.Equal(t, float64(event.OptOut), records[0].dto["dt"])
	assert.Equal(t, true, records[0].dto["o"])
}

func TestProcessFiltersBlockedEvents(t *testing.T) {
	producer := &fakeProducer{}
	rules := []config.FilterRule{{Name: "drop-debug", Expression: `name.startsWith("debug")`}}
	svc := testService(t, producer, stubProfiles{}, rules)

	res, err := svc.Process(context.Background(), &Envelope{
		DeviceID: "device-1",
		Events: []event.RawEvent{
			{MessageType: event.SessionStart},
			{MessageType: event.PageEvent, Name: "debug ping"},
			{MessageType: event.PageEvent, Name: "purchase"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: 2, Filtered: 1}, res)
	require.Len(t, producer.records(), 2)
}

func TestProcessCountsSessionEndWithoutStartAsFailed(t *testing.T) {
	producer := &fakeProducer{}
	svc := testService(t, producer, stubProfiles{}, nil)

	impl := svc.(*serviceImpl)
	st := impl.registry.GetOrCreate("device-1", store.Options{DeviceID: "device-1", Enabled: true, BridgedMode: true})
	require.False(t, st.SessionStarted())

	res, err := svc.Process(context.Background(), &Envelope{
		DeviceID: "device-1",
		Events:   []event.RawEvent{{MessageType: event.SessionEnd}},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)
	assert.Empty(t, producer.records())
}

func TestProcessValidatesEnvelope(t *testing.T) {
	svc := testService(t, &fakeProducer{}, stubProfiles{}, nil)

	_, err := svc.Process(context.Background(), &Envelope{Events: []event.RawEvent{{MessageType: event.PageEvent}}})
	assert.Error(t, err)

	_, err = svc.Process(context.Background(), &Envelope{DeviceID: "device-1"})
	assert.Error(t, err)
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	producer := &fakeProducer{failures: 2}
	svc := testService(t, producer, stubProfiles{}, nil)

	res, err := svc.Process(context.Background(), &Envelope{
		DeviceID: "device-1",
		Events: []event.RawEvent{
			{MessageType: event.SessionStart},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: 1}, res)
	require.Len(t, producer.records(), 1)
}

func TestPublishFailureAfterRetryBudget(t *testing.T) {
	producer := &fakeProducer{failures: 10}
	svc := testService(t, producer, stubProfiles{}, nil)

	res, err := svc.Process(context.Background(), &Envelope{
		DeviceID: "device-1",
		Events: []event.RawEvent{
			{MessageType: event.SessionStart},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)
}

func TestBrokerHandler(t *testing.T) {
	producer := &fakeProducer{}
	svc := testService(t, producer, stubProfiles{}, nil)
	handler := NewBrokerHandler(svc, logger.NopLogger())

	env := Envelope{
		DeviceID: "device-1",
		Events:   []event.RawEvent{{MessageType: event.SessionStart}},
	}
	value, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), []byte("device-1"), value))
	assert.Len(t, producer.records(), 1)

	require.NoError(t, handler(context.Background(), []byte("device-1"), []byte("{not json")))
	require.NoError(t, handler(context.Background(), []byte("device-1"), []byte(`{"device_id":""}`)))
	assert.Len(t, producer.records(), 1)
}
