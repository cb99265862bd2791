package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"beacon/internal/broker"
	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/event"
	"beacon/internal/filtering"
	"beacon/internal/logger"
	"beacon/internal/profile"
	"beacon/internal/store"
	"beacon/pkg/metrics"
	"beacon/pkg/retry"
	"beacon/pkg/tracing"
)

// Service runs the ingest pipeline for event batches: filtering, session
// bookkeeping, profile resolution, enrichment, projection and publish.
type Service interface {
	Process(ctx context.Context, env *Envelope) (Result, error)
}

type serviceImpl struct {
	registry *store.Registry
	profiles profile.Service
	filters  *filtering.Service
	producer broker.Producer
	topic    string

	collectorCfg config.CollectorConfig
	retryPolicy  retry.Policy
	logger       logger.Logger

	now          func() time.Time
	newSessionID func() string
}

func NewService(
	registry *store.Registry,
	profiles profile.Service,
	filters *filtering.Service,
	producer broker.Producer,
	cfg *config.Config,
	log logger.Logger,
) Service {
	topic := cfg.Broker.Kafka.OutputTopic
	if topic == "" {
		topic = constants.DefaultOutputTopic
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
	}
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}

	return &serviceImpl{
		registry:     registry,
		profiles:     profiles,
		filters:      filters,
		producer:     producer,
		topic:        topic,
		collectorCfg: cfg.Collector,
		retryPolicy:  policy,
		logger:       log,
		now:          time.Now,
		newSessionID: uuid.NewString,
	}
}

// Process runs every event of the envelope through the pipeline. It returns
// an error only when the envelope itself is unusable; per-event failures are
// counted in the Result and logged.
func (s *serviceImpl) Process(ctx context.Context, env *Envelope) (Result, error) {
	var res Result
	if err := env.Validate(); err != nil {
		return res, err
	}

	ctx, span := tracing.GetTracer("collector-service").Start(ctx, "collector.process")
	defer span.End()

	st := s.registry.GetOrCreate(env.DeviceID, s.storeOptions(env))
	if len(env.SessionAttributes) > 0 {
		st.SetSessionAttributes(env.SessionAttributes)
	}

	user := s.profiles.CurrentUser(ctx, env.DeviceID)

	for i := range env.Events {
		ev := &env.Events[i]
		start := s.now()

		status := s.processEvent(ctx, env, st, user, ev)
		metrics.CollectorEventsTotal.WithLabelValues(status).Inc()
		metrics.ObserveProcessingDuration(s.now().Sub(start), status)

		switch status {
		case metrics.StatusAccepted:
			res.Accepted++
		case metrics.StatusFiltered:
			res.Filtered++
		case metrics.StatusDropped:
			res.Dropped++
		default:
			res.Failed++
		}
	}

	return res, nil
}

func (s *serviceImpl) processEvent(ctx context.Context, env *Envelope, st *store.Store, user event.User, ev *event.RawEvent) string {
	if s.filters != nil {
		if blocked, rule := s.filters.Blocked(ev); blocked {
			s.logger.DebugwCtx(ctx, "Event blocked by filter rule",
				"device_id", env.DeviceID,
				"rule", rule,
				"message_type", int(ev.MessageType),
			)
			return metrics.StatusFiltered
		}
	}

	switch ev.MessageType {
	case event.SessionStart:
		st.StartSession(s.newSessionID(), s.now())
	case event.OptOut:
		st.SetEnabled(false)
	}

	st.AddSessionMPID(user.MPID)

	enriched, err := event.EnrichAt(ev, st, user, s.now())
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Event enrichment failed",
			"device_id", env.DeviceID,
			"message_type", int(ev.MessageType),
			"error", err,
		)
		return metrics.StatusFailed
	}
	if enriched == nil {
		s.logger.DebugwCtx(ctx, "Event dropped: no active session",
			"device_id", env.DeviceID,
			"message_type", int(ev.MessageType),
		)
		return metrics.StatusDropped
	}

	dto := event.ConvertEventToDTO(enriched, env.FirstRun, env.CurrencyCode)
	if err := s.publish(ctx, env.DeviceID, dto); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to publish wire record",
			"device_id", env.DeviceID,
			"topic", s.topic,
			"error", err,
		)
		return metrics.StatusFailed
	}

	return metrics.StatusAccepted
}

func (s *serviceImpl) publish(ctx context.Context, deviceID string, dto map[string]interface{}) error {
	value, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("failed to marshal wire record: %w", err)
	}

	err = retry.Do(ctx, s.retryPolicy, func() error {
		return s.producer.Publish(ctx, s.topic, deviceID, value)
	}, func(attempt int, err error) {
		metrics.UploadRetryAttemptsTotal.Inc()
		s.logger.WarnwCtx(ctx, "Retrying wire record publish",
			"device_id", deviceID,
			"attempt", attempt,
			"error", err,
		)
	})
	if err != nil {
		metrics.UploadPublishTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.UploadPublishTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *serviceImpl) storeOptions(env *Envelope) store.Options {
	sdkVersion := env.SDKVersion
	if sdkVersion == "" {
		sdkVersion = s.collectorCfg.SDKVersion
	}
	if sdkVersion == "" {
		sdkVersion = constants.SDKVersion
	}

	return store.Options{
		DeviceID:              env.DeviceID,
		ClientID:              env.ClientID,
		SDKVersion:            sdkVersion,
		AppVersion:            env.AppVersion,
		Debug:                 s.collectorCfg.Debug,
		Enabled:               true,
		BridgedMode:           s.collectorCfg.BridgedMode,
		PageURL:               env.PageURL,
		Location:              env.Location,
		IntegrationAttributes: env.IntegrationAttributes,
	}
}

// NewBrokerHandler adapts the service to the consumer contract for envelopes
// arriving over the raw-events topic. Malformed payloads are committed and
// dropped; processing errors are also committed because the pipeline already
// accounts for per-event failures.
func NewBrokerHandler(svc Service, log logger.Logger) broker.HandlerFunc {
	return func(ctx context.Context, key, value []byte) error {
		var env Envelope
		if err := json.Unmarshal(value, &env); err != nil {
			log.WarnwCtx(ctx, "Discarding malformed envelope",
				"key", string(key),
				"error", err,
			)
			return nil
		}

		res, err := svc.Process(ctx, &env)
		if err != nil {
			log.WarnwCtx(ctx, "Discarding unprocessable envelope",
				"key", string(key),
				"error", err,
			)
			return nil
		}

		log.DebugwCtx(ctx, "Processed envelope from broker",
			"device_id", env.DeviceID,
			"accepted", res.Accepted,
			"dropped", res.Dropped,
			"filtered", res.Filtered,
			"failed", res.Failed,
		)
		return nil
	}
}
