package constants

import "time"

// SDKVersion is reported under the `sdk` wire key when a client does not
// declare its own.
const SDKVersion = "2.9.14"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultInputTopic  = "raw_events"
	DefaultOutputTopic = "event_uploads"
)

const (
	CacheKeyPrefixProfile = "profile:"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultMongoDatabase   = "beacon"
	DefaultMongoCollection = "user_profiles"
	DefaultPostgresTable   = "user_profiles"
)

const (
	ProviderNameCache      = "cache"
	ProviderNameMongoDB    = "mongodb"
	ProviderNamePostgreSQL = "postgresql"
)

const (
	MaxBatchEvents = 100
)
