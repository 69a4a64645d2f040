// Package config defines the session engine's configuration surface,
// loaded with go-zero's core/conf the way shared/config.Config is loaded
// by the gateway service.
package config

import (
	"time"

	"github.com/authflow/sessionengine/third_party/cache"
	"github.com/authflow/sessionengine/third_party/database"
)

// Config is the full configuration tree for the authsessiond binary.
type Config struct {
	Service  ServiceConfig
	Database database.PostgresConfig
	Redis    cache.RedisConfig
	Codec    CodecConfig
	Purge    PurgeConfig
}

// ServiceConfig identifies this process instance.
type ServiceConfig struct {
	Name string `json:",env=SERVICE_NAME"`
	Host string `json:",env=SERVICE_HOST"`
	Port int    `json:",env=SERVICE_PORT"`
}

// CodecConfig is the session engine's enumerated codec configuration.
type CodecConfig struct {
	SigningKey        string `json:",env=AUTH_SIGNING_KEY"`
	Algorithm         string `json:",env=AUTH_ALGORITHM,default=HS256"`
	AccessTTLMs       int64  `json:",env=AUTH_ACCESS_TTL_MS"`
	RefreshTTLMs      int64  `json:",env=AUTH_REFRESH_TTL_MS"`
	ClockSkewMs       int64  `json:",env=AUTH_CLOCK_SKEW_MS,default=0"`
	Issuer            string `json:",env=AUTH_ISSUER,optional"`
	DurableDeadline   int64  `json:",env=AUTH_DURABLE_DEADLINE_MS,default=2000"`
	FastIndexDeadline int64  `json:",env=AUTH_FAST_INDEX_DEADLINE_MS,default=500"`
}

// ClockSkew returns the configured skew as a time.Duration.
func (c CodecConfig) ClockSkew() time.Duration {
	return time.Duration(c.ClockSkewMs) * time.Millisecond
}

// DurableDeadlineDuration returns the configured durable-store per-call
// deadline as a time.Duration.
func (c CodecConfig) DurableDeadlineDuration() time.Duration {
	return time.Duration(c.DurableDeadline) * time.Millisecond
}

// FastIndexDeadlineDuration returns the configured fast-index per-call
// deadline as a time.Duration.
func (c CodecConfig) FastIndexDeadlineDuration() time.Duration {
	return time.Duration(c.FastIndexDeadline) * time.Millisecond
}

// PurgeConfig configures the background expiry sweeper.
type PurgeConfig struct {
	IntervalMs int64 `json:",env=AUTH_PURGE_INTERVAL_MS,default=60000"`
}

// Interval returns the configured purge cadence as a time.Duration.
func (p PurgeConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}
