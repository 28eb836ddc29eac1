package sessionkit

import (
	"errors"
	"time"

	"github.com/kadvik/sessionkit/securestore"
)

// Config is the full tuning surface of an Orchestrator. Zero values fall
// back to the defaults from DefaultConfig during Build.
type Config struct {
	Store    StoreConfig
	Monitor  MonitorConfig
	Identity IdentityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig tunes credential persistence.
type StoreConfig struct {
	// KeyPrefix namespaces the storage keys when several clients share one
	// backend. The key names themselves (accessToken, refreshToken, user)
	// are a stable contract and cannot be renamed without an envelope
	// version bump.
	KeyPrefix string

	Digest securestore.DigestConfig
}

/*
====================================
MONITOR CONFIG
====================================
*/

// MonitorConfig tunes expiry tracking.
type MonitorConfig struct {
	PollInterval    time.Duration
	WarningLeadTime time.Duration
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig locates the identity service. Ignored when an explicit
// client is injected through Builder.WithIdentityClient.
type IdentityConfig struct {
	BaseURL string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig tunes the async audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking Emit when the buffer is
	// full. Dropped events are counted.
	DropIfFull bool
}

// MetricsConfig toggles counter collection.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 10s poll, 5m warning
// lead, light argon2id costs suited to a per-write integrity check.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Digest: securestore.DigestConfig{
				Memory:      8 * 1024,
				Time:        1,
				Parallelism: 1,
				SaltLength:  16,
				TagLength:   32,
			},
		},
		Monitor: MonitorConfig{
			PollInterval:    10 * time.Second,
			WarningLeadTime: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Monitor.PollInterval < 0 {
		return errors.New("negative poll interval")
	}
	if cfg.Monitor.WarningLeadTime < 0 {
		return errors.New("negative warning lead time")
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize < 0 {
		return errors.New("negative audit buffer size")
	}
	return nil
}
