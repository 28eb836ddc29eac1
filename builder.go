package sessionkit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kadvik/sessionkit/identity"
	"github.com/kadvik/sessionkit/internal/guard"
	"github.com/kadvik/sessionkit/monitor"
	"github.com/kadvik/sessionkit/securestore"
)

// Builder assembles an Orchestrator. Construction is allocation-only until
// Build, which validates the configuration and wires the components.
type Builder struct {
	config Config

	redis      redis.UniversalClient
	kv         securestore.KV
	idClient   IdentityClient
	httpClient *http.Client
	auditSink  AuditSink
	logger     *slog.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder primed with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis backs the secure store with a shared Redis instance, namespaced
// by Config.Store.KeyPrefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKV backs the secure store with an arbitrary KV implementation.
// Takes precedence over WithRedis.
func (b *Builder) WithKV(kv securestore.KV) *Builder {
	b.kv = kv
	return b
}

// WithIdentityClient injects the identity-service client. When unset, Build
// constructs one from Config.Identity.BaseURL.
func (b *Builder) WithIdentityClient(client IdentityClient) *Builder {
	b.idClient = client
	return b
}

// WithHTTPClient sets the *http.Client used for a BaseURL-constructed
// identity client. Supply the host application's timeout policy here; the
// subsystem imposes none of its own.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithAuditSink sets where lifecycle audit events go. Audit must also be
// enabled in Config.Audit.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source for audit timestamps, envelope write
// times, and the expiry countdown.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Orchestrator in the
// unauthenticated phase. A Builder can only be used once.
func (b *Builder) Build() (*Orchestrator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	kv := b.kv
	if kv == nil && b.redis != nil {
		redisKV, err := securestore.NewRedisKV(b.redis, b.config.Store.KeyPrefix)
		if err != nil {
			return nil, err
		}
		kv = redisKV
	}
	if kv == nil {
		return nil, errors.New("no storage backend configured")
	}

	idClient := b.idClient
	if idClient == nil {
		if b.config.Identity.BaseURL == "" {
			return nil, errors.New("no identity client or base URL configured")
		}
		client, err := identity.NewClient(b.config.Identity.BaseURL, b.httpClient)
		if err != nil {
			return nil, err
		}
		idClient = client
	}

	metrics := NewMetrics(b.config.Metrics)
	dispatcher := newAuditDispatcher(b.config.Audit, b.auditSink)

	o := &Orchestrator{
		config:   b.config,
		identity: idClient,
		guard:    guard.New(),
		audit:    dispatcher,
		metrics:  metrics,
		logger:   logger,
		now:      now,
		clientID: uuid.NewString(),
		phase:    PhaseUnauthenticated,
	}

	store, err := securestore.NewStore(kv, b.config.Store.Digest, securestore.Options{
		Logger: logger,
		Now:    now,
		OnCorruption: func(key string) {
			metrics.Inc(MetricStorageCorrupt)
			o.emit(context.Background(), AuditEvent{
				EventType: AuditStorageCorrupt,
				Success:   false,
				Metadata:  map[string]string{"key": key},
			})
		},
	})
	if err != nil {
		return nil, err
	}
	o.store = store

	mon, err := monitor.New(credSource{o: o}, tokenExchanger{client: idClient}, monitor.Config{
		PollInterval:    b.config.Monitor.PollInterval,
		WarningLeadTime: b.config.Monitor.WarningLeadTime,
		OnWarning:       o.handleWarning,
		OnExpired:       o.handleExpired,
		Now:             now,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	o.monitor = mon
	o.ready.Store(true)

	b.built = true
	return o, nil
}
