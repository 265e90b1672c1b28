package farmgate

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/identity"
	internalaudit "github.com/farmsight/farmgate/internal/audit"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	identity identity.API

	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the redis client backing the durable credential medium.
// Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentity sets the identity service client. Required.
func (b *Builder) WithIdentity(api identity.API) *Builder {
	b.identity = api
	return b
}

// WithAuditSink sets the destination for audit events. Events are only
// dispatched when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process metrics table.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the revalidation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and constructs the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identity == nil {
		return nil, errors.New("identity client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:   cfg,
		identity: b.identity,
		logger:   logger,
		sessions: make(map[string]*deviceSession),
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	engine.creds = credstore.NewStore(
		b.redis,
		cfg.Store.RedisPrefix,
		cfg.Store.DurableTTL,
		credstore.CookieOptions{
			Name:     cfg.Cookie.Name,
			Path:     cfg.Cookie.Path,
			MaxAge:   cfg.Cookie.MaxAge,
			Secure:   cfg.Cookie.Secure,
			HTTPOnly: cfg.Cookie.HTTPOnly,
			SameSite: cfg.Cookie.SameSite,
		},
		storeHooks{engine: engine},
		logger,
	)

	b.built = true

	return engine, nil
}

// storeHooks routes credstore lifecycle notifications into the engine's
// metrics and audit trail.
type storeHooks struct {
	engine *Engine
}

func (h storeHooks) Repaired(deviceID string) {
	h.engine.metricInc(MetricStoreRepaired)
	h.engine.emitAudit(nil, AuditStoreRepaired, true, "", deviceID, "", nil, nil)
}

func (h storeHooks) Reset(deviceID string) {
	h.engine.metricInc(MetricStoreReset)
	h.engine.emitAudit(nil, AuditStoreReset, true, "", deviceID, "", nil, nil)
}
