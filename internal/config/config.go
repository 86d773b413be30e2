package config

import "time"

// Rate limiter placement within the request pipeline.
const (
	PositionAfterTenant = "after-tenant"
	PositionBeforeAuth  = "before-auth"
)

// Default values applied by ApplyDefaults.
const (
	DefaultAddress          = ":8080"
	DefaultReadTimeout      = 30 * time.Second
	DefaultWriteTimeout     = 30 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultAccessTokenTTL   = 15 * time.Minute
	DefaultRefreshTokenTTL  = 7 * 24 * time.Hour
	DefaultRateLimit        = 100
	DefaultRateLimitWindow  = time.Minute
	DefaultRedisAddress     = "localhost:6379"
	DefaultRedisPrefix      = "rl:"
	DefaultRedisPoolSize    = 10
	DefaultRedisDialTimeout = 5 * time.Second
	DefaultRedisIOTimeout   = 3 * time.Second
	DefaultRedisOpTimeout   = 500 * time.Millisecond
	DefaultClientTimeout    = 10 * time.Second
	DefaultClientRetries    = 3
	DefaultClientBaseDelay  = time.Second
	DefaultClientMaxDelay   = 30 * time.Second
	DefaultClientCacheTTL   = 5 * time.Minute
	DefaultSweepInterval    = time.Minute
	DefaultBreakerFailures  = 5
	DefaultBreakerTimeout   = 30 * time.Second
	DefaultMetricsPath      = "/metrics"
	DefaultServiceName      = "gatekeeper"
	MinSecretLength         = 32
)

// Config is the root gatekeeper configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	Tenant        TenantConfig        `yaml:"tenant" json:"tenant"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit" json:"rateLimit"`
	Redis         RedisConfig         `yaml:"redis" json:"redis"`
	Client        ClientConfig        `yaml:"client" json:"client"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string   `yaml:"address" json:"address"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`

	// TrustForwardedFor makes the first X-Forwarded-For entry the client identity.
	TrustForwardedFor *bool `yaml:"trustForwardedFor,omitempty" json:"trustForwardedFor,omitempty"`

	// TrustedProxies restricts X-Forwarded-For handling to these peers.
	TrustedProxies []string `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`

	// Upstream is an optional single backend that receives unmatched routes.
	Upstream string `yaml:"upstream,omitempty" json:"upstream,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// AuthConfig configures token verification and issuance.
type AuthConfig struct {
	Secret          string   `yaml:"secret" json:"-"`
	Issuer          string   `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	AccessTokenTTL  Duration `yaml:"accessTokenTTL,omitempty" json:"accessTokenTTL,omitempty"`
	RefreshTokenTTL Duration `yaml:"refreshTokenTTL,omitempty" json:"refreshTokenTTL,omitempty"`
	PublicPaths     []string `yaml:"publicPaths,omitempty" json:"publicPaths,omitempty"`

	// RequireAuthentication rejects unauthenticated requests with 401
	// instead of passing them through.
	RequireAuthentication bool `yaml:"requireAuthentication,omitempty" json:"requireAuthentication,omitempty"`
}

// TenantConfig configures tenant propagation.
type TenantConfig struct {
	// BaseDomain is stripped from the request host to derive the subdomain.
	BaseDomain string `yaml:"baseDomain,omitempty" json:"baseDomain,omitempty"`
}

// RateLimitConfig configures fixed-window rate limiting.
type RateLimitConfig struct {
	Enabled      *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	DefaultLimit int            `yaml:"defaultLimit" json:"defaultLimit"`
	Window       Duration       `yaml:"window,omitempty" json:"window,omitempty"`
	KeyByPath    *bool          `yaml:"keyByPath,omitempty" json:"keyByPath,omitempty"`
	Position     string         `yaml:"position,omitempty" json:"position,omitempty"`
	SkipPaths    []string       `yaml:"skipPaths,omitempty" json:"skipPaths,omitempty"`
	PathLimits   map[string]int `yaml:"pathLimits,omitempty" json:"pathLimits,omitempty"`
}

// IsEnabled reports whether rate limiting is on. Unset means enabled.
func (c RateLimitConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// IsKeyByPath reports whether counters are kept per path. Unset means true.
func (c RateLimitConfig) IsKeyByPath() bool {
	return c.KeyByPath == nil || *c.KeyByPath
}

// RedisConfig configures the shared counter store.
type RedisConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	Address          string   `yaml:"address" json:"address"`
	Password         string   `yaml:"password,omitempty" json:"-"`
	DB               int      `yaml:"db,omitempty" json:"db,omitempty"`
	Prefix           string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	PoolSize         int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	DialTimeout      Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
	ReadTimeout      Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout     Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	OperationTimeout Duration `yaml:"operationTimeout,omitempty" json:"operationTimeout,omitempty"`
}

// ClientConfig configures the outbound resilience layer.
type ClientConfig struct {
	BaseURL           string               `yaml:"baseURL,omitempty" json:"baseURL,omitempty"`
	Timeout           Duration             `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries        *int                 `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
	BaseDelay         Duration             `yaml:"baseDelay,omitempty" json:"baseDelay,omitempty"`
	MaxDelay          Duration             `yaml:"maxDelay,omitempty" json:"maxDelay,omitempty"`
	CacheTTL          Duration             `yaml:"cacheTTL,omitempty" json:"cacheTTL,omitempty"`
	SweepInterval     Duration             `yaml:"sweepInterval,omitempty" json:"sweepInterval,omitempty"`
	RequestsPerSecond float64              `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	Burst             int                  `yaml:"burst,omitempty" json:"burst,omitempty"`
	CircuitBreaker    CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures the outbound circuit breaker.
type CircuitBreakerConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	MaxFailures int      `yaml:"maxFailures,omitempty" json:"maxFailures,omitempty"`
	OpenTimeout Duration `yaml:"openTimeout,omitempty" json:"openTimeout,omitempty"`
}

// ObservabilityConfig groups metrics and tracing settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// DefaultPublicPaths are reachable without a token.
func DefaultPublicPaths() []string {
	return []string{
		"/api/auth/",
		"/health",
		"/ready",
		"/metrics",
		"/docs",
		"/swagger",
		"/v3/api-docs",
	}
}

// DefaultPathLimits are the per-endpoint overrides shipped with the platform.
func DefaultPathLimits() map[string]int {
	return map[string]int{
		"/api/auth/login":      10,
		"/api/auth/register":   5,
		"/api/products/search": 50,
		"/api/orders":          20,
	}
}

// DefaultSkipPaths are never counted by the rate limiter.
func DefaultSkipPaths() []string {
	return []string{"/health", "/ready", "/metrics"}
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	c.applyServerDefaults()

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	c.applyAuthDefaults()
	c.applyRateLimitDefaults()
	c.applyRedisDefaults()
	c.applyClientDefaults()

	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = DefaultMetricsPath
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = DefaultServiceName
	}
}

func (c *Config) applyServerDefaults() {
	s := &c.Server
	if s.Address == "" {
		s.Address = DefaultAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if s.TrustForwardedFor == nil {
		s.TrustForwardedFor = boolPtr(true)
	}
}

func (c *Config) applyAuthDefaults() {
	a := &c.Auth
	if a.AccessTokenTTL == 0 {
		a.AccessTokenTTL = Duration(DefaultAccessTokenTTL)
	}
	if a.RefreshTokenTTL == 0 {
		a.RefreshTokenTTL = Duration(DefaultRefreshTokenTTL)
	}
	if a.PublicPaths == nil {
		a.PublicPaths = DefaultPublicPaths()
	}
}

func (c *Config) applyRateLimitDefaults() {
	r := &c.RateLimit
	if r.DefaultLimit == 0 {
		r.DefaultLimit = DefaultRateLimit
	}
	if r.Window == 0 {
		r.Window = Duration(DefaultRateLimitWindow)
	}
	if r.Position == "" {
		r.Position = PositionAfterTenant
	}
	if r.SkipPaths == nil {
		r.SkipPaths = DefaultSkipPaths()
	}
	if r.PathLimits == nil {
		r.PathLimits = DefaultPathLimits()
	}
}

func (c *Config) applyRedisDefaults() {
	r := &c.Redis
	if r.Address == "" {
		r.Address = DefaultRedisAddress
	}
	if r.Prefix == "" {
		r.Prefix = DefaultRedisPrefix
	}
	if r.PoolSize == 0 {
		r.PoolSize = DefaultRedisPoolSize
	}
	if r.DialTimeout == 0 {
		r.DialTimeout = Duration(DefaultRedisDialTimeout)
	}
	if r.ReadTimeout == 0 {
		r.ReadTimeout = Duration(DefaultRedisIOTimeout)
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = Duration(DefaultRedisIOTimeout)
	}
	if r.OperationTimeout == 0 {
		r.OperationTimeout = Duration(DefaultRedisOpTimeout)
	}
}

func (c *Config) applyClientDefaults() {
	cl := &c.Client
	if cl.Timeout == 0 {
		cl.Timeout = Duration(DefaultClientTimeout)
	}
	if cl.MaxRetries == nil {
		retries := DefaultClientRetries
		cl.MaxRetries = &retries
	}
	if cl.BaseDelay == 0 {
		cl.BaseDelay = Duration(DefaultClientBaseDelay)
	}
	if cl.MaxDelay == 0 {
		cl.MaxDelay = Duration(DefaultClientMaxDelay)
	}
	if cl.CacheTTL == 0 {
		cl.CacheTTL = Duration(DefaultClientCacheTTL)
	}
	if cl.SweepInterval == 0 {
		cl.SweepInterval = Duration(DefaultSweepInterval)
	}
	if cl.CircuitBreaker.MaxFailures == 0 {
		cl.CircuitBreaker.MaxFailures = DefaultBreakerFailures
	}
	if cl.CircuitBreaker.OpenTimeout == 0 {
		cl.CircuitBreaker.OpenTimeout = Duration(DefaultBreakerTimeout)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
