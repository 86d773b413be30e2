package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator checks a Config for values the gatekeeper cannot run with.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates cfg and returns ValidationErrors when anything is wrong.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = nil

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	v.validateLogging(&cfg.Logging)
	v.validateAuth(&cfg.Auth)
	v.validateRateLimit(&cfg.RateLimit)
	v.validateRedis(&cfg.Redis)
	v.validateClient(&cfg.Client)
	v.validateObservability(&cfg.Observability)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateServer(s *ServerConfig) {
	if s.Address == "" {
		v.addError("server.address", "address is required")
	}
	if s.ReadTimeout < 0 {
		v.addError("server.readTimeout", "must not be negative")
	}
	if s.WriteTimeout < 0 {
		v.addError("server.writeTimeout", "must not be negative")
	}
	for i, p := range s.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			v.addError(fmt.Sprintf("server.trustedProxies[%d]", i), "must be an IP or CIDR")
		}
	}
	if s.Upstream != "" {
		u, err := url.Parse(s.Upstream)
		if err != nil || u.Scheme == "" || u.Host == "" {
			v.addError("server.upstream", "must be an absolute URL")
		}
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		v.addError("logging.level", fmt.Sprintf("unknown level %q", l.Level))
	}
	switch l.Format {
	case "json", "console":
	default:
		v.addError("logging.format", fmt.Sprintf("unknown format %q", l.Format))
	}
}

func (v *Validator) validateAuth(a *AuthConfig) {
	if len(a.Secret) < MinSecretLength {
		v.addError("auth.secret", fmt.Sprintf("must be at least %d bytes", MinSecretLength))
	}
	if a.AccessTokenTTL <= 0 {
		v.addError("auth.accessTokenTTL", "must be positive")
	}
	if a.RefreshTokenTTL <= 0 {
		v.addError("auth.refreshTokenTTL", "must be positive")
	}
	for i, p := range a.PublicPaths {
		if !strings.HasPrefix(p, "/") {
			v.addError(fmt.Sprintf("auth.publicPaths[%d]", i), "must start with /")
		}
	}
}

func (v *Validator) validateRateLimit(r *RateLimitConfig) {
	if r.DefaultLimit <= 0 {
		v.addError("rateLimit.defaultLimit", "must be positive")
	}
	if r.Window <= 0 {
		v.addError("rateLimit.window", "must be positive")
	}
	if r.Window > 0 && r.Window.Duration()%1e6 != 0 {
		v.addError("rateLimit.window", "must be a whole number of milliseconds")
	}
	switch r.Position {
	case PositionAfterTenant, PositionBeforeAuth:
	default:
		v.addError("rateLimit.position", fmt.Sprintf("must be %q or %q", PositionAfterTenant, PositionBeforeAuth))
	}
	for path, limit := range r.PathLimits {
		if !strings.HasPrefix(path, "/") {
			v.addError("rateLimit.pathLimits."+path, "path must start with /")
		}
		if limit <= 0 {
			v.addError("rateLimit.pathLimits."+path, "limit must be positive")
		}
	}
}

func (v *Validator) validateRedis(r *RedisConfig) {
	if !r.Enabled {
		return
	}
	if r.Address == "" {
		v.addError("redis.address", "address is required when redis is enabled")
	}
	if r.DB < 0 {
		v.addError("redis.db", "must not be negative")
	}
	if r.OperationTimeout <= 0 {
		v.addError("redis.operationTimeout", "must be positive")
	}
}

func (v *Validator) validateClient(c *ClientConfig) {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			v.addError("client.baseURL", "must be an absolute URL")
		}
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		v.addError("client.maxRetries", "must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		v.addError("client.requestsPerSecond", "must not be negative")
	}
	if c.CircuitBreaker.MaxFailures < 0 {
		v.addError("client.circuitBreaker.maxFailures", "must not be negative")
	}
}

func (v *Validator) validateObservability(o *ObservabilityConfig) {
	if o.Metrics.Enabled && !strings.HasPrefix(o.Metrics.Path, "/") {
		v.addError("observability.metrics.path", "must start with /")
	}
	if o.Tracing.Enabled && o.Tracing.Endpoint == "" {
		v.addError("observability.tracing.endpoint", "endpoint is required when tracing is enabled")
	}
	if o.Tracing.SamplingRate < 0 || o.Tracing.SamplingRate > 1 {
		v.addError("observability.tracing.samplingRate", "must be between 0 and 1")
	}
}
