// Package config carrega a configuração do gateway com viper: padrões,
// arquivo YAML opcional e variáveis de ambiente (nome da chave em maiúsculas,
// ex.: UPSTREAM_URLS, RATE_LIMIT_MAX, JWT_SECRET).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	balancerdomain "intelligent-gateway/balancer/domain"
)

type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	MountPrefix     string        `mapstructure:"mount_prefix"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	UpstreamURLs    []string      `mapstructure:"upstream_urls"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	LBPolicy        string        `mapstructure:"lb_policy"`
	LBHealthyOnly   bool          `mapstructure:"lb_healthy_only"`

	HealthEnabled          bool          `mapstructure:"health_enabled"`
	HealthPath             string        `mapstructure:"health_path"`
	HealthInterval         time.Duration `mapstructure:"health_interval"`
	HealthTimeout          time.Duration `mapstructure:"health_timeout"`
	HealthFailureThreshold int           `mapstructure:"health_failure_threshold"`
	HealthBreakerCooldown  time.Duration `mapstructure:"health_breaker_cooldown"`

	RateLimitMax        int           `mapstructure:"rate_limit_max"`
	RateLimitWindow     time.Duration `mapstructure:"rate_limit_window"`
	RateLimitBackend    string        `mapstructure:"rate_limit_backend"`
	RateLimitPrefix     string        `mapstructure:"rate_limit_prefix"`
	RateLimitFailOpen   bool          `mapstructure:"rate_limit_fail_open"`
	AddRateLimitHeaders bool          `mapstructure:"add_ratelimit_headers"`
	TrustXFF            bool          `mapstructure:"trust_xff"`

	RateStatsEnabled   bool          `mapstructure:"rate_stats_enabled"`
	RateStatsPrefix    string        `mapstructure:"rate_stats_prefix"`
	RateStatsTTL       time.Duration `mapstructure:"rate_stats_ttl"`
	RateStatsBucket    string        `mapstructure:"rate_stats_bucket"`
	RateStatsTrackKeys bool          `mapstructure:"rate_stats_track_keys"`

	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	AdminSubject string        `mapstructure:"admin_subject"`
	LoginRPS     float64       `mapstructure:"login_rps"`
	LoginBurst   int           `mapstructure:"login_burst"`

	ConcurrencyMax     int           `mapstructure:"concurrency_max"`
	ConcurrencyTimeout time.Duration `mapstructure:"concurrency_timeout"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("mount_prefix", "")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("upstream_urls", []string{"http://localhost:7001", "http://localhost:7002"})
	v.SetDefault("upstream_timeout", 10*time.Second)
	v.SetDefault("lb_policy", string(balancerdomain.PolicyRoundRobin))
	v.SetDefault("lb_healthy_only", false)

	v.SetDefault("health_enabled", true)
	v.SetDefault("health_path", "/health")
	v.SetDefault("health_interval", 5*time.Second)
	v.SetDefault("health_timeout", 3*time.Second)
	v.SetDefault("health_failure_threshold", 3)
	v.SetDefault("health_breaker_cooldown", 15*time.Second)

	v.SetDefault("rate_limit_max", 3)
	v.SetDefault("rate_limit_window", 30*time.Second)
	v.SetDefault("rate_limit_backend", BackendMemory)
	v.SetDefault("rate_limit_prefix", "rate_limit:")
	v.SetDefault("rate_limit_fail_open", false)
	v.SetDefault("add_ratelimit_headers", false)
	v.SetDefault("trust_xff", false)

	v.SetDefault("rate_stats_enabled", false)
	v.SetDefault("rate_stats_prefix", "ratelimit:stats")
	v.SetDefault("rate_stats_ttl", 24*time.Hour)
	v.SetDefault("rate_stats_bucket", "minute")
	v.SetDefault("rate_stats_track_keys", false)

	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 30*time.Minute)
	v.SetDefault("admin_subject", "admin")
	v.SetDefault("login_rps", 1.0)
	v.SetDefault("login_burst", 5)

	v.SetDefault("concurrency_max", 100)
	v.SetDefault("concurrency_timeout", time.Duration(0))

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load lê padrões, o arquivo (se path != "") e o ambiente, nessa ordem de
// precedência crescente, e valida o resultado.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) normalize() {
	var urls []string
	for _, u := range c.UpstreamURLs {
		for _, part := range strings.Split(u, ",") {
			if p := strings.TrimSpace(part); p != "" {
				urls = append(urls, p)
			}
		}
	}
	c.UpstreamURLs = urls
	c.MountPrefix = strings.TrimRight(strings.TrimSpace(c.MountPrefix), "/")
	if c.MountPrefix != "" && !strings.HasPrefix(c.MountPrefix, "/") {
		c.MountPrefix = "/" + c.MountPrefix
	}
	c.LBPolicy = strings.ToLower(strings.TrimSpace(c.LBPolicy))
	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
}

// Validate junta todos os problemas encontrados em um único erro.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if len(c.UpstreamURLs) == 0 {
		errs = append(errs, errors.New("upstream_urls must list at least one upstream"))
	} else if _, err := balancerdomain.NewRegistry(c.UpstreamURLs); err != nil {
		errs = append(errs, err)
	}
	if _, err := balancerdomain.ParsePolicy(c.LBPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimitMax <= 0 {
		errs = append(errs, errors.New("rate_limit_max must be > 0"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate_limit_window must be > 0"))
	}
	switch c.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("redis_addr is required when rate_limit_backend=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("rate_limit_backend must be %q or %q", BackendMemory, BackendRedis))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be > 0"))
	}
	if c.LoginRPS <= 0 {
		errs = append(errs, errors.New("login_rps must be > 0"))
	}
	if c.LoginBurst <= 0 {
		errs = append(errs, errors.New("login_burst must be > 0"))
	}
	if c.ConcurrencyMax < 0 {
		errs = append(errs, errors.New("concurrency_max must be >= 0"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("upstream_timeout must be > 0"))
	}
	if c.HealthEnabled && (c.HealthInterval <= 0 || c.HealthTimeout <= 0 || c.HealthFailureThreshold <= 0) {
		errs = append(errs, errors.New("health_interval, health_timeout and health_failure_threshold must be > 0"))
	}
	return errors.Join(errs...)
}

// Policy devolve a política já validada.
func (c *Config) Policy() balancerdomain.Policy {
	p, _ := balancerdomain.ParsePolicy(c.LBPolicy)
	return p
}
