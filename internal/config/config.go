package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`    // operator login credential
	JWTSecret  string        `yaml:"jwt_secret"` // HMAC secret for operator sessions
	SessionTTL time.Duration `yaml:"session_ttl"`
	// SubmitLimit / SubmitWindow bound submissions per caller.
	SubmitLimit  int           `yaml:"submit_limit"`
	SubmitWindow time.Duration `yaml:"submit_window"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WorkerConfig struct {
	BaseURL      string        `yaml:"base_url"` // browser-automation wrapper service
	Timeout      time.Duration `yaml:"timeout"`  // bound on a single generation round trip
	PoolSize     int           `yaml:"pool_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type DispatchConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	// PlanFloors maps a plan name to the minimum account priority its jobs
	// may use. Unlisted plans take any account.
	PlanFloors map[string]int `yaml:"plan_floors"`
}

type CooldownConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold"`
	FailureWindow     time.Duration `yaml:"failure_window"`
	FailureCooldown   time.Duration `yaml:"failure_cooldown"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
}

type SchedConfig struct {
	DailyResetInterval time.Duration `yaml:"daily_reset_interval"`
}

type EnhancerConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Worker   WorkerConfig   `yaml:"worker"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Cooldown CooldownConfig `yaml:"cooldown"`
	Sched    SchedConfig    `yaml:"sched"`
	Enhancer EnhancerConfig `yaml:"enhancer"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(dev); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Server.SubmitLimit <= 0 {
		cfg.Server.SubmitLimit = 10
	}
	if cfg.Server.SubmitWindow <= 0 {
		cfg.Server.SubmitWindow = time.Minute
	}
	if cfg.Worker.Timeout <= 0 {
		cfg.Worker.Timeout = 2 * time.Minute
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 4
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 500 * time.Millisecond
	}
	if cfg.Dispatch.MaxAttempts <= 0 {
		cfg.Dispatch.MaxAttempts = 3
	}
	if cfg.Cooldown.FailureThreshold <= 0 {
		cfg.Cooldown.FailureThreshold = 3
	}
	if cfg.Cooldown.FailureWindow <= 0 {
		cfg.Cooldown.FailureWindow = 10 * time.Minute
	}
	if cfg.Cooldown.FailureCooldown <= 0 {
		cfg.Cooldown.FailureCooldown = 5 * time.Minute
	}
	if cfg.Cooldown.RateLimitCooldown <= 0 {
		cfg.Cooldown.RateLimitCooldown = 15 * time.Minute
	}
	if cfg.Sched.DailyResetInterval <= 0 {
		cfg.Sched.DailyResetInterval = 24 * time.Hour
	}
	if cfg.Enhancer.BaseURL == "" {
		cfg.Enhancer.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Enhancer.Model == "" {
		cfg.Enhancer.Model = "gpt-4o-mini"
	}
}

func (cfg *Config) validate(dev bool) error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if !dev && cfg.Server.APIKey == "" {
		return errors.New("server.api_key is required outside dev mode")
	}
	// A rate-limit signal is a stronger detection hint than a generic error,
	// so its cooldown may never undercut the failure cooldown.
	if cfg.Cooldown.RateLimitCooldown < cfg.Cooldown.FailureCooldown {
		return errors.New("cooldown.rate_limit_cooldown must be >= cooldown.failure_cooldown")
	}
	return nil
}
