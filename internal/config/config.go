package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scoutline/scout-cli/internal/scheduler"
	"github.com/scoutline/scout-cli/internal/scoring"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Worker     WorkerConfig     `yaml:"worker" mapstructure:"worker"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Feed       FeedConfig       `yaml:"feed" mapstructure:"feed"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SchedulerConfig configures the sweep loop.
type SchedulerConfig struct {
	// PriorityWaves orders dispatch: waves separated by ';', connector
	// names within a wave by ','. Example: "caha_pdf,guma;instagram".
	PriorityWaves string        `yaml:"priority_waves" mapstructure:"priority_waves"`
	LockTTLSecs   int           `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
	Backoff       BackoffConfig `yaml:"failure_backoff" mapstructure:"failure_backoff"`
}

// BackoffConfig configures rescheduling after failed runs.
type BackoffConfig struct {
	Policy      string  `yaml:"policy" mapstructure:"policy"`
	InitialSecs int     `yaml:"initial_secs" mapstructure:"initial_secs"`
	MaxSecs     int     `yaml:"max_secs" mapstructure:"max_secs"`
	Multiplier  float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// WorkerConfig configures run-job workers.
type WorkerConfig struct {
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	PollIntervalSec int     `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	FetchRatePerSec float64 `yaml:"fetch_rate_per_sec" mapstructure:"fetch_rate_per_sec"`
}

// ScoringConfig configures candidate scoring.
type ScoringConfig struct {
	// RecencyPolicy is "flat" or "decay".
	RecencyPolicy string `yaml:"recency_policy" mapstructure:"recency_policy"`
}

// FeedConfig configures the events feed connector.
type FeedConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Channel string `yaml:"channel" mapstructure:"channel"`
	Cadence string `yaml:"cadence" mapstructure:"cadence"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	FailureCountThreshold int     `yaml:"failure_count_threshold" mapstructure:"failure_count_threshold"`
	QueueBacklogThreshold int     `yaml:"queue_backlog_threshold" mapstructure:"queue_backlog_threshold"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SchedulerBackoff maps the config block onto the scheduler's backoff
// settings, filling defaults for unset fields.
func (c *Config) SchedulerBackoff() scheduler.BackoffConfig {
	out := scheduler.DefaultBackoffConfig()
	if c.Scheduler.Backoff.Policy != "" {
		out.Policy = c.Scheduler.Backoff.Policy
	}
	if c.Scheduler.Backoff.InitialSecs > 0 {
		out.Initial = time.Duration(c.Scheduler.Backoff.InitialSecs) * time.Second
	}
	if c.Scheduler.Backoff.MaxSecs > 0 {
		out.Max = time.Duration(c.Scheduler.Backoff.MaxSecs) * time.Second
	}
	if c.Scheduler.Backoff.Multiplier > 0 {
		out.Multiplier = c.Scheduler.Backoff.Multiplier
	}
	return out
}

// LockTTL returns the configured lock TTL, or the scheduler default.
func (c *Config) LockTTL() time.Duration {
	if c.Scheduler.LockTTLSecs > 0 {
		return time.Duration(c.Scheduler.LockTTLSecs) * time.Second
	}
	return scheduler.DefaultLockTTL
}

// RecencyPolicy returns the configured scoring recency policy.
func (c *Config) RecencyPolicy() scoring.RecencyPolicy {
	if c.Scoring.RecencyPolicy == string(scoring.RecencyDecay) {
		return scoring.RecencyDecay
	}
	return scoring.RecencyFlat
}

// Validate checks the configuration needed for the given mode ("sweep",
// "worker", or "serve"). Problems are joined into one error so a bad config
// reports everything at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	switch p := c.Scheduler.Backoff.Policy; p {
	case "", scheduler.BackoffNone, scheduler.BackoffExponential:
	default:
		problems = append(problems, "scheduler.failure_backoff.policy must be none or exponential")
	}
	switch p := c.Scoring.RecencyPolicy; p {
	case "", string(scoring.RecencyFlat), string(scoring.RecencyDecay):
	default:
		problems = append(problems, "scoring.recency_policy must be flat or decay")
	}

	switch mode {
	case "sweep":
	case "worker":
		if c.Worker.Concurrency < 1 || c.Worker.Concurrency > 32 {
			problems = append(problems, "worker.concurrency must be between 1 and 32")
		}
		if c.Worker.PollIntervalSec < 1 {
			problems = append(problems, "worker.poll_interval_secs must be >= 1")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "scout.db")
	v.SetDefault("scheduler.priority_waves", "")
	v.SetDefault("scheduler.lock_ttl_secs", 1800)
	v.SetDefault("scheduler.failure_backoff.policy", scheduler.BackoffNone)
	v.SetDefault("scheduler.failure_backoff.initial_secs", 300)
	v.SetDefault("scheduler.failure_backoff.max_secs", 21600)
	v.SetDefault("scheduler.failure_backoff.multiplier", 2.0)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.poll_interval_secs", 5)
	v.SetDefault("worker.fetch_rate_per_sec", 1.0)
	v.SetDefault("scoring.recency_policy", string(scoring.RecencyFlat))
	v.SetDefault("feed.channel", "events")
	v.SetDefault("feed.cadence", "0 6 * * *")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.failure_count_threshold", 3)
	v.SetDefault("monitoring.queue_backlog_threshold", 25)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
