package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Redis      RedisConfig
	Tracing    TracingConfig    `mapstructure:"tracing"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Events     EventsConfig     `mapstructure:"events"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Proctoring ProctoringConfig `mapstructure:"proctoring"`
	Statistics StatisticsConfig `mapstructure:"statistics"`
	Attempts   AttemptsConfig   `mapstructure:"attempts"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

// DatabaseConfig selects the attempt store. Driver "memory" keeps everything
// in process and is meant for local runs and tests.
type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// ScoringConfig holds fallbacks applied when a quiz leaves a policy unset.
type ScoringConfig struct {
	DefaultRounding  string `mapstructure:"default_rounding"`
	DefaultPrecision int    `mapstructure:"default_precision"`
	MaxEditDistance  int    `mapstructure:"max_edit_distance"`
	PartialMulti     bool   `mapstructure:"partial_multi"`
}

type ProctoringConfig struct {
	DisqualifyOnCritical bool `mapstructure:"disqualify_on_critical"`
	TrustFloor           int  `mapstructure:"trust_floor"`
}

type StatisticsConfig struct {
	MinAttempts     int           `mapstructure:"min_attempts"`
	RollingWindow   int           `mapstructure:"rolling_window"`
	CacheTTLSeconds int           `mapstructure:"cache_ttl_seconds"`
	CacheTTL        time.Duration `mapstructure:"-"`
}

type AttemptsConfig struct {
	ExpirySweepSeconds int `mapstructure:"expiry_sweep_seconds"`
	MaxPauseSeconds    int `mapstructure:"max_pause_seconds"`
}

// LoggingConfig controls the rotating JSON log file and the console copy.
// An empty level follows server.mode.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("events.exchange", "quiz.attempts")
	v.SetDefault("scoring.default_rounding", "round")
	v.SetDefault("scoring.default_precision", 2)
	v.SetDefault("scoring.partial_multi", true)
	v.SetDefault("proctoring.disqualify_on_critical", true)
	v.SetDefault("proctoring.trust_floor", 20)
	v.SetDefault("statistics.min_attempts", 3)
	v.SetDefault("statistics.rolling_window", 5)
	v.SetDefault("statistics.cache_ttl_seconds", 300)
	v.SetDefault("attempts.expiry_sweep_seconds", 30)
	v.SetDefault("attempts.max_pause_seconds", 900)
	v.SetDefault("logging.file", "logs/app.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.console", true)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QUIZ_CORE")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("logging.level", "LOG_LEVEL")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Events
	v.BindEnv("events.enabled", "EVENTS_ENABLED")
	v.BindEnv("events.url", "AMQP_URL")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.Statistics.CacheTTL = time.Duration(cfg.Statistics.CacheTTLSeconds) * time.Second

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}
	if cfg.Proctoring.TrustFloor < 0 || cfg.Proctoring.TrustFloor > 100 {
		return nil, fmt.Errorf("proctoring.trust_floor must be within 0..100, got %d", cfg.Proctoring.TrustFloor)
	}
	if cfg.Statistics.MinAttempts < 1 {
		cfg.Statistics.MinAttempts = 1
	}
	if cfg.Statistics.RollingWindow < 1 {
		cfg.Statistics.RollingWindow = 1
	}

	return &cfg, nil
}
