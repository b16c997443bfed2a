package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Workouts WorkoutsConfig `mapstructure:"workouts"`
	WeighIns WeighInsConfig `mapstructure:"weighins"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release, test
}

// Database drivers
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// Enabled reports whether photo uploads can be offered at all.
func (c S3Config) Enabled() bool {
	return c.BucketName != ""
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// RedisConfig is used for the job lock. An empty address disables it.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JobsConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MissedWorkoutsCron  string        `mapstructure:"missed_workouts_cron"`
	WeeklyPenaltiesCron string        `mapstructure:"weekly_penalties_cron"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	RunOnStart          bool          `mapstructure:"run_on_start"`
}

type LedgerConfig struct {
	MissedWorkoutPenalty float64 `mapstructure:"missed_workout_penalty"`
	Currency             string  `mapstructure:"currency"`
}

type WorkoutsConfig struct {
	// LogWindowDays is how many days back a client may still complete a workout.
	LogWindowDays      int           `mapstructure:"log_window_days"`
	SuspiciousDuration time.Duration `mapstructure:"suspicious_duration"`
}

type WeighInsConfig struct {
	SpikeThresholdPercent float64 `mapstructure:"spike_threshold_percent"`
}

type CacheConfig struct {
	PlanCacheBytes int           `mapstructure:"plan_cache_bytes"`
	PlanTTL        time.Duration `mapstructure:"plan_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Stdout bool   `mapstructure:"stdout"`
	JSON   bool   `mapstructure:"json"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "kinetix")
	// Keys without a meaningful default are still registered so AutomaticEnv
	// can see them during Unmarshal.
	for _, key := range []string{
		"s3.endpoint", "s3.region", "s3.access_key_id", "s3.secret_access_key", "s3.bucket_name",
		"jwt.secret", "redis.address", "redis.password", "logging.file",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("s3.use_ssl", true) // Default to true for cloud providers
	v.SetDefault("s3.presign_expiry", "15m")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.missed_workouts_cron", "0 15 0 * * *")  // 00:15:00 UTC daily
	v.SetDefault("jobs.weekly_penalties_cron", "0 30 0 * * 1") // 00:30:00 UTC Mondays
	v.SetDefault("jobs.lock_ttl", "10m")
	v.SetDefault("jobs.run_on_start", false)
	v.SetDefault("ledger.missed_workout_penalty", 1)
	v.SetDefault("ledger.currency", "EUR")
	v.SetDefault("workouts.log_window_days", 2)
	v.SetDefault("workouts.suspicious_duration", "5m")
	v.SetDefault("weighins.spike_threshold_percent", 5)
	v.SetDefault("cache.plan_cache_bytes", 8*1024*1024)
	v.SetDefault("cache.plan_ttl", "5m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.stdout", true)
	v.SetDefault("logging.json", false)
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Nested keys map to env vars: jobs.lock_ttl -> JOBS_LOCK_TTL
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	SetDefaults(v)

	// A missing file is fine; defaults and env vars still apply.
	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
	}

	// Duration strings ("10m", "1h") decode straight into time.Duration fields.
	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports every problem at once rather than the first one found.
func (c Config) Validate() error {
	var err error
	if c.JWT.Secret == "" {
		err = multierr.Append(err, errors.New("jwt.secret is required"))
	}
	if c.JWT.Expiration <= 0 {
		err = multierr.Append(err, errors.New("jwt.expiration must be positive"))
	}
	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.URI == "" || c.Database.Name == "" {
			err = multierr.Append(err, errors.New("database.uri and database.name are required for the mongo driver"))
		}
	case DriverMemory:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	if c.Jobs.Enabled {
		if _, perr := cronParser.Parse(c.Jobs.MissedWorkoutsCron); perr != nil {
			err = multierr.Append(err, fmt.Errorf("jobs.missed_workouts_cron: %w", perr))
		}
		if _, perr := cronParser.Parse(c.Jobs.WeeklyPenaltiesCron); perr != nil {
			err = multierr.Append(err, fmt.Errorf("jobs.weekly_penalties_cron: %w", perr))
		}
		if c.Jobs.LockTTL <= 0 {
			err = multierr.Append(err, errors.New("jobs.lock_ttl must be positive"))
		}
	}
	if c.Ledger.MissedWorkoutPenalty < 0 {
		err = multierr.Append(err, errors.New("ledger.missed_workout_penalty must not be negative"))
	}
	if c.Workouts.LogWindowDays < 0 {
		err = multierr.Append(err, errors.New("workouts.log_window_days must not be negative"))
	}
	if c.WeighIns.SpikeThresholdPercent <= 0 {
		err = multierr.Append(err, errors.New("weighins.spike_threshold_percent must be positive"))
	}
	if c.Cache.PlanCacheBytes < 0 {
		err = multierr.Append(err, errors.New("cache.plan_cache_bytes must not be negative"))
	}
	return err
}
