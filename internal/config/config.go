package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Load loads the configuration following proper precedence: defaults → config file → environment variables
func Load() {
	LoadDefault()

	configFile := os.Getenv("THINGS_CONFIG_FILE")
	if configFile == "" {
		configFile = "things.yaml"
	}

	log.Printf("Attempting to load config file: %s", configFile)

	if err := LoadFromFile(configFile); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Successfully loaded config from file: %s", configFile)
	}

	// Environment variables have the highest priority
	ApplyEnvOverrides()

	log.Printf("Final config - storage: %s, DB Host: %s, DB Database: %s, redis enabled: %t",
		_loaded.Common.Storage.Driver,
		_loaded.Common.Postgres.Host,
		_loaded.Common.Postgres.Database,
		_loaded.Common.Redis.Enabled)
}

// LoadDefault installs a copy of the defaults as the loaded configuration
func LoadDefault() {
	cfg := defaultConfig
	_loaded = &cfg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := defaultConfig

	// Merge YAML values over defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	_loaded = &cfg
	return nil
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
		Http: httpConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxRequestSize: 1048576,
		},
		Storage: storageConfig{
			Driver: "postgres",
		},
		Postgres: postgresConfig{
			User:               "postgres",
			Password:           "postgres",
			Host:               "localhost",
			Port:               5432,
			Database:           "things",
			MaxOpenConnections: 10,
			RunMigrations:      true,
		},
		Redis: redisConfig{
			Enabled:    false,
			Host:       "localhost",
			Port:       6379,
			Database:   0,
			TTLSeconds: 300,
		},
		Search: searchConfig{
			Limit: 5,
		},
		RateLimit: rateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Metrics: metricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	},
}

type Common struct {
	Log       logConfig       `yaml:"log"`
	Http      httpConfig      `yaml:"http"`
	Storage   storageConfig   `yaml:"storage"`
	Postgres  postgresConfig  `yaml:"postgres"`
	Redis     redisConfig     `yaml:"redis"`
	Search    searchConfig    `yaml:"search"`
	RateLimit rateLimitConfig `yaml:"rate_limit"`
	Metrics   metricsConfig   `yaml:"metrics"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type httpConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxRequestSize int64  `yaml:"max_request_size"`
}

func (c httpConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type storageConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "memory"
}

type postgresConfig struct {
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Database           string `yaml:"database"`
	MaxOpenConnections int    `yaml:"max_open_connections"`
	RunMigrations      bool   `yaml:"run_migrations"`
}

func (c postgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
	)
}

type redisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	Database   int    `yaml:"database"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

func (c redisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c redisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type searchConfig struct {
	Limit int `yaml:"limit"` // max suggestions returned for a search term
}

type rateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // per client IP
	Burst             int     `yaml:"burst"`
}

type metricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	return mustLoaded().Common.Log
}

func Http() httpConfig {
	return mustLoaded().Common.Http
}

func Storage() storageConfig {
	return mustLoaded().Common.Storage
}

func Postgres() postgresConfig {
	return mustLoaded().Common.Postgres
}

func Redis() redisConfig {
	return mustLoaded().Common.Redis
}

func Search() searchConfig {
	return mustLoaded().Common.Search
}

func RateLimit() rateLimitConfig {
	return mustLoaded().Common.RateLimit
}

func Metrics() metricsConfig {
	return mustLoaded().Common.Metrics
}

// Get returns the full configuration
func Get() *Config {
	return mustLoaded()
}

func mustLoaded() *Config {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded
}

func ApplyEnvOverrides() {
	if _loaded == nil {
		return
	}

	if level := os.Getenv("THINGS_LOG_LEVEL"); level != "" {
		_loaded.Common.Log.Level = level
	}
	if format := os.Getenv("THINGS_LOG_FORMAT"); format != "" {
		_loaded.Common.Log.Format = format
	}

	if httpHost := os.Getenv("THINGS_HTTP_HOST"); httpHost != "" {
		_loaded.Common.Http.Host = httpHost
	}
	if httpPort := os.Getenv("THINGS_HTTP_PORT"); httpPort != "" {
		if port, err := strconv.Atoi(httpPort); err == nil {
			_loaded.Common.Http.Port = port
		}
	}

	if driver := os.Getenv("THINGS_STORAGE_DRIVER"); driver != "" {
		_loaded.Common.Storage.Driver = driver
	}

	if dbHost := os.Getenv("THINGS_DB_HOST"); dbHost != "" {
		_loaded.Common.Postgres.Host = dbHost
	}
	if dbPort := os.Getenv("THINGS_DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			_loaded.Common.Postgres.Port = port
		}
	}
	if dbUser := os.Getenv("THINGS_DB_USER"); dbUser != "" {
		_loaded.Common.Postgres.User = dbUser
	}
	if dbPassword := os.Getenv("THINGS_DB_PASSWORD"); dbPassword != "" {
		_loaded.Common.Postgres.Password = dbPassword
	}
	if dbName := os.Getenv("THINGS_DB_NAME"); dbName != "" {
		_loaded.Common.Postgres.Database = dbName
	}

	if redisEnabled := os.Getenv("THINGS_REDIS_ENABLED"); redisEnabled != "" {
		if enabled, err := strconv.ParseBool(redisEnabled); err == nil {
			_loaded.Common.Redis.Enabled = enabled
		}
	}
	if redisHost := os.Getenv("THINGS_REDIS_HOST"); redisHost != "" {
		_loaded.Common.Redis.Host = redisHost
	}
	if redisPort := os.Getenv("THINGS_REDIS_PORT"); redisPort != "" {
		if port, err := strconv.Atoi(redisPort); err == nil {
			_loaded.Common.Redis.Port = port
		}
	}
	if redisPassword := os.Getenv("THINGS_REDIS_PASSWORD"); redisPassword != "" {
		_loaded.Common.Redis.Password = redisPassword
	}

	if limit := os.Getenv("THINGS_SEARCH_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			_loaded.Common.Search.Limit = n
		}
	}

	if rlEnabled := os.Getenv("THINGS_RATE_LIMIT_ENABLED"); rlEnabled != "" {
		if enabled, err := strconv.ParseBool(rlEnabled); err == nil {
			_loaded.Common.RateLimit.Enabled = enabled
		}
	}

	if metricsEnabled := os.Getenv("THINGS_METRICS_ENABLED"); metricsEnabled != "" {
		if enabled, err := strconv.ParseBool(metricsEnabled); err == nil {
			_loaded.Common.Metrics.Enabled = enabled
		}
	}
}
