package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "params.yaml"

// Config holds all crawl settings. It is loaded once at startup and passed
// by pointer into the fetch client, the crawler and the sinks.
type Config struct {
	SearchBaseURL string `yaml:"search_base_url"`
	ResultBaseURL string `yaml:"result_base_url"`

	OfferingType string `yaml:"offering_type"`
	EstateType   string `yaml:"estate_type"`
	City         string `yaml:"city"`
	District     string `yaml:"district"`

	Radius          string `yaml:"radius"`
	RadiusValue     string `yaml:"radius_value"`
	Pagination      string `yaml:"pagination"`
	MaxListingLinks string `yaml:"max_listing_links"`

	PriceMin      string `yaml:"price_min"`
	PriceMinValue string `yaml:"price_min_value"`
	PriceMax      string `yaml:"price_max"`
	PriceMaxValue string `yaml:"price_max_value"`
	AreaMin       string `yaml:"area_min"`
	AreaMinValue  string `yaml:"area_min_value"`
	AreaMax       string `yaml:"area_max"`
	AreaMaxValue  string `yaml:"area_max_value"`
	SuffixURL     string `yaml:"suffix_url"`

	Agent          string        `yaml:"agent"`
	RequestTimeout float64       `yaml:"request_timeout"`
	Retry          RetryConfig   `yaml:"retry"`
	Backoff        BackoffConfig `yaml:"backoff"`

	SleepTime      float64 `yaml:"sleep_time"`
	PageLimit      int     `yaml:"page_limit"`
	Workers        int     `yaml:"workers"`
	Dedupe         bool    `yaml:"dedupe"`
	VerboseLogging bool    `yaml:"verbose_logging"`
	LogLevel       string  `yaml:"log_level"`

	ResultsFile string         `yaml:"results_file"`
	Output      OutputConfig   `yaml:"output"`
	Postgres    PostgresConfig `yaml:"postgres"`
	SQLite      SQLiteConfig   `yaml:"sqlite"`
	S3          S3Config       `yaml:"s3"`
}

// RetryConfig holds per-class transport retry budgets.
type RetryConfig struct {
	Connect  int `yaml:"connect"`
	Read     int `yaml:"read"`
	Redirect int `yaml:"redirect"`
}

// BackoffConfig is expressed in seconds.
type BackoffConfig struct {
	MinWait     float64 `yaml:"min_wait"`
	MaxWait     float64 `yaml:"max_wait"`
	MaxAttempts int     `yaml:"max_attempts"`

	// set when the key appeared in the file, so an explicit 0 survives defaults
	minSet, maxSet bool
}

func (b *BackoffConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		MinWait     *float64 `yaml:"min_wait"`
		MaxWait     *float64 `yaml:"max_wait"`
		MaxAttempts int      `yaml:"max_attempts"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.MinWait != nil {
		b.MinWait, b.minSet = *raw.MinWait, true
	}
	if raw.MaxWait != nil {
		b.MaxWait, b.maxSet = *raw.MaxWait, true
	}
	b.MaxAttempts = raw.MaxAttempts
	return nil
}

type OutputConfig struct {
	Sink         string `yaml:"sink"`
	Format       string `yaml:"format"`
	FlushPerPage bool   `yaml:"flush_per_page"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DB       string `yaml:"db"`
	SSLMode  string `yaml:"sslmode"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ConfigError means the configuration source is missing, empty or invalid.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads the .env file (if any), then the YAML parameters file at path,
// applies environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Path: path, Reason: "parameters file not found", Err: err}
		}
		return nil, &ConfigError{Path: path, Reason: "read parameters file", Err: err}
	}
	return Parse(path, data)
}

// Parse decodes raw YAML parameters. path is only used in error messages.
func Parse(path string, data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConfigError{Path: path, Reason: "parameters file is empty"}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Reason: "decode yaml", Err: err}
	}
	if cfg == (Config{}) {
		return nil, &ConfigError{Path: path, Reason: "parameters file holds no settings"}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Reason: "invalid parameters", Err: err}
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Postgres.Host = getEnv("POSTGRES_HOST", c.Postgres.Host)
	c.Postgres.Port = getEnv("POSTGRES_PORT", c.Postgres.Port)
	c.Postgres.User = getEnv("POSTGRES_USER", c.Postgres.User)
	c.Postgres.Password = getEnv("POSTGRES_PASSWORD", c.Postgres.Password)
	c.Postgres.DB = getEnv("POSTGRES_DB", c.Postgres.DB)
	c.Postgres.SSLMode = getEnv("POSTGRES_SSLMODE", c.Postgres.SSLMode)

	c.S3.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.PageLimit = getEnvInt("PAGE_LIMIT", c.PageLimit)
}

func (c *Config) applyDefaults() {
	if c.Agent == "" {
		c.Agent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30
	}
	c.Backoff.applyDefaults()
	if c.Backoff.MaxAttempts == 0 {
		c.Backoff.MaxAttempts = 5
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ResultsFile == "" {
		c.ResultsFile = "results.txt"
	}
	if c.Output.Sink == "" {
		c.Output.Sink = "file"
	}
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == "" {
		c.Postgres.Port = "5432"
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "estates.db"
	}
	if c.S3.Key == "" {
		c.S3.Key = "estates.jsonl"
	}
}

// A missing bound defaults to 2s/5s but never crosses the bound that was given.
func (b *BackoffConfig) applyDefaults() {
	if !b.minSet && b.MinWait == 0 {
		b.MinWait = 2
		if b.maxSet {
			b.MinWait = min(b.MinWait, b.MaxWait)
		}
	}
	if !b.maxSet && b.MaxWait == 0 {
		b.MaxWait = max(5, b.MinWait)
	}
}

// Validate reports the first setting that would make a crawl impossible.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"search_base_url", c.SearchBaseURL},
		{"result_base_url", c.ResultBaseURL},
		{"pagination", c.Pagination},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if c.Retry.Connect < 0 || c.Retry.Read < 0 || c.Retry.Redirect < 0 {
		return errors.New("retry budgets must not be negative")
	}
	if c.Backoff.MinWait < 0 || c.Backoff.MaxWait < c.Backoff.MinWait {
		return fmt.Errorf("backoff window [%v, %v] is invalid", c.Backoff.MinWait, c.Backoff.MaxWait)
	}
	if c.Backoff.MaxAttempts < 1 {
		return errors.New("backoff.max_attempts must be at least 1")
	}
	if c.SleepTime < 0 {
		return errors.New("sleep_time must not be negative")
	}
	if c.PageLimit < 0 {
		return errors.New("page_limit must not be negative")
	}

	switch c.Output.Sink {
	case "file":
		switch c.Output.Format {
		case "text", "jsonl", "csv":
		default:
			return fmt.Errorf("unknown output format %q", c.Output.Format)
		}
	case "postgres":
		if c.Postgres.DB == "" {
			return errors.New("postgres.db is required for the postgres sink")
		}
	case "sqlite":
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("unknown output sink %q", c.Output.Sink)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.Postgres.Host +
		" port=" + c.Postgres.Port +
		" user=" + c.Postgres.User +
		" password=" + c.Postgres.Password +
		" dbname=" + c.Postgres.DB +
		" sslmode=" + c.Postgres.SSLMode
}

func (c *Config) SleepDuration() time.Duration {
	return seconds(c.SleepTime)
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	return seconds(c.RequestTimeout)
}

func (b BackoffConfig) MinWaitDuration() time.Duration { return seconds(b.MinWait) }
func (b BackoffConfig) MaxWaitDuration() time.Duration { return seconds(b.MaxWait) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
