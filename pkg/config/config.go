package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
)

// Config holds all configuration for keyscout.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, DSNs, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// MigrationsPath is the directory holding the engine schema migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Engine database (PostgreSQL) holding key labels and profile metrics.
	Database DatabaseConfig `yaml:"database"`

	// Storage backend holding the raw_* tables produced by ingestion.
	Storage StorageConfig `yaml:"storage"`

	Ingest    IngestConfig    `yaml:"ingest"`
	Profiling ProfilingConfig `yaml:"profiling"`
	Labels    LabelsConfig    `yaml:"labels"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"keyscout"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"keyscout"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// StorageConfig selects the backend that receives ingested tables and
// serves them back for profiling.
type StorageConfig struct {
	// Type is one of "postgres", "sqlserver", "sqlite". Empty disables ingest/profiling.
	Type string `yaml:"type" env:"STORAGE_TYPE" env-default:""`
	// DSN is the driver connection string. Secret - not in YAML.
	DSN       string `yaml:"-" env:"STORAGE_DSN"`
	BatchSize int    `yaml:"batch_size" env:"STORAGE_BATCH_SIZE" env-default:"10000"`
}

// IngestConfig controls type inference during ingestion.
type IngestConfig struct {
	SampleRows      int    `yaml:"sample_rows" env:"INGEST_SAMPLE_ROWS" env-default:"100"`
	DefaultEncoding string `yaml:"default_encoding" env:"INGEST_DEFAULT_ENCODING" env-default:"utf-8"`
}

// ProfilingConfig holds candidate-key discovery thresholds.
// The column prefilter (UniquenessThreshold, NullThreshold) and the
// in-discovery strong column rule are deliberately separate values.
type ProfilingConfig struct {
	// Ratios in [0,1] applied to the per-column prefilter.
	UniquenessThreshold float64 `yaml:"uniqueness_threshold" env:"PROFILING_UNIQUENESS_THRESHOLD" env-default:"0.2"`
	NullThreshold       float64 `yaml:"null_threshold" env:"PROFILING_NULL_THRESHOLD" env-default:"0.5"`

	// Percentages in [0,100].
	StrongColumnThreshold float64 `yaml:"strong_column_threshold" env:"PROFILING_STRONG_COLUMN_THRESHOLD" env-default:"50"`
	CombinationThreshold  float64 `yaml:"combination_threshold" env:"PROFILING_COMBINATION_THRESHOLD" env-default:"30"`

	MaxCombinationSize int `yaml:"max_combination_size" env:"PROFILING_MAX_COMBINATION_SIZE" env-default:"3"`
	MaxCombinations    int `yaml:"max_combinations" env:"PROFILING_MAX_COMBINATIONS" env-default:"5000"`
	MaxSampleRows      int `yaml:"max_sample_rows" env:"PROFILING_MAX_SAMPLE_ROWS" env-default:"500000"`
	Workers            int `yaml:"workers" env:"PROFILING_WORKERS" env-default:"8"`

	// ExcludeColumnsStr is a comma-separated list of columns never profiled
	// (the loader's surrogate key by default).
	ExcludeColumnsStr string   `yaml:"exclude_columns" env:"PROFILING_EXCLUDE_COLUMNS" env-default:"id"`
	ExcludeColumns    []string `yaml:"-"`
}

// LabelsConfig controls the key label store.
type LabelsConfig struct {
	// RunMigrationsOnStart applies engine migrations when the server starts.
	RunMigrationsOnStart bool `yaml:"run_migrations_on_start" env:"LABELS_RUN_MIGRATIONS_ON_START" env-default:"true"`
}

// MetricsConfig holds operational metrics settings.
type MetricsConfig struct {
	Datadog DatadogConfig `yaml:"datadog"`
}

// DatadogConfig configures the Datadog metrics backend.
// DD_API_KEY and DD_SITE are read by the Datadog client directly.
type DatadogConfig struct {
	Enabled       bool          `yaml:"enabled" env:"DATADOG_ENABLED" env-default:"false"`
	JobName       string        `yaml:"job_name" env:"DATADOG_JOB_NAME" env-default:"keyscout"`
	TagsStr       string        `yaml:"tags" env:"DATADOG_TAGS" env-default:""`
	FlushInterval time.Duration `yaml:"flush_interval" env:"DATADOG_FLUSH_INTERVAL" env-default:"60s"`
	Tags          []string      `yaml:"-"`
}

// MCPConfig controls the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom("config.yaml", version)
}

// LoadFrom reads configuration from the given YAML path with environment overrides.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Without a config file every value comes from the environment.
	if _, statErr := os.Stat(path); path == "" || errors.Is(statErr, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.parseComplexFields()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	c.Profiling.ExcludeColumns = splitCSV(c.Profiling.ExcludeColumnsStr)
	c.Metrics.Datadog.Tags = splitCSV(c.Metrics.Datadog.TagsStr)
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
}

func (c *Config) validate() error {
	p := c.Profiling
	if p.UniquenessThreshold < 0 || p.UniquenessThreshold > 1 {
		return fmt.Errorf("profiling.uniqueness_threshold must be within [0,1], got %v", p.UniquenessThreshold)
	}
	if p.NullThreshold < 0 || p.NullThreshold > 1 {
		return fmt.Errorf("profiling.null_threshold must be within [0,1], got %v", p.NullThreshold)
	}
	if p.StrongColumnThreshold < 0 || p.StrongColumnThreshold > 100 {
		return fmt.Errorf("profiling.strong_column_threshold must be within [0,100], got %v", p.StrongColumnThreshold)
	}
	if p.CombinationThreshold < 0 || p.CombinationThreshold > 100 {
		return fmt.Errorf("profiling.combination_threshold must be within [0,100], got %v", p.CombinationThreshold)
	}
	if p.MaxCombinationSize < 1 {
		return fmt.Errorf("profiling.max_combination_size must be at least 1")
	}
	if p.MaxCombinations < 1 {
		return fmt.Errorf("profiling.max_combinations must be at least 1")
	}
	if p.MaxSampleRows < 0 {
		return fmt.Errorf("profiling.max_sample_rows must not be negative")
	}
	if c.Ingest.SampleRows < 1 {
		return fmt.Errorf("ingest.sample_rows must be at least 1")
	}
	if c.Storage.BatchSize < 1 {
		return fmt.Errorf("storage.batch_size must be at least 1")
	}

	switch c.Storage.Type {
	case "":
	case "postgres", "sqlserver", "sqlite":
		if c.Storage.DSN == "" {
			return fmt.Errorf("STORAGE_DSN is required when storage.type is %q", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unsupported storage.type %q", c.Storage.Type)
	}
	return nil
}

// ConnectionString returns a PostgreSQL URL for the engine database.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		ResolveHostForDocker(c.Host),
		c.Port,
		url.QueryEscape(c.Database),
		c.SSLMode,
	)
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// ResolveHostForDocker maps localhost to host.docker.internal when the
// process runs inside a container, so databases on the host stay reachable.
func ResolveHostForDocker(host string) string {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	if isDockerResult && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
