package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/amosWeiskopf/rankcrawl/pkg/reporter"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix is prepended to every environment override, e.g. RANKCRAWL_CRAWLER_TARGET
const EnvPrefix = "RANKCRAWL"

// Config holds all application configuration
type Config struct {
	// Crawler configuration
	Crawler CrawlerConfig `mapstructure:"crawler"`

	// robots.txt handling
	Robots RobotsConfig `mapstructure:"robots"`

	// PageRank configuration
	Rank RankConfig `mapstructure:"rank"`

	// Output configuration
	Output OutputConfig `mapstructure:"output"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig holds crawler-specific configuration
type CrawlerConfig struct {
	Target            int           `mapstructure:"target"`
	Workers           int           `mapstructure:"workers"`
	Mode              string        `mapstructure:"mode"` // "basic" or "pagerank"
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Scope             string        `mapstructure:"scope"` // "any", "host" or "site"
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	SkipAssets        bool          `mapstructure:"skip_assets"`
	ExtractTitles     bool          `mapstructure:"extract_titles"`
	ProgressInterval  time.Duration `mapstructure:"progress_interval"`
}

// RobotsConfig holds robots.txt configuration
type RobotsConfig struct {
	Respect    bool          `mapstructure:"respect"`
	FailClosed bool          `mapstructure:"fail_closed"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RankConfig holds PageRank parameters
type RankConfig struct {
	Damping       float64 `mapstructure:"damping"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
	Scope         string  `mapstructure:"scope"` // "all" or "visited"
}

// OutputConfig holds result rendering configuration
type OutputConfig struct {
	Format      string `mapstructure:"format"` // "text", "json", "markdown" or "html"
	Top         int    `mapstructure:"top"`
	ExcludeSeed bool   `mapstructure:"exclude_seed"`
	TopHosts    int    `mapstructure:"top_hosts"`
}

// StorageConfig holds the optional graph export
type StorageConfig struct {
	ExportPath string `mapstructure:"export_path"`
}

// MetricsConfig holds the optional metrics dump
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing priority. Flags bound on v before calling Load
// win over all three. A nil v gets a fresh instance.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.rankcrawl")
	}

	// Set defaults
	setDefaults(v)

	// Bind environment variables
	bindEnvVars(v)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error, we'll use defaults and env
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config file: %v", ErrInvalidConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unable to decode config: %v", ErrInvalidConfig, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Crawler defaults
	v.SetDefault("crawler.target", 100)
	v.SetDefault("crawler.workers", 5)
	v.SetDefault("crawler.mode", "basic")
	v.SetDefault("crawler.user_agent", "rankcrawl/1.0")
	v.SetDefault("crawler.timeout", "15s")
	v.SetDefault("crawler.max_retries", 1)
	v.SetDefault("crawler.requests_per_second", 0)
	v.SetDefault("crawler.scope", "any")
	v.SetDefault("crawler.max_body_bytes", 5<<20)
	v.SetDefault("crawler.skip_assets", true)
	v.SetDefault("crawler.extract_titles", false)
	v.SetDefault("crawler.progress_interval", "5s")

	// Robots defaults
	v.SetDefault("robots.respect", true)
	v.SetDefault("robots.fail_closed", false)
	v.SetDefault("robots.timeout", "5s")

	// Rank defaults
	v.SetDefault("rank.damping", 0.85)
	v.SetDefault("rank.max_iterations", 200)
	v.SetDefault("rank.tolerance", 0.001)
	v.SetDefault("rank.scope", "all")

	// Output defaults
	v.SetDefault("output.format", "text")
	v.SetDefault("output.top", 0)
	v.SetDefault("output.exclude_seed", false)
	v.SetDefault("output.top_hosts", 10)

	// Storage and metrics are off unless a path is given
	v.SetDefault("storage.export_path", "")
	v.SetDefault("metrics.textfile_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// bindEnvVars binds environment variables
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// normalize lowercases enum-like fields and clamps retries to at most one
func (c *Config) normalize() {
	c.Crawler.Mode = strings.ToLower(strings.TrimSpace(c.Crawler.Mode))
	c.Crawler.Scope = strings.ToLower(strings.TrimSpace(c.Crawler.Scope))
	c.Rank.Scope = strings.ToLower(strings.TrimSpace(c.Rank.Scope))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Crawler.MaxRetries < 0 {
		c.Crawler.MaxRetries = 0
	}
	if c.Crawler.MaxRetries > 1 {
		c.Crawler.MaxRetries = 1
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Crawler.Target >= 1, "crawler.target must be at least 1, got %d", c.Crawler.Target)
	check(c.Crawler.Workers >= 1, "crawler.workers must be at least 1, got %d", c.Crawler.Workers)
	check(oneOf(c.Crawler.Mode, "basic", "pagerank"), "crawler.mode must be basic or pagerank, got %q", c.Crawler.Mode)
	check(oneOf(c.Crawler.Scope, "any", "host", "site"), "crawler.scope must be any, host or site, got %q", c.Crawler.Scope)
	check(c.Crawler.Timeout > 0, "crawler.timeout must be positive")
	check(c.Crawler.RequestsPerSecond >= 0, "crawler.requests_per_second must not be negative")
	check(c.Crawler.MaxBodyBytes > 0, "crawler.max_body_bytes must be positive")
	check(c.Crawler.ProgressInterval >= 0, "crawler.progress_interval must not be negative")
	check(c.Robots.Timeout > 0, "robots.timeout must be positive")
	check(c.Rank.Damping >= 0 && c.Rank.Damping < 1, "rank.damping must be in [0,1), got %v", c.Rank.Damping)
	check(c.Rank.MaxIterations >= 1, "rank.max_iterations must be at least 1, got %d", c.Rank.MaxIterations)
	check(c.Rank.Tolerance > 0, "rank.tolerance must be positive, got %v", c.Rank.Tolerance)
	check(oneOf(c.Rank.Scope, "all", "visited"), "rank.scope must be all or visited, got %q", c.Rank.Scope)
	check(reporter.ValidFormat(c.Output.Format), "output.format %q is not one of %s", c.Output.Format, strings.Join(reporter.Formats, ", "))
	check(c.Output.Top >= 0, "output.top must not be negative")
	check(c.Output.TopHosts >= 0, "output.top_hosts must not be negative")
	check(oneOf(c.Logging.Level, "debug", "info", "warn", "error"), "logging.level %q is not supported", c.Logging.Level)
	check(oneOf(c.Logging.Format, "json", "console"), "logging.format must be json or console, got %q", c.Logging.Format)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
