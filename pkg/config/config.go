// Package config provides configuration loading and validation for esmlink.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrMissingSourceDir   = errors.New("compiler source directory is required")
	ErrMissingNamespace   = errors.New("compiler root namespace is required")
	ErrInvalidNamespace   = errors.New("invalid root namespace")
	ErrInvalidExtension   = errors.New("compiler extension must start with a dot")
	ErrInvalidWorkers     = errors.New("compiler workers must not be negative")
	ErrInvalidDepth       = errors.New("max aggregation depth must be positive")
	ErrInvalidSize        = errors.New("invalid size")
	ErrInvalidRuntimeID   = errors.New("runtime module id is required")
	ErrInvalidFormat      = errors.New("unsupported manifest format")
	ErrInvalidLogLevel    = errors.New("unsupported logging level")
	ErrInvalidLogFormat   = errors.New("unsupported logging format")
	ErrConflictingOutputs = errors.New("output directory must differ from the source directory")
)

// configName is the config file name without extension.
const configName = "esmlink"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for esmlink settings.
const envPrefix = "ESMLINK"

// Config holds all configuration for one esmlink invocation.
type Config struct {
	Compiler  CompilerConfig  `mapstructure:"compiler"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// CompilerConfig holds the compilation inputs and limits.
type CompilerConfig struct {
	SourceDir           string   `mapstructure:"source_dir"`
	RootNamespace       string   `mapstructure:"root_namespace"`
	OutDir              string   `mapstructure:"out_dir"`
	Extension           string   `mapstructure:"extension"`
	MaxSourceSize       string   `mapstructure:"max_source_size"`
	Externals           []string `mapstructure:"externals"`
	Assets              []string `mapstructure:"assets"`
	Workers             int      `mapstructure:"workers"`
	MaxAggregationDepth int      `mapstructure:"max_aggregation_depth"`
	FailFast            bool     `mapstructure:"fail_fast"`
}

// RuntimeConfig holds the linkage runtime settings.
type RuntimeConfig struct {
	ModuleID string `mapstructure:"module_id"`
	Emit     bool   `mapstructure:"emit"`
}

// ManifestConfig holds manifest output settings. An empty path disables the manifest.
type ManifestConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// CacheConfig holds parse cache settings.
type CacheConfig struct {
	ParseCacheSize string `mapstructure:"parse_cache_size"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	MetricsFile  string `mapstructure:"metrics_file"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise esmlink.yaml is searched in CWD and ./config.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}

	return Decode(viperCfg)
}

// NewViper returns a viper instance with defaults, env bindings and the
// config file read in. Callers may bind flags before calling Decode.
func NewViper(configPath string) (*viper.Viper, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	return viperCfg, nil
}

// Decode unmarshals and validates the configuration held by viperCfg.
func Decode(viperCfg *viper.Viper) (*Config, error) {
	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&cfg)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("compiler.source_dir", DefaultSourceDir)
	viperCfg.SetDefault("compiler.root_namespace", "")
	viperCfg.SetDefault("compiler.out_dir", DefaultOutDir)
	viperCfg.SetDefault("compiler.extension", DefaultExtension)
	viperCfg.SetDefault("compiler.workers", DefaultWorkers)
	viperCfg.SetDefault("compiler.fail_fast", DefaultFailFast)
	viperCfg.SetDefault("compiler.max_source_size", DefaultMaxSourceSize)
	viperCfg.SetDefault("compiler.max_aggregation_depth", DefaultMaxAggregationDepth)
	viperCfg.SetDefault("compiler.externals", []string{})
	viperCfg.SetDefault("compiler.assets", []string{})

	viperCfg.SetDefault("runtime.module_id", DefaultRuntimeModuleID)
	viperCfg.SetDefault("runtime.emit", DefaultRuntimeEmit)

	viperCfg.SetDefault("manifest.path", DefaultManifestPath)
	viperCfg.SetDefault("manifest.format", DefaultManifestFormat)

	viperCfg.SetDefault("cache.parse_cache_size", DefaultParseCacheSize)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_file", "")
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	compilerErr := cfg.validateCompiler()
	if compilerErr != nil {
		return compilerErr
	}

	if cfg.Runtime.ModuleID == "" {
		return ErrInvalidRuntimeID
	}

	switch cfg.Manifest.Format {
	case FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Manifest.Format)
	}

	_, sizeErr := parseSize("cache.parse_cache_size", cfg.Cache.ParseCacheSize)
	if sizeErr != nil {
		return sizeErr
	}

	return cfg.validateLogging()
}

func (cfg *Config) validateCompiler() error {
	c := &cfg.Compiler

	if c.SourceDir == "" {
		return ErrMissingSourceDir
	}

	if c.RootNamespace == "" {
		return ErrMissingNamespace
	}

	for _, part := range strings.Split(c.RootNamespace, ".") {
		if part == "" || strings.ContainsAny(part, "/\\") {
			return fmt.Errorf("%w: %q", ErrInvalidNamespace, c.RootNamespace)
		}
	}

	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, c.Extension)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}

	if c.MaxAggregationDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, c.MaxAggregationDepth)
	}

	if c.OutDir != "" && c.OutDir == c.SourceDir {
		return fmt.Errorf("%w: %s", ErrConflictingOutputs, c.OutDir)
	}

	_, sizeErr := parseSize("compiler.max_source_size", c.MaxSourceSize)

	return sizeErr
}

func (cfg *Config) validateLogging() error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.Logging.Format)
	}

	return nil
}

// MaxSourceSizeBytes returns compiler.max_source_size in bytes.
func (c *CompilerConfig) MaxSourceSizeBytes() int64 {
	n, _ := parseSize("compiler.max_source_size", c.MaxSourceSize)

	return n
}

// ParseCacheBytes returns cache.parse_cache_size in bytes; zero disables the cache.
func (c *CacheConfig) ParseCacheBytes() int64 {
	n, _ := parseSize("cache.parse_cache_size", c.ParseCacheSize)

	return n
}

func parseSize(key, value string) (int64, error) {
	if value == "" || value == "0" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidSize, key, value, err)
	}

	return int64(n), nil //nolint:gosec // sizes are far below math.MaxInt64.
}
