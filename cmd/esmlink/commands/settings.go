// Package commands implements CLI command handlers for esmlink.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/esmlink/pkg/cache"
	"github.com/Sumatoshi-tech/esmlink/pkg/compiler"
	"github.com/Sumatoshi-tech/esmlink/pkg/config"
	"github.com/Sumatoshi-tech/esmlink/pkg/observability"
	"github.com/Sumatoshi-tech/esmlink/pkg/version"
)

// sourceFlags are the flags shared by every command that reads a source tree.
type sourceFlags struct {
	configPath string
	namespace  string
	workers    int
	noColor    bool
}

func (sf *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sf.configPath, "config", "", "path to esmlink.yaml")
	cmd.Flags().StringVarP(&sf.namespace, "namespace", "n", "", "root namespace of the source tree")
	cmd.Flags().IntVarP(&sf.workers, "workers", "w", 0, "worker goroutines (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&sf.noColor, "no-color", false, "disable colored output")
}

// load reads the configuration and applies the positional source directory
// and every flag the user set explicitly.
func (sf *sourceFlags) load(cmd *cobra.Command, args []string, extra func(*viper.Viper)) (*config.Config, error) {
	viperCfg, err := config.NewViper(sf.configPath)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		viperCfg.Set("compiler.source_dir", args[0])
	}

	if cmd.Flags().Changed("namespace") {
		viperCfg.Set("compiler.root_namespace", sf.namespace)
	}

	if cmd.Flags().Changed("workers") {
		viperCfg.Set("compiler.workers", sf.workers)
	}

	if extra != nil {
		extra(viperCfg)
	}

	return config.Decode(viperCfg)
}

// session bundles the observability providers of one command run.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.CompileMetrics
}

func startSession(cfg *config.Config, mode observability.AppMode, logOut io.Writer) (*session, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.MetricsFile = cfg.Telemetry.MetricsFile
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	obsCfg.LogLevel = level

	providers, err := observability.InitWithWriter(obsCfg, logOut)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewCompileMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &session{cfg: cfg, providers: providers, metrics: metrics}, nil
}

func (s *session) close(ctx context.Context) error {
	return s.providers.Shutdown(ctx)
}

func (s *session) compiler() *compiler.Compiler {
	opts := []compiler.Option{
		compiler.WithLogger(s.providers.Logger),
		compiler.WithTracer(s.providers.Tracer),
		compiler.WithMetrics(s.metrics),
	}

	if size := s.cfg.Cache.ParseCacheBytes(); size > 0 {
		opts = append(opts, compiler.WithParseCache(cache.NewParseCache(size)))
	}

	return compiler.New(compiler.OptionsFromConfig(s.cfg), opts...)
}
