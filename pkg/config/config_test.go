package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/esmlink/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "esmlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "compiler:\n  root_namespace: com.acme\n"))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultSourceDir, cfg.Compiler.SourceDir)
	assert.Equal(t, config.DefaultOutDir, cfg.Compiler.OutDir)
	assert.Equal(t, config.DefaultExtension, cfg.Compiler.Extension)
	assert.Equal(t, config.DefaultMaxAggregationDepth, cfg.Compiler.MaxAggregationDepth)
	assert.Equal(t, config.DefaultRuntimeModuleID, cfg.Runtime.ModuleID)
	assert.True(t, cfg.Runtime.Emit)
	assert.Equal(t, config.FormatJSON, cfg.Manifest.Format)
	assert.Equal(t, config.LogFormatText, cfg.Logging.Format)
	assert.Equal(t, int64(4_000_000), cfg.Compiler.MaxSourceSizeBytes())
	assert.Equal(t, int64(64_000_000), cfg.Cache.ParseCacheBytes())
	assert.Empty(t, cfg.Compiler.Externals)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, `compiler:
  source_dir: actions
  root_namespace: com.acme.actions
  out_dir: dist
  workers: 4
  fail_fast: true
  max_source_size: 512KiB
  externals:
    - com.vendor
  assets:
    - "**/*.json"
runtime:
  module_id: com.acme.runtime
  emit: false
manifest:
  path: dist/manifest.yaml
  format: yaml
cache:
  parse_cache_size: "0"
logging:
  level: debug
  format: json
telemetry:
  metrics_file: dist/metrics.prom
`))
	require.NoError(t, err)

	assert.Equal(t, "actions", cfg.Compiler.SourceDir)
	assert.Equal(t, "com.acme.actions", cfg.Compiler.RootNamespace)
	assert.Equal(t, 4, cfg.Compiler.Workers)
	assert.True(t, cfg.Compiler.FailFast)
	assert.Equal(t, int64(512*1024), cfg.Compiler.MaxSourceSizeBytes())
	assert.Equal(t, []string{"com.vendor"}, cfg.Compiler.Externals)
	assert.Equal(t, []string{"**/*.json"}, cfg.Compiler.Assets)
	assert.Equal(t, "com.acme.runtime", cfg.Runtime.ModuleID)
	assert.False(t, cfg.Runtime.Emit)
	assert.Equal(t, config.FormatYAML, cfg.Manifest.Format)
	assert.Zero(t, cfg.Cache.ParseCacheBytes())
	assert.Equal(t, "dist/metrics.prom", cfg.Telemetry.MetricsFile)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"missing namespace", "compiler:\n  source_dir: src\n", config.ErrMissingNamespace},
		{"bad namespace", "compiler:\n  root_namespace: a..b\n", config.ErrInvalidNamespace},
		{"bad extension", "compiler:\n  root_namespace: a\n  extension: js\n", config.ErrInvalidExtension},
		{"negative workers", "compiler:\n  root_namespace: a\n  workers: -1\n", config.ErrInvalidWorkers},
		{"zero depth", "compiler:\n  root_namespace: a\n  max_aggregation_depth: 0\n", config.ErrInvalidDepth},
		{"bad size", "compiler:\n  root_namespace: a\n  max_source_size: lots\n", config.ErrInvalidSize},
		{"same dirs", "compiler:\n  root_namespace: a\n  out_dir: src\n", config.ErrConflictingOutputs},
		{"format", "compiler:\n  root_namespace: a\nmanifest:\n  format: xml\n", config.ErrInvalidFormat},
		{"level", "compiler:\n  root_namespace: a\nlogging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"log format", "compiler:\n  root_namespace: a\nlogging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"runtime id", "compiler:\n  root_namespace: a\nruntime:\n  module_id: \"\"\n", config.ErrInvalidRuntimeID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_UnreadableFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "compiler: [unclosed\n"))
	require.Error(t, err)
}

func TestNewViper_FlagOverrides(t *testing.T) {
	t.Parallel()

	v, err := config.NewViper(writeConfig(t, "compiler:\n  root_namespace: a\n"))
	require.NoError(t, err)

	v.Set("compiler.workers", 3)

	cfg, err := config.Decode(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Compiler.Workers)
}
