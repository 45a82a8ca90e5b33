package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/esmlink/pkg/observability"
)

var (
	// ErrCompileFailed is returned when at least one unit failed to compile.
	ErrCompileFailed = errors.New("compilation failed")
	// ErrDrift is returned by --check when generated output differs from disk.
	ErrDrift = errors.New("generated output differs from files on disk")
)

// CompileCommand holds the flags of the compile command.
type CompileCommand struct {
	sourceFlags

	outDir         string
	manifestPath   string
	manifestFormat string
	metricsFile    string
	failFast       bool
	check          bool
	noRuntime      bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	cc := &CompileCommand{}

	cmd := &cobra.Command{
		Use:   "compile [source-dir]",
		Short: "Compile a source tree into lazily linked units",
		Long: `Compile every module below the source directory into a unit for the host.

Units with errors produce no output; every other unit is still written.

Examples:
  esmlink compile src --namespace com.acme.actions --out build
  esmlink compile --config esmlink.yaml --manifest build/manifest.yaml
  esmlink compile --check`,
		Args: cobra.MaximumNArgs(1),
		RunE: cc.run,
	}

	cc.register(cmd)

	cmd.Flags().StringVarP(&cc.outDir, "out", "o", "", "output directory")
	cmd.Flags().StringVar(&cc.manifestPath, "manifest", "", "write the manifest to this path")
	cmd.Flags().StringVar(&cc.manifestFormat, "manifest-format", "", "manifest format: json or yaml")
	cmd.Flags().StringVar(&cc.metricsFile, "metrics-file", "", "write compile metrics in Prometheus text format")
	cmd.Flags().BoolVar(&cc.failFast, "fail-fast", false, "stop scheduling units after the first error")
	cmd.Flags().BoolVar(&cc.check, "check", false, "compare generated output with the files on disk instead of writing")
	cmd.Flags().BoolVar(&cc.noRuntime, "no-runtime", false, "do not emit the linkage runtime unit")

	return cmd
}

func (cc *CompileCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := cc.load(cmd, args, func(v *viper.Viper) {
		flags := cmd.Flags()

		if flags.Changed("out") {
			v.Set("compiler.out_dir", cc.outDir)
		}

		if flags.Changed("manifest") {
			v.Set("manifest.path", cc.manifestPath)
		}

		if flags.Changed("manifest-format") {
			v.Set("manifest.format", cc.manifestFormat)
		}

		if flags.Changed("metrics-file") {
			v.Set("telemetry.metrics_file", cc.metricsFile)
		}

		if flags.Changed("fail-fast") {
			v.Set("compiler.fail_fast", cc.failFast)
		}

		if flags.Changed("no-runtime") {
			v.Set("runtime.emit", !cc.noRuntime)
		}
	})
	if err != nil {
		return err
	}

	sess, err := startSession(cfg, observability.ModeCompile, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runErr := cc.compile(ctx, cmd, sess)

	return errors.Join(runErr, sess.close(ctx))
}

func (cc *CompileCommand) compile(ctx context.Context, cmd *cobra.Command, sess *session) error {
	comp := sess.compiler()
	out := cmd.OutOrStdout()

	res, err := comp.Compile(ctx)
	if err != nil {
		return err
	}

	renderDiagnostics(out, res.Diagnostics, cc.noColor)

	if cc.check {
		drifts, checkErr := comp.Check(res)
		if checkErr != nil {
			return checkErr
		}

		renderDrifts(out, drifts, cc.noColor)

		if len(drifts) > 0 {
			return fmt.Errorf("%w: %d file(s)", ErrDrift, len(drifts))
		}
	} else {
		writeErr := comp.Write(res, sess.cfg.Manifest.Path, sess.cfg.Manifest.Format)
		if writeErr != nil {
			return writeErr
		}
	}

	renderSummary(out, res.Stats, cc.noColor)

	if res.Err() != nil {
		return fmt.Errorf("%w: %d unit(s) with errors", ErrCompileFailed, res.Stats.Failed)
	}

	return nil
}
