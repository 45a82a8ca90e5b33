package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/esmlink/pkg/observability"
)

// GraphCommand holds the flags of the graph command.
type GraphCommand struct {
	sourceFlags

	dot   bool
	order bool
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	gc := &GraphCommand{}

	cmd := &cobra.Command{
		Use:   "graph [source-dir]",
		Short: "Show the resolved module graph",
		Long: `Discover and resolve a source tree without generating code.

By default every unit is listed with its imports and their resolved targets.
--dot prints the import graph in Graphviz format with cycle members
highlighted; --order prints a dependency-first registration order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: gc.run,
	}

	gc.register(cmd)

	cmd.Flags().BoolVar(&gc.dot, "dot", false, "print the graph in Graphviz DOT format")
	cmd.Flags().BoolVar(&gc.order, "order", false, "print the registration order")
	cmd.MarkFlagsMutuallyExclusive("dot", "order")

	return cmd
}

func (gc *GraphCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := gc.load(cmd, args, nil)
	if err != nil {
		return err
	}

	sess, err := startSession(cfg, observability.ModeGraph, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runErr := gc.show(ctx, cmd, sess)

	return errors.Join(runErr, sess.close(ctx))
}

func (gc *GraphCommand) show(ctx context.Context, cmd *cobra.Command, sess *session) error {
	g, err := sess.compiler().Analyze(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	switch {
	case gc.dot:
		var highlight []string
		for _, cycle := range g.Cycles() {
			highlight = append(highlight, cycle...)
		}

		fmt.Fprintln(out, g.Toposort().Serialize(highlight...))
	case gc.order:
		for _, id := range g.Order() {
			fmt.Fprintln(out, id)
		}
	default:
		renderGraph(out, g, gc.noColor)
	}

	renderDiagnostics(cmd.ErrOrStderr(), g.Diagnostics().Entries(), gc.noColor)

	return nil
}
