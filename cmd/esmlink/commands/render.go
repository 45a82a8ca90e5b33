package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/esmlink/pkg/compiler"
	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/graph"
)

const percentScale = 100

func painter(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}

	return c
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false
	tbl.Style().Format.Footer = text.FormatDefault

	return tbl
}

func renderSummary(w io.Writer, st compiler.Stats, noColor bool) {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Units", "Compiled", "Failed", "Warnings", "Cycles", "Output", "Cache hits", "Time"})
	tbl.AppendRow(table.Row{
		st.Units,
		st.Compiled,
		st.Failed,
		st.Warnings,
		st.Cycles,
		humanize.Bytes(uint64(st.OutputBytes)), //nolint:gosec // byte counts are never negative.
		fmt.Sprintf("%.0f%%", st.Cache.HitRate()*percentScale),
		st.Duration.Round(time.Millisecond).String(),
	})

	fmt.Fprintln(w, tbl.Render())

	if st.Failed > 0 {
		painter(noColor, color.FgRed, color.Bold).Fprintf(w, "%d unit(s) failed\n", st.Failed)

		return
	}

	painter(noColor, color.FgGreen).Fprintf(w, "compiled %d unit(s)\n", st.Compiled)
}

func renderDiagnostics(w io.Writer, entries []diag.Entry, noColor bool) {
	errc := painter(noColor, color.FgRed)
	warnc := painter(noColor, color.FgYellow)

	for _, e := range entries {
		if e.Severity == diag.SeverityError {
			errc.Fprint(w, "error")
		} else {
			warnc.Fprint(w, "warning")
		}

		fmt.Fprintf(w, ": %v\n", e.Err)
	}
}

func renderDrifts(w io.Writer, drifts []compiler.Drift, noColor bool) {
	head := painter(noColor, color.Bold)
	add := painter(noColor, color.FgGreen)
	del := painter(noColor, color.FgRed)

	for _, d := range drifts {
		if d.Missing {
			head.Fprintf(w, "missing %s (%s)\n", d.Output, d.ID)

			continue
		}

		head.Fprintf(w, "drift %s (%s)\n", d.Output, d.ID)

		for _, line := range strings.SplitAfter(d.Diff, "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				add.Fprint(w, line)
			case strings.HasPrefix(line, "-"):
				del.Fprint(w, line)
			}
		}
	}
}

func renderGraph(w io.Writer, g *graph.Graph, noColor bool) {
	unresolved := painter(noColor, color.FgRed)

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Unit", "File", "Used by", "Specifier", "Kind", "Target"})

	units := g.Units()
	tg := g.Toposort()

	for _, unit := range units {
		usedBy := len(tg.FindParents(unit.ID))

		if len(unit.Imports) == 0 {
			tbl.AppendRow(table.Row{unit.ID, unit.FilePath, usedBy, "", "", ""})

			continue
		}

		for i, spec := range unit.Imports {
			var id, file, users any = unit.ID, unit.FilePath, usedBy
			if i > 0 {
				id, file, users = "", "", ""
			}

			target := spec.ResolvedTargetID + " (" + spec.TargetKind.String() + ")"
			if !spec.Resolved() {
				target = unresolved.Sprint("unresolved")
			}

			tbl.AppendRow(table.Row{id, file, users, spec.Specifier, spec.Kind.String(), target})
		}
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d units", len(units))})

	fmt.Fprintln(w, tbl.Render())
}
