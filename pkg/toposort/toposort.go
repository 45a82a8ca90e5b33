// Package toposort orders the module import graph: dependency-first
// registration order, import cycles and Graphviz output.
package toposort

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a directed graph of named nodes. It is not safe for concurrent mutation.
type Graph struct {
	symbols *symbolTable
	edges   *intGraph
}

// NewGraph initializes a new Graph.
func NewGraph() *Graph {
	return &Graph{
		symbols: newSymbolTable(),
		edges:   &intGraph{},
	}
}

// AddNode inserts a node and reports whether it was new.
func (g *Graph) AddNode(name string) bool {
	if _, exists := g.symbols.lookup(name); exists {
		return false
	}

	id := g.symbols.intern(name)
	g.edges.ensureCapacity(id + 1)

	return true
}

// AddEdge inserts the edge from -> to, adding missing nodes, and reports
// whether the edge was new.
func (g *Graph) AddEdge(from, to string) bool {
	g.AddNode(from)
	g.AddNode(to)

	u, _ := g.symbols.lookup(from)
	v, _ := g.symbols.lookup(to)

	return g.edges.addEdge(u, v)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.symbols.names)
}

// Toposort sorts the nodes so that every edge points forward. The second
// result is false when the graph has a cycle; the order is then partial.
func (g *Graph) Toposort() ([]string, bool) {
	ids, ok := g.edges.topoSort(g.symbols.resolve, false)

	return g.symbols.resolveAll(ids), ok
}

// Order is Toposort that always returns every node: each cycle is broken at
// its lexically smallest pending node.
func (g *Graph) Order() []string {
	ids, _ := g.edges.topoSort(g.symbols.resolve, true)

	return g.symbols.resolveAll(ids)
}

// FindCycle returns a cycle through seed, starting at seed, or an empty slice.
func (g *Graph) FindCycle(seed string) []string {
	id, exists := g.symbols.lookup(seed)
	if !exists {
		return []string{}
	}

	return g.symbols.resolveAll(g.edges.findCycle(id))
}

// Cycles returns every strongly connected component that contains a cycle.
// Members are sorted and components are ordered by their first member.
func (g *Graph) Cycles() [][]string {
	comps := g.edges.components()

	out := make([][]string, 0, len(comps))
	for _, comp := range comps {
		names := g.symbols.resolveAll(comp)
		sort.Strings(names)
		out = append(out, names)
	}

	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })

	return out
}

// FindParents returns the sorted sources of edges into to.
func (g *Graph) FindParents(to string) []string {
	target, exists := g.symbols.lookup(to)
	if !exists {
		return []string{}
	}

	parents := []string{}

	for u, children := range g.edges.nodes {
		for _, v := range children {
			if v == target {
				parents = append(parents, g.symbols.resolve(u))

				break
			}
		}
	}

	sort.Strings(parents)

	return parents
}

// FindChildren returns the sorted targets of edges out of from.
func (g *Graph) FindChildren(from string) []string {
	u, exists := g.symbols.lookup(from)
	if !exists || u >= len(g.edges.nodes) {
		return []string{}
	}

	children := g.symbols.resolveAll(g.edges.nodes[u])
	sort.Strings(children)

	return children
}

// Serialize outputs the graph in Graphviz format. Nodes listed in highlight
// are drawn in red.
func (g *Graph) Serialize(highlight ...string) string {
	marked := make(map[string]bool, len(highlight))
	for _, name := range highlight {
		marked[name] = true
	}

	names := append([]string(nil), g.symbols.names...)
	sort.Strings(names)

	var sb strings.Builder

	sb.WriteString("digraph esmlink {\n")

	for _, name := range names {
		if marked[name] {
			fmt.Fprintf(&sb, "  %q [color=red]\n", name)
		} else {
			fmt.Fprintf(&sb, "  %q\n", name)
		}
	}

	for _, from := range names {
		for _, to := range g.FindChildren(from) {
			fmt.Fprintf(&sb, "  %q -> %q\n", from, to)
		}
	}

	sb.WriteString("}")

	return sb.String()
}
