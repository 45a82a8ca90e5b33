package toposort

import "sort"

// intGraph is a directed graph over dense integer ids.
type intGraph struct {
	// nodes[u] lists v for every edge u -> v.
	nodes    [][]int
	inDegree []int
}

func (g *intGraph) ensureCapacity(n int) {
	if n <= len(g.nodes) {
		return
	}

	nodes := make([][]int, n)
	copy(nodes, g.nodes)
	g.nodes = nodes

	inDegree := make([]int, n)
	copy(inDegree, g.inDegree)
	g.inDegree = inDegree
}

// addEdge adds u -> v and reports whether the edge is new.
func (g *intGraph) addEdge(u, v int) bool {
	g.ensureCapacity(max(u, v) + 1)

	for _, neighbor := range g.nodes[u] {
		if neighbor == v {
			return false
		}
	}

	g.nodes[u] = append(g.nodes[u], v)
	g.inDegree[v]++

	return true
}

// topoSort runs Kahn's algorithm with the ready set kept sorted by rank.
// When forced, a node of a remaining cycle (lowest rank first) is emitted
// whenever the ready set runs dry, so every node appears exactly once.
func (g *intGraph) topoSort(rank func(int) string, forced bool) ([]int, bool) {
	n := len(g.nodes)
	inDegree := make([]int, n)
	copy(inDegree, g.inDegree)

	less := func(a, b int) bool { return rank(a) < rank(b) }

	var queue []int

	for i := range n {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	sort.Slice(queue, func(i, j int) bool { return less(queue[i], queue[j]) })

	done := make([]bool, n)
	result := make([]int, 0, n)
	acyclic := true

	for len(result) < n {
		if len(queue) == 0 {
			acyclic = false

			if !forced {
				break
			}

			queue = append(queue, g.lowestPending(done, less))
		}

		u := queue[0]
		queue = queue[1:]

		if done[u] {
			continue
		}

		done[u] = true
		result = append(result, u)

		for _, v := range g.nodes[u] {
			inDegree[v]--
			if inDegree[v] == 0 && !done[v] {
				queue = insertSorted(queue, v, less)
			}
		}
	}

	return result, acyclic
}

func (g *intGraph) lowestPending(done []bool, less func(a, b int) bool) int {
	best := -1

	for i := range g.nodes {
		if !done[i] && (best < 0 || less(i, best)) {
			best = i
		}
	}

	return best
}

// findCycle returns a shortest cycle through start (start first), or nil.
func (g *intGraph) findCycle(start int) []int {
	if start >= len(g.nodes) {
		return nil
	}

	parent := map[int]int{start: -1}
	queue := []int{start}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for _, v := range g.nodes[u] {
			if v == start {
				var cycle []int
				for cur := u; cur != -1; cur = parent[cur] {
					cycle = append(cycle, cur)
				}

				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}

				return cycle
			}

			if _, seen := parent[v]; !seen {
				parent[v] = u
				queue = append(queue, v)
			}
		}
	}

	return nil
}

// components returns the strongly connected components that contain a cycle
// (more than one node, or a self edge), using Tarjan's algorithm.
func (g *intGraph) components() [][]int {
	n := len(g.nodes)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)

	for i := range index {
		index[i] = -1
	}

	var (
		stack  []int
		out    [][]int
		next   int
		strong func(v int)
	)

	strong = func(v int) {
		index[v] = next
		low[v] = next
		next++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.nodes[v] {
			switch {
			case index[w] < 0:
				strong(w)
				low[v] = min(low[v], low[w])
			case onStack[w]:
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}

		var comp []int

		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false

			comp = append(comp, w)
			if w == v {
				break
			}
		}

		if len(comp) > 1 || g.hasEdge(v, v) {
			out = append(out, comp)
		}
	}

	for v := range n {
		if index[v] < 0 {
			strong(v)
		}
	}

	return out
}

func (g *intGraph) hasEdge(u, v int) bool {
	for _, w := range g.nodes[u] {
		if w == v {
			return true
		}
	}

	return false
}

func insertSorted(s []int, v int, less func(a, b int) bool) []int {
	i := sort.Search(len(s), func(i int) bool { return !less(s[i], v) })
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v

	return s
}
