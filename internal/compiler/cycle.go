package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning reports modules that reach each other through imports or
// using aliases. Cycles are legal since calls are resolved statically,
// but they usually indicate a layering mistake.
type CycleWarning struct {
	Path    []string `json:"path"` // e.g. ["A", "B", "A"]
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeImports finds import cycles among units. Modules that are
// referenced but not present in units are ignored. An acyclic set
// returns an empty list.
func AnalyzeImports(units []Unit) []CycleWarning {
	graph := buildImportGraph(units)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Path[0] < warnings[j].Path[0] })
	if warnings == nil {
		warnings = []CycleWarning{}
	}
	return warnings
}

// importGraph maps a module to the modules it references, sorted.
type importGraph map[string][]string

func buildImportGraph(units []Unit) importGraph {
	known := make(map[string]bool, len(units))
	for _, u := range units {
		known[u.Doc.Protocol] = true
	}

	graph := make(importGraph, len(units))
	for _, u := range units {
		self := u.Doc.Protocol
		deps := make(map[string]bool)
		for _, imp := range u.Doc.CPL.Imports {
			deps[imp] = true
		}
		for _, us := range u.Doc.CPL.Using {
			deps[us.Module] = true
		}
		edges := graph[self]
		if edges == nil {
			edges = []string{}
		}
		for dep := range deps {
			// A unit naming itself is how it calls its own methods.
			if dep != self && known[dep] {
				edges = append(edges, dep)
			}
		}
		sort.Strings(edges)
		graph[self] = edges
	}
	return graph
}

func hasSelfLoop(node string, graph importGraph) bool {
	for _, n := range graph[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of graph. Nodes are
// visited in sorted order so the output is stable.
func tarjanSCC(graph importGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

func cycleWarning(scc []string, graph importGraph) CycleWarning {
	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("import cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// cyclePath walks edges inside the component from its first member until
// it returns there.
func cyclePath(scc []string, graph importGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	for current := start; ; {
		next := ""
		for _, n := range graph[current] {
			if members[n] && (!visited[n] || n == start) {
				next = n
				if n != start {
					break
				}
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
