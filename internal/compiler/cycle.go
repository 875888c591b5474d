package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ormsql/internal/ir"
)

// CycleWarning represents a cycle in the belongs-to graph of a schema.
//
// Cycles are warnings, not errors, because they are often intentional:
//   - Self references (Account.parent, User.createdBy)
//   - Mutual ownership (Team.leader -> User, User.defaultTeam -> Team)
//
// They still matter to tooling that orders tables by dependency.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Team", "User", "Team"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles finds cycles among belongs-to relations.
//
// The algorithm:
//  1. Build entity -> belongs-to target graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report self references as info, larger components as warnings
//
// A DAG returns an empty list. Warnings are sorted by path.
func AnalyzeCycles(specs []ir.EntitySpec) []CycleWarning {
	graph := buildDependencyGraph(specs)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return strings.Join(warnings[i].Path, ",") < strings.Join(warnings[j].Path, ",")
	})
	if warnings == nil {
		return []CycleWarning{}
	}
	return warnings
}

// DependencyOrder returns entity names so that belongs-to targets come
// before the entities pointing at them. Entities in a cycle keep name
// order among themselves.
func DependencyOrder(specs []ir.EntitySpec) []string {
	graph := buildDependencyGraph(specs)

	// Tarjan emits components in reverse topological order of the
	// condensation: targets before owners.
	var order []string
	for _, scc := range tarjanSCC(graph) {
		sort.Strings(scc)
		order = append(order, scc...)
	}
	return order
}

// dependencyGraph maps entity -> entities it belongs to.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the belongs-to graph. Targets that are
// not declared are left out, as are belongsToParent relations, which
// have no fixed target.
func buildDependencyGraph(specs []ir.EntitySpec) dependencyGraph {
	declared := make(map[string]bool, len(specs))
	for _, s := range specs {
		declared[s.Name] = true
	}

	graph := make(dependencyGraph, len(specs))
	for _, s := range specs {
		// Ensures the node exists in the graph
		if graph[s.Name] == nil {
			graph[s.Name] = []string{}
		}
		for _, r := range s.Relations {
			if r.Kind != ir.RelationBelongsTo {
				continue
			}
			target := relationTarget(r)
			if declared[target] {
				graph[s.Name] = append(graph[s.Name], target)
			}
		}
		sort.Strings(graph[s.Name])
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in name order so the result is deterministic.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
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

		// v is a root node: pop the stack into an SCC
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
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-referencing entity: %s → %s", name, name),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Belongs-to cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC, starting at its
// smallest name and following edges inside the SCC back to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)
	start := sorted[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && neighbor != current && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
