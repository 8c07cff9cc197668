package normalize

import (
	"fmt"
	"sort"
	"strings"

	"caseforge/internal/artifact"
)

// BuildGraph derives the gating graph from the gating rules carried on
// documents and media. The graph is recomputed on every normalize run, never
// authored. Cycles are recorded on the graph itself, not raised.
func BuildGraph(docs []artifact.CaseDocument, media []artifact.CaseMedia) artifact.GatingGraph {
	var g artifact.GatingGraph

	adj := make(map[string][]string)
	for _, d := range docs {
		node := artifact.GatingNode{ID: d.DocID, Type: "document"}
		if d.Gating != nil && len(d.Gating.RequiredIDs) > 0 {
			node.Gated = true
			node.RequiredIDs = append([]string(nil), d.Gating.RequiredIDs...)
		}
		g.Nodes = append(g.Nodes, node)
		for _, req := range node.RequiredIDs {
			g.Edges = append(g.Edges, artifact.GatingEdge{From: req, To: d.DocID, Relationship: "unlocks"})
			adj[req] = append(adj[req], d.DocID)
		}
	}
	for _, m := range media {
		node := artifact.GatingNode{ID: m.EvidenceID, Type: "media"}
		if m.Gating != nil && len(m.Gating.RequiredIDs) > 0 {
			node.Gated = true
			node.RequiredIDs = append([]string(nil), m.Gating.RequiredIDs...)
		}
		g.Nodes = append(g.Nodes, node)
		for _, req := range node.RequiredIDs {
			g.Edges = append(g.Edges, artifact.GatingEdge{From: req, To: m.EvidenceID, Relationship: "unlocks"})
			adj[req] = append(adj[req], m.EvidenceID)
		}
	}

	g.Cycles = findCycles(adj)
	g.HasCycles = len(g.Cycles) > 0
	return g
}

// findCycles runs a depth-first search tracking the recursion stack; every
// back-edge is reported with the full node path for diagnostics.
func findCycles(adj map[string][]string) []string {
	nodes := make([]string, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var stack []string
	var cycles []string

	var visit func(n string)
	visit = func(n string) {
		color[n] = gray
		stack = append(stack, n)
		for _, next := range adj[n] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				// Back edge: slice the stack from the first occurrence of next.
				start := 0
				for i, s := range stack {
					if s == next {
						start = i
						break
					}
				}
				path := append(append([]string(nil), stack[start:]...), next)
				cycles = append(cycles, fmt.Sprintf("cycle: %s", strings.Join(path, " -> ")))
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}

	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles
}
