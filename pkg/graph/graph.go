// Package graph derives edge-visibility views over one space's edges.
// Nothing here is persisted: the adjacency is rebuilt on demand from the
// stored edge list.
package graph

import (
	"github.com/noospace/noospace/pkg/models"
)

// Adjacency indexes a space's edges by endpoint, in both directions.
type Adjacency struct {
	out map[string][]models.Edge
	in  map[string][]models.Edge
}

// Build indexes the given edges.
func Build(edges []models.Edge) *Adjacency {
	a := &Adjacency{
		out: make(map[string][]models.Edge),
		in:  make(map[string][]models.Edge),
	}
	for _, e := range edges {
		a.out[e.From] = append(a.out[e.From], e)
		a.in[e.To] = append(a.in[e.To], e)
	}
	return a
}

// Neighbors returns the ids of all nodes one hop from nodeID, in either
// direction.
func (a *Adjacency) Neighbors(nodeID string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range a.out[nodeID] {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	for _, e := range a.in[nodeID] {
		if !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	return out
}

// Visible filters edges by the view's edge-visibility mode relative to the
// selected node. With no selection every edge is visible regardless of
// mode. The input order is preserved.
func Visible(edges []models.Edge, selectedID string, mode models.EdgeVisibility) []models.Edge {
	if mode == models.VisibilityAll || selectedID == "" {
		return edges
	}

	visible := make(map[string]bool, len(edges)+1)
	visible[selectedID] = true

	if mode == models.VisibilityTwoHop {
		a := Build(edges)
		for _, n := range a.Neighbors(selectedID) {
			visible[n] = true
		}
	}

	var out []models.Edge
	for _, e := range edges {
		if visible[e.From] || visible[e.To] {
			out = append(out, e)
		}
	}
	return out
}
