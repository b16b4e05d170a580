package graph

import (
	"github.com/mirrorwell/relcache/pkg/metrics"
)

// applyDelete cascades a true removal: every inverse edge drops the record
// completely (both layers, not a soft dematerialization) and the node
// leaves the registry. Unlike Remove, which may retain references behind
// async inverses, a confirmed server delete leaves nothing behind.
func (g *Graph) applyDelete(op DeleteRecord) error {
	node, ok := g.nodes[op.Record]
	if !ok {
		return nil
	}
	// Snapshot before mutating: inverse maintenance may materialize edges.
	type entry struct {
		field string
		edge  Edge
	}
	var edges []entry
	node.Scan(func(field string, edge Edge) bool {
		if edge != nil {
			edges = append(edges, entry{field, edge})
		}
		return true
	})
	for _, ent := range edges {
		g.touch(ent.edge)
		for _, related := range relatedIdentifiersOf(ent.edge) {
			g.removeCompletelyFromInverse(ent.edge.Definition(), op.Record, related)
		}
		switch e := ent.edge.(type) {
		case *ToOne:
			e.clear()
		case *ToMany:
			e.clear()
		case *Implicit:
			e.clear()
		}
	}
	delete(g.nodes, op.Record)
	metrics.Nodes.Dec()
	g.log.Debug("record deleted from graph", "identifier", op.Record.String(), "edges", len(edges))
	return nil
}
