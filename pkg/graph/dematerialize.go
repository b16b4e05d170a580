package graph

import (
	"fmt"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/metrics"
)

// IsReleasable reports whether an identity's cached relationship state may
// be discarded outright. An identity with no edges (or only empty ones) is
// releasable. A persisted identity holding an edge whose inverse is
// asynchronous is not: the other side is allowed to stay materialized and a
// future fetch could restore the reference. Client-only identities skip
// that check, since there is nothing a fetch could bring back.
func (g *Graph) IsReleasable(ident *identity.Identifier) bool {
	node, ok := g.nodes[ident]
	if !ok {
		return true
	}
	releasable := true
	node.Scan(func(_ string, edge Edge) bool {
		if edge == nil || len(relatedIdentifiersOf(edge)) == 0 {
			return true
		}
		if edge.Definition().InverseIsAsync && !ident.IsNew() {
			releasable = false
			return false
		}
		return true
	})
	return releasable
}

// Unload clears an identity's cached relationship state without removing
// the node: non-implicit edges stay materialized but emptied where the
// destroy protocol demands it, implicit edges collapse to a placeholder
// eligible for rematerialization on the next access.
func (g *Graph) Unload(ident *identity.Identifier) {
	g.unload(ident, false)
}

func (g *Graph) unload(ident *identity.Identifier, removing bool) {
	node, ok := g.nodes[ident]
	if !ok {
		return
	}
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
		g.destroyEdge(ent.edge, removing)
		if _, isImplicit := ent.edge.(*Implicit); isImplicit {
			// Placeholder, not a delete: Get rematerializes through it.
			node.Set(ent.field, nil)
		}
	}
	g.log.Debug("identity unloaded", "identifier", ident.String(), "edges", len(edges))
}

// Remove unloads an identity and drops its node entirely, instructing all
// inverse edges to forget it. Only one removal may be in flight; re-entering
// Remove for a different identifier mid-removal is an invariant breach and
// panics.
func (g *Graph) Remove(ident *identity.Identifier) {
	if g.removing != nil && g.removing != ident {
		panic(fmt.Sprintf("graph: reentrant removal of %s while removing %s", ident, g.removing))
	}
	g.removing = ident
	defer func() { g.removing = nil }()

	g.unload(ident, true)
	if _, ok := g.nodes[ident]; ok {
		delete(g.nodes, ident)
		metrics.Nodes.Dec()
	}
}

// destroyEdge runs the destroy-relationship protocol for one edge.
//
// Implicit edges: when the owning identity is releasable, every inverse
// reference is severed completely; a soft dematerialization would leave the
// declared side pointing at state that no longer exists. Non-releasable
// identities keep their implicit bookkeeping.
//
// Edges with an implicit inverse: the implicit side is bookkeeping that a
// later cascade relies on to find the back-reference, so a soft unload
// leaves both sides untouched. Only a full removal severs the membership.
//
// Other non-implicit edges: every related identity's inverse edge is
// notified of the dematerialization. When the inverse is not asynchronous
// there is no way to restore the link later, so the relationship is
// downgraded to a client-side hard delete: the edge is marked stale and
// both state layers are cleared.
func (g *Graph) destroyEdge(e Edge, removing bool) {
	if imp, ok := e.(*Implicit); ok {
		if g.IsReleasable(imp.identifier) {
			for _, member := range imp.relatedIdentifiers() {
				g.removeCompletelyFromInverse(imp.definition, imp.identifier, member)
			}
		}
		return
	}

	def := e.Definition()
	if def.InverseIsImplicit {
		if removing {
			for _, related := range relatedIdentifiersOf(e) {
				g.removeCompletelyFromInverse(def, e.Identifier(), related)
			}
		}
		return
	}
	for _, related := range relatedIdentifiersOf(e) {
		g.notifyInverseOfDematerialization(related, def, e.Identifier(), removing)
	}

	if !def.InverseIsAsync {
		switch edge := e.(type) {
		case *ToOne:
			edge.isStale = true
			edge.clear()
		case *ToMany:
			edge.isStale = true
			edge.clear()
		}
		if !removing && !def.IsAsync {
			g.notifyChange(e.Identifier(), def.Key)
		}
	}
}

// notifyInverseOfDematerialization tells target's inverse edge that
// dematerialized is going away. Synchronous inverses (and references to
// never-persisted identities) treat it as a real removal; asynchronous
// inverses to persisted identities keep the reference and only mark
// hasDematerializedInverse, so a later fetch can reconcile.
func (g *Graph) notifyInverseOfDematerialization(target *identity.Identifier, def *EdgeDefinition, dematerialized *identity.Identifier, silence bool) {
	edge, ok := g.peekEdge(target, def.Inverse().Key)
	if !ok {
		return
	}
	invKey := def.Inverse().Key
	switch inv := edge.(type) {
	case *ToOne:
		// Skip if the pointer has already been superseded by a different
		// identity on both layers.
		pointsHere := inv.localState == dematerialized || inv.remoteState == dematerialized
		if !pointsHere && (inv.localState != nil || inv.remoteState != nil) {
			return
		}
		if !inv.definition.IsAsync || dematerialized.IsNew() {
			if inv.localState == dematerialized {
				inv.localState = nil
			}
			if inv.remoteState == dematerialized {
				inv.remoteState = nil
				inv.hasReceivedData = true
				inv.isEmpty = true
			}
		} else {
			inv.hasDematerializedInverse = true
		}
		if !silence {
			g.notifyChange(target, invKey)
		}
	case *ToMany:
		if !inv.definition.IsAsync || dematerialized.IsNew() {
			inv.removeCompletely(dematerialized)
		} else {
			inv.hasDematerializedInverse = true
		}
		if !silence {
			g.notifyChange(target, invKey)
		}
	}
}
