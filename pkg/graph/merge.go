package graph

import (
	"fmt"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/metrics"
)

// applyMerge consolidates every edge referencing the retiring identifier
// onto the surviving one (identity-map merge), then folds the retiring
// node's own edges into the surviving node. Merge is structural: it
// rewrites pointers everywhere rather than going through field-level
// operations, and implicit edges participate like any other.
func (g *Graph) applyMerge(op MergeIdentifiers) error {
	if op.Retiring == nil || op.Surviving == nil {
		return fmt.Errorf("graph: mergeIdentifiers requires both identifiers")
	}
	if op.Retiring == op.Surviving {
		return nil
	}

	for ident, node := range g.nodes {
		if ident == op.Retiring {
			continue
		}
		node.Scan(func(field string, edge Edge) bool {
			if edge != nil {
				g.rewriteReferences(edge, op.Retiring, op.Surviving)
			}
			return true
		})
	}

	rnode, ok := g.nodes[op.Retiring]
	if !ok {
		return nil
	}
	type entry struct {
		field string
		edge  Edge
	}
	var entries []entry
	rnode.Scan(func(field string, edge Edge) bool {
		if edge != nil {
			entries = append(entries, entry{field, edge})
		}
		return true
	})
	for _, ent := range entries {
		g.touch(ent.edge)
		g.rewriteReferences(ent.edge, op.Retiring, op.Surviving) // self references
		ent.edge.info().identifier = op.Surviving
		existing, ok := g.peekEdge(op.Surviving, ent.field)
		if !ok {
			g.nodeFor(op.Surviving).Set(ent.field, ent.edge)
		} else {
			mergeEdgeInto(existing, ent.edge)
		}
		if !ent.edge.Definition().IsImplicit {
			g.notifyChange(op.Surviving, ent.field)
		}
	}
	delete(g.nodes, op.Retiring)
	metrics.Nodes.Dec()
	g.log.Debug("identifiers merged", "retiring", op.Retiring.String(), "surviving", op.Surviving.String())
	return nil
}

// rewriteReferences swaps every reference to old for repl on one edge,
// deduplicating where repl is already a member.
func (g *Graph) rewriteReferences(e Edge, old, repl *identity.Identifier) {
	switch edge := e.(type) {
	case *ToOne:
		changed := false
		if edge.localState == old {
			edge.localState = repl
			changed = true
		}
		if edge.remoteState == old {
			edge.remoteState = repl
			changed = true
		}
		if changed {
			g.touch(edge)
			g.notifyChange(edge.identifier, edge.definition.Key)
		}
	case *ToMany:
		changed := false
		if edge.hasLocal(old) {
			if edge.hasLocal(repl) {
				edge.localState = removeFrom(edge.localState, old)
			} else {
				swapIn(edge.localState, old, repl)
				edge.localMembers[repl] = struct{}{}
			}
			delete(edge.localMembers, old)
			changed = true
		}
		if edge.hasRemote(old) {
			if edge.hasRemote(repl) {
				edge.remoteState = removeFrom(edge.remoteState, old)
			} else {
				swapIn(edge.remoteState, old, repl)
				edge.remoteMembers[repl] = struct{}{}
			}
			delete(edge.remoteMembers, old)
			changed = true
		}
		if _, ok := edge.additions[old]; ok {
			delete(edge.additions, old)
			if !edge.hasRemote(repl) && edge.hasLocal(repl) {
				edge.additions[repl] = struct{}{}
			}
		}
		if _, ok := edge.removals[old]; ok {
			delete(edge.removals, old)
			if edge.hasRemote(repl) && !edge.hasLocal(repl) {
				edge.removals[repl] = struct{}{}
			}
		}
		if changed {
			g.touch(edge)
			g.notifyChange(edge.identifier, edge.definition.Key)
		}
	case *Implicit:
		if _, ok := edge.localMembers[old]; ok {
			delete(edge.localMembers, old)
			edge.localMembers[repl] = struct{}{}
		}
		if _, ok := edge.remoteMembers[old]; ok {
			delete(edge.remoteMembers, old)
			edge.remoteMembers[repl] = struct{}{}
		}
	}
}

// mergeEdgeInto folds src (the retiring node's edge) into dst (the
// surviving node's existing edge of the same field). Surviving state wins
// conflicts; src only fills gaps and contributes members.
func mergeEdgeInto(dst, src Edge) {
	switch d := dst.(type) {
	case *ToOne:
		s := src.(*ToOne)
		if d.remoteState == nil && s.remoteState != nil {
			d.remoteState = s.remoteState
		}
		if d.localState == nil && s.localState != nil {
			d.localState = s.localState
		}
		d.hasReceivedData = d.hasReceivedData || s.hasReceivedData
		d.hasDematerializedInverse = d.hasDematerializedInverse || s.hasDematerializedInverse
		d.isEmpty = d.remoteState == nil && d.hasReceivedData
	case *ToMany:
		s := src.(*ToMany)
		for _, v := range s.remoteState {
			if !d.hasRemote(v) {
				d.remoteState = append(d.remoteState, v)
				d.remoteMembers[v] = struct{}{}
			}
		}
		for _, v := range s.localState {
			if d.hasLocal(v) {
				continue
			}
			d.localState = append(d.localState, v)
			d.localMembers[v] = struct{}{}
			if d.hasRemote(v) {
				delete(d.removals, v)
			} else {
				d.additions[v] = struct{}{}
			}
		}
		for v := range s.removals {
			if d.hasRemote(v) && !d.hasLocal(v) {
				d.removals[v] = struct{}{}
			}
		}
		d.hasReceivedData = d.hasReceivedData || s.hasReceivedData
		d.hasDematerializedInverse = d.hasDematerializedInverse || s.hasDematerializedInverse
		d.isEmpty = len(d.remoteState) == 0 && d.hasReceivedData
	case *Implicit:
		s := src.(*Implicit)
		for v := range s.localMembers {
			d.localMembers[v] = struct{}{}
		}
		for v := range s.remoteMembers {
			d.remoteMembers[v] = struct{}{}
		}
	}
}

func swapIn(s []*identity.Identifier, old, repl *identity.Identifier) {
	for i, cur := range s {
		if cur == old {
			s[i] = repl
			return
		}
	}
}
