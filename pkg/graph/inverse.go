package graph

import (
	"github.com/mirrorwell/relcache/pkg/identity"
)

// Inverse maintenance primitives. Every insertion or removal on one side of
// a relationship funnels through these to perform the mirrored change on
// the other side within the same call. They mutate inverse state directly
// and never recurse back into each other's callers, so mutual recursion
// bottoms out after at most one displacement step; idempotent membership
// checks do the rest.

// addToInverse records owner as a member of value's inverse edge,
// materializing it on demand. def is the definition of owner's own edge.
func (g *Graph) addToInverse(def *EdgeDefinition, owner, value *identity.Identifier, isRemote bool) {
	invDef := def.Inverse()
	edge := g.edgeFor(value, invDef)
	g.touch(edge)
	switch inv := edge.(type) {
	case *Implicit:
		inv.localMembers[owner] = struct{}{}
		if isRemote {
			inv.remoteMembers[owner] = struct{}{}
		}
	case *ToOne:
		if isRemote {
			prev := inv.remoteState
			if prev == owner {
				inv.hasReceivedData = true
				inv.isEmpty = false
				return
			}
			// The inverse pointer is being displaced: its previous target
			// must stop referencing value.
			if prev != nil {
				g.removeFromInverse(invDef, value, prev, true)
			}
			inv.remoteState = owner
			if inv.localState == prev {
				inv.localState = owner
			}
			inv.hasReceivedData = true
			inv.isEmpty = false
		} else {
			prev := inv.localState
			if prev == owner {
				return
			}
			if prev != nil {
				g.removeFromInverse(invDef, value, prev, false)
			}
			inv.localState = owner
		}
		g.notifyChange(value, invDef.Key)
	case *ToMany:
		var changed bool
		if isRemote {
			changed = inv.addRemote(owner)
			if changed {
				inv.isEmpty = false
			}
		} else {
			changed = inv.addLocal(owner, -1)
		}
		if changed {
			g.notifyChange(value, invDef.Key)
		}
	}
}

// removeFromInverse drops owner from target's inverse edge for the
// requested state layer. A never-materialized inverse edge is a no-op.
func (g *Graph) removeFromInverse(def *EdgeDefinition, owner, target *identity.Identifier, isRemote bool) {
	edge, ok := g.peekEdge(target, def.Inverse().Key)
	if !ok {
		return
	}
	g.touch(edge)
	invKey := def.Inverse().Key
	switch inv := edge.(type) {
	case *Implicit:
		delete(inv.localMembers, owner)
		if isRemote {
			delete(inv.remoteMembers, owner)
		}
	case *ToOne:
		changed := false
		if inv.localState == owner {
			inv.localState = nil
			changed = true
		}
		if isRemote && inv.remoteState == owner {
			inv.remoteState = nil
			inv.isEmpty = true
			changed = true
		}
		if changed {
			g.notifyChange(target, invKey)
		}
	case *ToMany:
		var changed bool
		if isRemote {
			changed = inv.removeRemote(owner)
		} else {
			changed = inv.removeLocal(owner)
		}
		if changed {
			g.notifyChange(target, invKey)
		}
	}
}

// removeCompletelyFromInverse severs owner from target's inverse edge on
// both state layers, including pending delta bookkeeping. Used by true
// deletes and by releasable implicit edges, where a soft dematerialization
// would leave dangling references.
func (g *Graph) removeCompletelyFromInverse(def *EdgeDefinition, owner, target *identity.Identifier) {
	edge, ok := g.peekEdge(target, def.Inverse().Key)
	if !ok {
		return
	}
	g.touch(edge)
	invKey := def.Inverse().Key
	switch inv := edge.(type) {
	case *Implicit:
		delete(inv.localMembers, owner)
		delete(inv.remoteMembers, owner)
	case *ToOne:
		changed := false
		if inv.localState == owner {
			inv.localState = nil
			changed = true
		}
		if inv.remoteState == owner {
			inv.remoteState = nil
			inv.isEmpty = true
			changed = true
		}
		if changed {
			g.notifyChange(target, invKey)
		}
	case *ToMany:
		if inv.removeCompletely(owner) {
			g.notifyChange(target, invKey)
		}
	}
}

// peekEdge returns a materialized edge without creating one.
func (g *Graph) peekEdge(ident *identity.Identifier, field string) (Edge, bool) {
	node, ok := g.nodes[ident]
	if !ok {
		return nil, false
	}
	edge, ok := node.Get(field)
	if !ok || edge == nil {
		return nil, false
	}
	return edge, true
}
