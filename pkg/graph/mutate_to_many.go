package graph

import (
	"fmt"

	"github.com/mirrorwell/relcache/pkg/identity"
)

func (g *Graph) applyReplaceToMany(op ReplaceRelatedRecords, isRemote bool) error {
	edge, err := g.toManyEdge(op.Record, op.Field)
	if err != nil {
		return err
	}
	values, err := dedupe(op.Values)
	if err != nil {
		return fmt.Errorf("graph: %s.%s: %w", op.Record, op.Field, err)
	}
	g.touch(edge)
	def := edge.definition

	incoming := make(map[*identity.Identifier]struct{}, len(values))
	for _, v := range values {
		incoming[v] = struct{}{}
	}

	if isRemote {
		// Membership changes apply eagerly on both layers so reads within
		// this turn see the confirmed members; only ordering normalization
		// waits for the sync queue.
		dropped := make([]*identity.Identifier, 0)
		for _, prev := range edge.remoteState {
			if _, kept := incoming[prev]; !kept {
				dropped = append(dropped, prev)
			}
		}
		for _, prev := range dropped {
			edge.removeRemote(prev)
			g.removeFromInverse(def, edge.identifier, prev, true)
		}
		for _, v := range values {
			if !edge.hasRemote(v) {
				edge.addRemote(v)
				g.addToInverse(def, edge.identifier, v, true)
			}
		}
		// Members now agree; adopt the payload's ordering on the remote layer.
		edge.remoteState = append([]*identity.Identifier(nil), values...)
		edge.remoteMembers = incoming
		edge.hasReceivedData = true
		edge.isEmpty = len(values) == 0
		edge.isStale = false
		edge.hasDematerializedInverse = false
		g.scheduleLocalSync(edge)
		g.notifyChange(edge.identifier, def.Key)
		return nil
	}

	changed := false
	for _, prev := range edge.localState {
		if _, kept := incoming[prev]; !kept {
			g.removeFromInverse(def, edge.identifier, prev, false)
			changed = true
		}
	}
	for _, v := range values {
		if !edge.hasLocal(v) {
			g.addToInverse(def, edge.identifier, v, false)
			changed = true
		}
	}
	if !changed && identifiersEqual(edge.localState, values) {
		return nil
	}
	edge.localState = append([]*identity.Identifier(nil), values...)
	members := make(map[*identity.Identifier]struct{}, len(values))
	for _, v := range values {
		members[v] = struct{}{}
	}
	edge.localMembers = members
	// Recompute deltas against the remote layer.
	edge.additions = make(map[*identity.Identifier]struct{})
	edge.removals = make(map[*identity.Identifier]struct{})
	for _, v := range values {
		if !edge.hasRemote(v) {
			edge.additions[v] = struct{}{}
		}
	}
	for _, v := range edge.remoteState {
		if _, kept := members[v]; !kept {
			edge.removals[v] = struct{}{}
		}
	}
	g.scheduleLocalSync(edge)
	g.notifyChange(edge.identifier, def.Key)
	return nil
}

func (g *Graph) applyAddToRelated(op AddToRelatedRecords) error {
	edge, err := g.toManyEdge(op.Record, op.Field)
	if err != nil {
		return err
	}
	g.touch(edge)
	index := -1
	if op.Index != nil {
		index = *op.Index
	}
	if !edge.addLocal(op.Value, index) {
		return nil
	}
	g.addToInverse(edge.definition, edge.identifier, op.Value, false)
	g.scheduleLocalSync(edge)
	g.notifyChange(edge.identifier, edge.definition.Key)
	return nil
}

func (g *Graph) applyRemoveFromRelated(op RemoveFromRelatedRecords) error {
	edge, err := g.toManyEdge(op.Record, op.Field)
	if err != nil {
		return err
	}
	g.touch(edge)
	if !edge.removeLocal(op.Value) {
		return nil
	}
	if !edge.definition.InverseIsImplicit {
		g.removeFromInverse(edge.definition, edge.identifier, op.Value, false)
	}
	g.scheduleLocalSync(edge)
	g.notifyChange(edge.identifier, edge.definition.Key)
	return nil
}

// dedupe copies values, rejecting duplicates; to-many sequences disallow
// repeated members.
func dedupe(values []*identity.Identifier) ([]*identity.Identifier, error) {
	out := make([]*identity.Identifier, 0, len(values))
	seen := make(map[*identity.Identifier]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			return nil, fmt.Errorf("duplicate member %s", v)
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}
