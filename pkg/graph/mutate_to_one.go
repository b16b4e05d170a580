package graph

func (g *Graph) applyReplaceToOne(op ReplaceRelatedRecord, isRemote bool) error {
	edge, err := g.toOneEdge(op.Record, op.Field)
	if err != nil {
		return err
	}
	g.touch(edge)
	def := edge.definition

	if isRemote {
		prev := edge.remoteState
		if prev == op.Value {
			edge.hasReceivedData = true
			edge.isEmpty = op.Value == nil
			edge.isStale = false
			return nil
		}
		if prev != nil {
			g.removeFromInverse(def, edge.identifier, prev, true)
		}
		edge.remoteState = op.Value
		// The local layer follows the remote layer unless it carries a
		// divergent unconfirmed value; that one stays sticky until confirmed.
		localFollowed := edge.localState == prev
		if localFollowed {
			edge.localState = op.Value
		}
		edge.hasReceivedData = true
		edge.isEmpty = op.Value == nil
		edge.isStale = false
		edge.hasDematerializedInverse = false
		if op.Value != nil {
			g.addToInverse(def, edge.identifier, op.Value, true)
		}
		if localFollowed {
			g.notifyChange(edge.identifier, def.Key)
		}
		return nil
	}

	prev := edge.localState
	if prev == op.Value {
		return nil
	}
	if prev != nil {
		g.removeFromInverse(def, edge.identifier, prev, false)
	}
	edge.localState = op.Value
	if op.Value != nil {
		g.addToInverse(def, edge.identifier, op.Value, false)
	}
	g.notifyChange(edge.identifier, def.Key)
	return nil
}
