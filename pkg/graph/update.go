package graph

import (
	"fmt"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/metrics"
)

// Update applies one operation synchronously in local mode. Remote-only
// operations are rejected with ErrWrongMode.
func (g *Graph) Update(op Op) error {
	return g.apply(op, false)
}

// UpdateRemote applies one operation synchronously in remote mode,
// bypassing the pending queues. It exists for callers that already hold
// known-consistent data; anything arriving from a server should normally go
// through Push so it coalesces and orders with the rest of the batch.
func (g *Graph) UpdateRemote(op Op) error {
	return g.apply(op, true)
}

func (g *Graph) apply(op Op, isRemote bool) error {
	if g.destroyed {
		return ErrDestroyed
	}
	var err error
	switch o := op.(type) {
	case ReplaceRelatedRecord:
		err = g.applyReplaceToOne(o, isRemote)
	case ReplaceRelatedRecords:
		err = g.applyReplaceToMany(o, isRemote)
	case AddToRelatedRecords:
		if isRemote {
			return fmt.Errorf("%w: %s is local-only", ErrWrongMode, o.opName())
		}
		err = g.applyAddToRelated(o)
	case RemoveFromRelatedRecords:
		if isRemote {
			return fmt.Errorf("%w: %s is local-only", ErrWrongMode, o.opName())
		}
		err = g.applyRemoveFromRelated(o)
	case UpdateRelationship:
		if !isRemote {
			return fmt.Errorf("%w: %s is remote-only", ErrWrongMode, o.opName())
		}
		err = g.applyUpdateRelationship(o)
	case MergeIdentifiers:
		err = g.applyMerge(o)
	case DeleteRecord:
		if !isRemote {
			return fmt.Errorf("%w: %s is remote-only", ErrWrongMode, o.opName())
		}
		err = g.applyDelete(o)
	default:
		return fmt.Errorf("graph: unknown operation %T", op)
	}
	if err == nil {
		metrics.OperationsTotal.WithLabelValues(op.opName(), modeLabel(isRemote)).Inc()
	}
	return err
}

func modeLabel(isRemote bool) string {
	if isRemote {
		return "remote"
	}
	return "local"
}

// toOneEdge and toManyEdge materialize and kind-check the edge a
// field-level operation targets. Implicit edges are never user-addressable.
func (g *Graph) toOneEdge(ident *identity.Identifier, field string) (*ToOne, error) {
	e, err := g.Get(ident, field)
	if err != nil {
		return nil, err
	}
	switch edge := e.(type) {
	case *ToOne:
		return edge, nil
	case *Implicit:
		return nil, fmt.Errorf("%w: %s.%s", ErrImplicitEdge, ident, field)
	default:
		return nil, fmt.Errorf("graph: %s.%s is to-many, operation needs a to-one edge", ident, field)
	}
}

func (g *Graph) toManyEdge(ident *identity.Identifier, field string) (*ToMany, error) {
	e, err := g.Get(ident, field)
	if err != nil {
		return nil, err
	}
	switch edge := e.(type) {
	case *ToMany:
		return edge, nil
	case *Implicit:
		return nil, fmt.Errorf("%w: %s.%s", ErrImplicitEdge, ident, field)
	default:
		return nil, fmt.Errorf("graph: %s.%s is to-one, operation needs a to-many edge", ident, field)
	}
}
