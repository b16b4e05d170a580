package graph

import (
	"fmt"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/schema"
)

// RelationshipData is the projection of an edge's current local state into
// a plain payload shape: a single reference for to-one fields, an ordered
// list for to-many fields, annotated with the edge's bookkeeping flags.
type RelationshipData struct {
	Kind schema.Kind
	// Data is set for to-one fields; nil means empty or never loaded
	// (distinguish with HasReceivedData/IsEmpty).
	Data *identity.Identifier
	// Many is set for to-many fields. The slice is the caller's to keep.
	Many []*identity.Identifier

	HasReceivedData          bool
	IsEmpty                  bool
	IsStale                  bool
	HasDematerializedInverse bool
}

// GetData projects the edge for (identifier, field), materializing it on
// first access. Implicit fields are not user-facing data and are rejected.
func (g *Graph) GetData(ident *identity.Identifier, field string) (RelationshipData, error) {
	e, err := g.Get(ident, field)
	if err != nil {
		return RelationshipData{}, err
	}
	switch edge := e.(type) {
	case *ToOne:
		return RelationshipData{
			Kind:                     schema.ToOne,
			Data:                     edge.localState,
			HasReceivedData:          edge.hasReceivedData,
			IsEmpty:                  edge.isEmpty,
			IsStale:                  edge.isStale,
			HasDematerializedInverse: edge.hasDematerializedInverse,
		}, nil
	case *ToMany:
		return RelationshipData{
			Kind:                     schema.ToMany,
			Many:                     append([]*identity.Identifier(nil), edge.localState...),
			HasReceivedData:          edge.hasReceivedData,
			IsEmpty:                  edge.isEmpty,
			IsStale:                  edge.isStale,
			HasDematerializedInverse: edge.hasDematerializedInverse,
		}, nil
	case *Implicit:
		return RelationshipData{}, fmt.Errorf("%w: %s.%s", ErrImplicitEdge, ident, field)
	default:
		panic("graph: unknown edge variant")
	}
}
