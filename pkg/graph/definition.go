package graph

import (
	"fmt"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/schema"
)

// EdgeDefinition is the resolved, immutable shape of one relationship side.
// Definitions are resolved at most once per (type, field) pair for the
// lifetime of the graph and are reference-stable: the same pair always
// yields the same pointer.
type EdgeDefinition struct {
	Kind              schema.Kind
	Key               string
	Type              string
	IsAsync           bool
	IsImplicit        bool
	IsPolymorphic     bool
	InverseKey        string
	InverseIsAsync    bool
	InverseIsImplicit bool

	// inverse links the two sides of a pair directly, so inverse-edge
	// maintenance never re-resolves through the provider.
	inverse *EdgeDefinition
}

// Inverse returns the definition of the other side of the relationship.
// Self-inverse relationships return the receiver.
func (d *EdgeDefinition) Inverse() *EdgeDefinition {
	return d.inverse
}

// definitionFor returns the cached definition for (identifier type, field),
// resolving through the schema provider on first use. A provider failure is
// a fatal configuration error and propagates to the caller.
func (g *Graph) definitionFor(ident *identity.Identifier, field string) (*EdgeDefinition, error) {
	if def, ok := g.cachedDefinition(ident.Type, field); ok {
		return def, nil
	}

	res, err := g.schema.ResolveRelationship(ident.Type, field)
	if err != nil {
		return nil, fmt.Errorf("graph: resolving %s.%s: %w", ident.Type, field, err)
	}
	lhs, rhs := buildDefinitionPair(res)
	g.cacheDefinition(res.LHSBaseType, lhs)
	g.cacheDefinition(res.RHSBaseType, rhs)
	if ident.Type != res.LHSBaseType {
		// Alias under the concrete type the lookup started from, so subtypes
		// never consult the provider twice for the same field.
		g.cacheDefinition(ident.Type, lhs)
	}
	return lhs, nil
}

// cachedDefinition checks the querying type first, then its registered
// polymorphic equivalents.
func (g *Graph) cachedDefinition(typ, field string) (*EdgeDefinition, bool) {
	if defs, ok := g.definitions[typ]; ok {
		if def, ok := defs[field]; ok {
			return def, true
		}
	}
	for peer := range g.polymorphic[typ] {
		if defs, ok := g.definitions[peer]; ok {
			if def, ok := defs[field]; ok {
				g.cacheDefinition(typ, def)
				return def, true
			}
		}
	}
	return nil, false
}

func (g *Graph) cacheDefinition(typ string, def *EdgeDefinition) {
	defs, ok := g.definitions[typ]
	if !ok {
		defs = make(map[string]*EdgeDefinition)
		g.definitions[typ] = defs
	}
	if _, exists := defs[def.Key]; !exists {
		defs[def.Key] = def
	}
}

func buildDefinitionPair(res *schema.ResolvedRelationship) (lhs, rhs *EdgeDefinition) {
	lhs = &EdgeDefinition{
		Kind:              res.LHS.Kind,
		Key:               res.LHS.Key,
		Type:              res.LHS.Type,
		IsAsync:           res.LHS.IsAsync,
		IsImplicit:        res.LHS.IsImplicit,
		IsPolymorphic:     res.LHS.IsPolymorphic,
		InverseKey:        res.RHS.Key,
		InverseIsAsync:    res.RHS.IsAsync,
		InverseIsImplicit: res.RHS.IsImplicit,
	}
	if res.LHSBaseType == res.RHSBaseType && res.LHS.Key == res.RHS.Key {
		// Self-inverse relationship, e.g. user.friends <-> user.friends.
		lhs.inverse = lhs
		return lhs, lhs
	}
	rhs = &EdgeDefinition{
		Kind:              res.RHS.Kind,
		Key:               res.RHS.Key,
		Type:              res.RHS.Type,
		IsAsync:           res.RHS.IsAsync,
		IsImplicit:        res.RHS.IsImplicit,
		IsPolymorphic:     res.RHS.IsPolymorphic,
		InverseKey:        res.LHS.Key,
		InverseIsAsync:    res.LHS.IsAsync,
		InverseIsImplicit: res.LHS.IsImplicit,
	}
	lhs.inverse = rhs
	rhs.inverse = lhs
	return lhs, rhs
}

// RegisterPolymorphicType records a symmetric equivalence between two entity
// types for relationship-target matching. Idempotent; no validation happens
// here, compatibility checks are the caller's responsibility. A no-op on a
// destroyed graph.
func (g *Graph) RegisterPolymorphicType(typeA, typeB string) {
	if g.destroyed || typeA == typeB {
		return
	}
	g.addPolymorphicPeer(typeA, typeB)
	g.addPolymorphicPeer(typeB, typeA)
}

func (g *Graph) addPolymorphicPeer(typ, peer string) {
	peers, ok := g.polymorphic[typ]
	if !ok {
		peers = make(map[string]struct{})
		g.polymorphic[typ] = peers
	}
	peers[peer] = struct{}{}
}

// typesCompatible reports whether concrete may occupy a slot declared as
// declared, directly or via a registered polymorphic equivalence.
func (g *Graph) typesCompatible(declared, concrete string) bool {
	if declared == concrete {
		return true
	}
	if _, ok := g.polymorphic[declared][concrete]; ok {
		return true
	}
	_, ok := g.polymorphic[concrete][declared]
	return ok
}
