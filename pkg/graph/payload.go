package graph

import (
	"fmt"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/schema"
)

func (g *Graph) applyUpdateRelationship(op UpdateRelationship) error {
	def, err := g.definitionFor(op.Record, op.Field)
	if err != nil {
		return err
	}
	if def.IsImplicit {
		return fmt.Errorf("%w: %s.%s", ErrImplicitEdge, op.Record, op.Field)
	}
	if g.validate {
		if err := g.validatePayload(op.Record, def, op.Payload); err != nil {
			return err
		}
	}
	switch def.Kind {
	case schema.ToOne:
		return g.applyReplaceToOne(ReplaceRelatedRecord{
			Record: op.Record,
			Field:  op.Field,
			Value:  op.Payload.Data,
		}, true)
	case schema.ToMany:
		return g.applyReplaceToMany(ReplaceRelatedRecords{
			Record: op.Record,
			Field:  op.Field,
			Values: op.Payload.Many,
		}, true)
	default:
		panic(fmt.Sprintf("graph: unknown edge kind %v", def.Kind))
	}
}

// validatePayload is the eager development-mode shape check. Release-mode
// graphs trust the caller and skip straight to application.
func (g *Graph) validatePayload(record *identity.Identifier, def *EdgeDefinition, payload RelationshipPayload) error {
	switch def.Kind {
	case schema.ToOne:
		if payload.Many != nil {
			return fmt.Errorf("%w: %s.%s is to-one but payload carries a list", ErrInvalidPayload, record, def.Key)
		}
		if payload.Data != nil {
			if err := g.validateMemberType(record, def, payload.Data); err != nil {
				return err
			}
		}
	case schema.ToMany:
		if payload.Data != nil {
			return fmt.Errorf("%w: %s.%s is to-many but payload carries a single reference", ErrInvalidPayload, record, def.Key)
		}
		seen := make(map[*identity.Identifier]struct{}, len(payload.Many))
		for _, member := range payload.Many {
			if member == nil {
				return fmt.Errorf("%w: %s.%s payload contains a nil reference", ErrInvalidPayload, record, def.Key)
			}
			if _, dup := seen[member]; dup {
				return fmt.Errorf("%w: %s.%s payload contains %s twice", ErrInvalidPayload, record, def.Key, member)
			}
			seen[member] = struct{}{}
			if err := g.validateMemberType(record, def, member); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) validateMemberType(record *identity.Identifier, def *EdgeDefinition, member *identity.Identifier) error {
	if g.typesCompatible(def.Type, member.Type) {
		return nil
	}
	return fmt.Errorf("%w: %s.%s expects %q, payload references %s (register a polymorphic type if this is intended)",
		ErrInvalidPayload, record, def.Key, def.Type, member)
}
