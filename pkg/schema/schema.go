// Package schema defines the relationship-metadata boundary of the graph.
//
// The graph consults a Provider to learn the static shape of a relationship
// field: its kind, its target type, whether it is asynchronous, and what the
// inverse side looks like. Resolution must be deterministic and total for
// declared fields; unknown fields are a configuration error, not a runtime
// condition.
//
// Two implementations ship with the package: a ModelSet built in code (used
// by tests and embedders) and the same ModelSet loaded from a YAML document
// (see yaml.go).
package schema

import (
	"errors"
	"fmt"
)

// Kind classifies a relationship side.
type Kind int

const (
	// ToOne is a single-pointer relationship ("belongs to").
	ToOne Kind = iota
	// ToMany is an ordered collection relationship ("has many").
	ToMany
	// Implicit is the synthesized inverse of a relationship declared on only
	// one side. Implicit sides are bookkeeping-only and never user-facing.
	Implicit
)

// String returns the YAML spelling of the kind.
func (k Kind) String() string {
	switch k {
	case ToOne:
		return "to-one"
	case ToMany:
		return "to-many"
	case Implicit:
		return "implicit"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FieldDefinition describes one side of a relationship.
type FieldDefinition struct {
	// Kind of this side.
	Kind Kind
	// Key is the field name on the owning model. Implicit sides use a
	// synthesized "implicit:<model>:<field>" key naming the declared side
	// they mirror.
	Key string
	// Type is the target model name.
	Type string
	// IsAsync marks the side as asynchronous: a dematerialized target may be
	// refetched later, so references to it must survive unload.
	IsAsync bool
	// IsImplicit is true only for synthesized inverse sides.
	IsImplicit bool
	// IsPolymorphic marks the side as accepting subtypes of Type.
	IsPolymorphic bool
}

// ResolvedRelationship is the full resolution result for one relationship:
// both sides plus the base model names they are declared on.
type ResolvedRelationship struct {
	LHS *FieldDefinition
	RHS *FieldDefinition
	// LHSBaseType and RHSBaseType are the model names the definitions are
	// cached under. For polymorphic models this is the declaring base model,
	// not the concrete subtype the lookup started from.
	LHSBaseType string
	RHSBaseType string
}

// Provider resolves relationship metadata for (model type, field name) pairs.
//
// Implementations must be deterministic: resolving the same pair twice must
// yield the same shapes. The graph caches results forever, so a provider is
// consulted at most once per pair.
type Provider interface {
	ResolveRelationship(typ, field string) (*ResolvedRelationship, error)
}

// ErrUnknownRelationship is wrapped by resolution errors for fields that no
// model declares. The graph treats it as a fatal configuration error.
var ErrUnknownRelationship = errors.New("schema: unknown relationship")

// ImplicitKey returns the synthesized key under which the implicit inverse
// of model.field is tracked on the target.
func ImplicitKey(model, field string) string {
	return fmt.Sprintf("implicit:%s:%s", model, field)
}
