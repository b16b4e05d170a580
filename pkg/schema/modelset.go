package schema

import (
	"fmt"
)

// RelationshipConfig is the declaration of one relationship field on a model.
type RelationshipConfig struct {
	Kind Kind
	// Type is the target model name.
	Type string
	// Inverse names the relationship on the target model that mirrors this
	// one. nil requests automatic discovery; a pointer to the empty string
	// declares that no inverse exists (the graph will keep an implicit one).
	Inverse *string
	// Async marks the side as asynchronous.
	Async bool
	// Polymorphic marks the side as accepting subtypes of Type.
	Polymorphic bool
}

type modelDef struct {
	name string
	// base is the declaring parent model for subtypes, empty otherwise.
	base          string
	relationships map[string]RelationshipConfig
}

// ModelSet is an in-memory Provider built from model declarations, either
// programmatically (Define) or from YAML (ParseYAML / LoadFile).
type ModelSet struct {
	models map[string]*modelDef
}

// NewModelSet returns an empty model set.
func NewModelSet() *ModelSet {
	return &ModelSet{models: make(map[string]*modelDef)}
}

// Define registers a model and its relationship declarations, replacing any
// previous declaration of the same model.
func (s *ModelSet) Define(model string, relationships map[string]RelationshipConfig) *ModelSet {
	s.models[model] = &modelDef{name: model, relationships: relationships}
	return s
}

// DefineSubtype registers a model that inherits its relationship
// declarations from base. Lookups against the subtype resolve on the base
// and report the base as the caching type.
func (s *ModelSet) DefineSubtype(model, base string) *ModelSet {
	s.models[model] = &modelDef{name: model, base: base}
	return s
}

// baseOf follows subtype links to the declaring model. Returns an error on
// unknown models or broken base chains.
func (s *ModelSet) baseOf(model string) (*modelDef, error) {
	def, ok := s.models[model]
	if !ok {
		return nil, fmt.Errorf("%w: model %q is not declared", ErrUnknownRelationship, model)
	}
	for def.base != "" {
		parent, ok := s.models[def.base]
		if !ok {
			return nil, fmt.Errorf("schema: model %q declares unknown base %q", def.name, def.base)
		}
		def = parent
	}
	return def, nil
}

// ResolveRelationship implements Provider.
func (s *ModelSet) ResolveRelationship(typ, field string) (*ResolvedRelationship, error) {
	lhsModel, err := s.baseOf(typ)
	if err != nil {
		return nil, err
	}
	lhsCfg, ok := lhsModel.relationships[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, lhsModel.name, field)
	}
	if lhsCfg.Kind == Implicit {
		return nil, fmt.Errorf("schema: %s.%s declares kind %q; implicit sides are synthesized, never declared", lhsModel.name, field, Implicit)
	}

	rhsModel, err := s.baseOf(lhsCfg.Type)
	if err != nil {
		return nil, fmt.Errorf("schema: %s.%s targets %q: %w", lhsModel.name, field, lhsCfg.Type, err)
	}

	inverseField, err := s.inverseFieldFor(lhsModel, field, lhsCfg, rhsModel)
	if err != nil {
		return nil, err
	}

	lhs := &FieldDefinition{
		Kind:          lhsCfg.Kind,
		Key:           field,
		Type:          lhsCfg.Type,
		IsAsync:       lhsCfg.Async,
		IsPolymorphic: lhsCfg.Polymorphic,
	}

	var rhs *FieldDefinition
	if inverseField == "" {
		rhs = &FieldDefinition{
			Kind:       Implicit,
			Key:        ImplicitKey(lhsModel.name, field),
			Type:       lhsModel.name,
			IsImplicit: true,
		}
	} else {
		rhsCfg := rhsModel.relationships[inverseField]
		rhs = &FieldDefinition{
			Kind:          rhsCfg.Kind,
			Key:           inverseField,
			Type:          rhsCfg.Type,
			IsAsync:       rhsCfg.Async,
			IsPolymorphic: rhsCfg.Polymorphic,
		}
	}

	return &ResolvedRelationship{
		LHS:         lhs,
		RHS:         rhs,
		LHSBaseType: lhsModel.name,
		RHSBaseType: rhsModel.name,
	}, nil
}

// inverseFieldFor returns the name of the inverse relationship on rhsModel,
// or "" when the relationship has no declared inverse.
func (s *ModelSet) inverseFieldFor(lhsModel *modelDef, field string, lhsCfg RelationshipConfig, rhsModel *modelDef) (string, error) {
	if lhsCfg.Inverse != nil {
		name := *lhsCfg.Inverse
		if name == "" {
			return "", nil
		}
		rhsCfg, ok := rhsModel.relationships[name]
		if !ok {
			return "", fmt.Errorf("schema: %s.%s declares inverse %q but %s does not define it", lhsModel.name, field, name, rhsModel.name)
		}
		if err := s.checkPointsBack(lhsModel, field, rhsModel, name, rhsCfg); err != nil {
			return "", err
		}
		return name, nil
	}

	// Automatic discovery: exactly one relationship on the target must point
	// back at this model and not name a different inverse.
	var candidates []string
	for name, cfg := range rhsModel.relationships {
		target, err := s.baseOf(cfg.Type)
		if err != nil || target != lhsModel {
			continue
		}
		if cfg.Inverse != nil && *cfg.Inverse != field {
			continue
		}
		candidates = append(candidates, name)
	}
	switch len(candidates) {
	case 0:
		return "", nil
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("schema: %s.%s has ambiguous inverse on %s (%d candidates); declare inverse explicitly", lhsModel.name, field, rhsModel.name, len(candidates))
	}
}

func (s *ModelSet) checkPointsBack(lhsModel *modelDef, field string, rhsModel *modelDef, inverseName string, rhsCfg RelationshipConfig) error {
	target, err := s.baseOf(rhsCfg.Type)
	if err != nil {
		return fmt.Errorf("schema: %s.%s targets %q: %w", rhsModel.name, inverseName, rhsCfg.Type, err)
	}
	if target != lhsModel {
		return fmt.Errorf("schema: %s.%s declares inverse %s.%s, which targets %q instead of %q", lhsModel.name, field, rhsModel.name, inverseName, rhsCfg.Type, lhsModel.name)
	}
	if rhsCfg.Inverse != nil && *rhsCfg.Inverse != field {
		return fmt.Errorf("schema: inverse mismatch: %s.%s names %q, %s.%s names %q", lhsModel.name, field, inverseName, rhsModel.name, inverseName, *rhsCfg.Inverse)
	}
	return nil
}
