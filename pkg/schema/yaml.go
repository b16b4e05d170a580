// This file loads a ModelSet from a YAML document. The format mirrors the
// programmatic API:
//
//	models:
//	  post:
//	    relationships:
//	      author:
//	        kind: to-one
//	        type: user
//	        inverse: posts
//	        async: false
//	  user:
//	    relationships:
//	      posts:
//	        kind: to-many
//	        type: post
//	        inverse: author
//	  admin:
//	    base: user
//
// Omitting "inverse" requests automatic discovery; "inverse: ''" declares
// that no inverse exists.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Models map[string]yamlModel `yaml:"models"`
}

type yamlModel struct {
	Base          string                      `yaml:"base"`
	Relationships map[string]yamlRelationship `yaml:"relationships"`
}

type yamlRelationship struct {
	Kind        string  `yaml:"kind"`
	Type        string  `yaml:"type"`
	Inverse     *string `yaml:"inverse"`
	Async       bool    `yaml:"async"`
	Polymorphic bool    `yaml:"polymorphic"`
}

// ParseYAML builds a ModelSet from a YAML schema document.
func ParseYAML(data []byte) (*ModelSet, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("schema: invalid YAML: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("schema: document declares no models")
	}

	set := NewModelSet()
	for name, model := range file.Models {
		if model.Base != "" {
			if len(model.Relationships) > 0 {
				return nil, fmt.Errorf("schema: model %q declares both base and relationships", name)
			}
			set.DefineSubtype(name, model.Base)
			continue
		}
		rels := make(map[string]RelationshipConfig, len(model.Relationships))
		for field, rel := range model.Relationships {
			kind, err := parseKind(rel.Kind)
			if err != nil {
				return nil, fmt.Errorf("schema: %s.%s: %w", name, field, err)
			}
			if rel.Type == "" {
				return nil, fmt.Errorf("schema: %s.%s declares no target type", name, field)
			}
			rels[field] = RelationshipConfig{
				Kind:        kind,
				Type:        rel.Type,
				Inverse:     rel.Inverse,
				Async:       rel.Async,
				Polymorphic: rel.Polymorphic,
			}
		}
		set.Define(name, rels)
	}
	return set, nil
}

// LoadFile reads and parses a YAML schema file.
func LoadFile(path string) (*ModelSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}
	return ParseYAML(data)
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "to-one":
		return ToOne, nil
	case "to-many":
		return ToMany, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want to-one or to-many)", s)
	}
}
