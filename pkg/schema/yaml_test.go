package schema

import (
	"os"
	"path/filepath"
	"testing"
)

const blogYAML = `
models:
  user:
    relationships:
      posts:
        kind: to-many
        type: post
        inverse: author
  post:
    relationships:
      author:
        kind: to-one
        type: user
        inverse: posts
      tags:
        kind: to-many
        type: tag
        inverse: ''
        async: true
  tag:
    relationships: {}
  admin:
    base: user
`

func TestParseYAML(t *testing.T) {
	set, err := ParseYAML([]byte(blogYAML))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}

	res, err := set.ResolveRelationship("post", "author")
	if err != nil {
		t.Fatalf("ResolveRelationship: %v", err)
	}
	if res.LHS.Kind != ToOne || res.RHS.Key != "posts" {
		t.Errorf("post.author resolved to %+v / %+v", res.LHS, res.RHS)
	}

	// inverse: '' declares no inverse, so the other side is synthesized.
	tags, err := set.ResolveRelationship("post", "tags")
	if err != nil {
		t.Fatalf("ResolveRelationship: %v", err)
	}
	if !tags.RHS.IsImplicit {
		t.Errorf("post.tags RHS not implicit: %+v", tags.RHS)
	}
	if !tags.LHS.IsAsync {
		t.Error("post.tags lost its async flag")
	}

	// Subtypes resolve through their base.
	sub, err := set.ResolveRelationship("admin", "posts")
	if err != nil {
		t.Fatalf("ResolveRelationship: %v", err)
	}
	if sub.LHSBaseType != "user" {
		t.Errorf("admin resolved with base %q, want user", sub.LHSBaseType)
	}
}

func TestParseYAMLErrors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"not yaml", ":\n  - ["},
		{"no models", "models: {}"},
		{"bad kind", `
models:
  a:
    relationships:
      b: {kind: has-many, type: b}
`},
		{"missing type", `
models:
  a:
    relationships:
      b: {kind: to-one}
`},
		{"base with relationships", `
models:
  a:
    base: b
    relationships:
      c: {kind: to-one, type: b}
`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseYAML([]byte(tc.doc)); err == nil {
				t.Fatal("ParseYAML accepted an invalid document")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(blogYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, err := set.ResolveRelationship("user", "posts"); err != nil {
		t.Errorf("loaded set cannot resolve user.posts: %v", err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile succeeded on a missing file")
	}
}
