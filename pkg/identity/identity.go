// Package identity provides the stable identifier cache used by the
// relationship graph.
//
// An Identifier is the reference-stable key for one logical entity. The
// Cache guarantees at most one *Identifier per (type, id) pair, so pointer
// equality is identity equality and identifiers can be used directly as map
// keys. The graph itself never creates or destroys identifiers; it only
// borrows them from a Cache owned by the caller.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// Identifier is the stable key for one logical entity.
//
// ID is the server-assigned id and stays empty for client-created entities
// until they are persisted. Lid is a client-side key that is assigned once
// and never changes, so an identifier remains usable as a map key across
// persistence.
type Identifier struct {
	Type string
	ID   string
	Lid  string
}

// IsNew reports whether the entity has never been persisted.
func (i *Identifier) IsNew() bool {
	return i.ID == ""
}

// String returns a compact debug representation.
func (i *Identifier) String() string {
	if i.IsNew() {
		return fmt.Sprintf("%s:%s", i.Type, i.Lid)
	}
	return fmt.Sprintf("%s:%s", i.Type, i.ID)
}

// Cache interns identifiers so that each logical entity maps to exactly one
// *Identifier. It is single-goroutine, like the graph that consumes it.
type Cache struct {
	byKey map[string]*Identifier // "type:id" for persisted entities
	byLid map[string]*Identifier
}

// NewCache returns an empty identifier cache.
func NewCache() *Cache {
	return &Cache{
		byKey: make(map[string]*Identifier),
		byLid: make(map[string]*Identifier),
	}
}

func cacheKey(typ, id string) string {
	return typ + ":" + id
}

// GetOrCreate returns the unique identifier for (typ, id), creating it on
// first use. id must be a server-assigned id; use CreateNew for client-only
// entities.
func (c *Cache) GetOrCreate(typ, id string) *Identifier {
	key := cacheKey(typ, id)
	if existing, ok := c.byKey[key]; ok {
		return existing
	}
	ident := &Identifier{
		Type: typ,
		ID:   id,
		Lid:  fmt.Sprintf("@lid:%s-%s", typ, uuid.NewString()),
	}
	c.byKey[key] = ident
	c.byLid[ident.Lid] = ident
	return ident
}

// Peek returns the identifier for (typ, id) if one has been created.
func (c *Cache) Peek(typ, id string) (*Identifier, bool) {
	ident, ok := c.byKey[cacheKey(typ, id)]
	return ident, ok
}

// CreateNew mints an identifier for a client-created entity that has no
// server id yet. The identifier becomes addressable by id only after
// MarkPersisted.
func (c *Cache) CreateNew(typ string) *Identifier {
	ident := &Identifier{
		Type: typ,
		Lid:  fmt.Sprintf("@lid:%s-%s", typ, uuid.NewString()),
	}
	c.byLid[ident.Lid] = ident
	return ident
}

// MarkPersisted assigns the server id to a previously new identifier,
// preserving pointer identity. It returns an error if the identifier already
// carries a different id or if the (type, id) slot is taken by another
// identifier (the caller should merge through the graph in that case).
func (c *Cache) MarkPersisted(ident *Identifier, id string) error {
	if ident.ID == id {
		return nil
	}
	if ident.ID != "" {
		return fmt.Errorf("identity: %s already persisted, cannot reassign id %q", ident, id)
	}
	key := cacheKey(ident.Type, id)
	if other, ok := c.byKey[key]; ok && other != ident {
		return fmt.Errorf("identity: id %q already interned as %s", id, other)
	}
	ident.ID = id
	c.byKey[key] = ident
	return nil
}

// Release forgets an identifier. Existing pointers stay valid; the cache
// will simply mint a fresh identifier on the next GetOrCreate for the pair.
func (c *Cache) Release(ident *Identifier) {
	if ident.ID != "" {
		delete(c.byKey, cacheKey(ident.Type, ident.ID))
	}
	delete(c.byLid, ident.Lid)
}
