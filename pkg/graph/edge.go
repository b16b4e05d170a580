package graph

import (
	"github.com/mirrorwell/relcache/pkg/identity"
)

// Edge is one named relationship instance seen from its owning identifier.
// It is a sealed union with exactly three variants: *ToOne, *ToMany and
// *Implicit. Consumers branch with a type switch.
type Edge interface {
	// Identifier returns the identifier owning this edge.
	Identifier() *identity.Identifier
	// Definition returns the resolved shape of this edge's relationship.
	Definition() *EdgeDefinition

	// info exposes the shared bookkeeping fields and seals the interface.
	info() *edgeInfo
}

// edgeInfo carries the fields shared by all edge variants.
type edgeInfo struct {
	identifier *identity.Identifier
	definition *EdgeDefinition
	// transactionRef is non-zero only while an in-flight remote flush holds
	// a reference to this edge; it counts touches within the batch.
	transactionRef int
}

func (e *edgeInfo) Identifier() *identity.Identifier { return e.identifier }
func (e *edgeInfo) Definition() *EdgeDefinition      { return e.definition }
func (e *edgeInfo) info() *edgeInfo                  { return e }

// TransactionRef reports how many times the edge has been touched by the
// currently open remote flush, zero outside of a flush. Consumers use it to
// suppress duplicate per-edge notifications within one batch.
func (e *edgeInfo) TransactionRef() int { return e.transactionRef }

// ToOne is a single-pointer edge.
type ToOne struct {
	edgeInfo
	localState  *identity.Identifier
	remoteState *identity.Identifier

	hasReceivedData          bool
	isEmpty                  bool
	isStale                  bool
	hasDematerializedInverse bool
}

// LocalState returns the unconfirmed client-side pointer, nil when cleared.
func (e *ToOne) LocalState() *identity.Identifier { return e.localState }

// RemoteState returns the last server-confirmed pointer, nil when cleared.
func (e *ToOne) RemoteState() *identity.Identifier { return e.remoteState }

// HasDematerializedInverse reports that the pointed-to identity was unloaded
// while this side is asynchronous: the reference was retained and a refetch
// is required before trusting it.
func (e *ToOne) HasDematerializedInverse() bool { return e.hasDematerializedInverse }

// IsStale reports that the relationship was downgraded to a client-side
// delete during dematerialization.
func (e *ToOne) IsStale() bool { return e.isStale }

func (e *ToOne) relatedIdentifiers() []*identity.Identifier {
	var out []*identity.Identifier
	if e.remoteState != nil {
		out = append(out, e.remoteState)
	}
	if e.localState != nil && e.localState != e.remoteState {
		out = append(out, e.localState)
	}
	return out
}

func (e *ToOne) clear() {
	e.localState = nil
	e.remoteState = nil
	e.hasDematerializedInverse = false
}

// ToMany is an ordered-collection edge. The member sets mirror the state
// sequences for O(1) membership; the two must agree after every operation.
// additions and removals hold local-only deltas relative to the remote
// layer, pruned once the remote confirms them.
type ToMany struct {
	edgeInfo
	localState    []*identity.Identifier
	remoteState   []*identity.Identifier
	localMembers  map[*identity.Identifier]struct{}
	remoteMembers map[*identity.Identifier]struct{}
	additions     map[*identity.Identifier]struct{}
	removals      map[*identity.Identifier]struct{}

	hasReceivedData          bool
	isEmpty                  bool
	isStale                  bool
	hasDematerializedInverse bool
}

func newToMany(ident *identity.Identifier, def *EdgeDefinition) *ToMany {
	return &ToMany{
		edgeInfo:      edgeInfo{identifier: ident, definition: def},
		localMembers:  make(map[*identity.Identifier]struct{}),
		remoteMembers: make(map[*identity.Identifier]struct{}),
		additions:     make(map[*identity.Identifier]struct{}),
		removals:      make(map[*identity.Identifier]struct{}),
	}
}

// LocalState returns the unconfirmed ordered member list. Callers must not
// mutate the returned slice.
func (e *ToMany) LocalState() []*identity.Identifier { return e.localState }

// RemoteState returns the last server-confirmed ordered member list.
// Callers must not mutate the returned slice.
func (e *ToMany) RemoteState() []*identity.Identifier { return e.remoteState }

// HasDematerializedInverse reports that a member was unloaded while this
// side is asynchronous; the membership was retained pending a refetch.
func (e *ToMany) HasDematerializedInverse() bool { return e.hasDematerializedInverse }

// IsStale reports that the relationship was downgraded to a client-side
// delete during dematerialization.
func (e *ToMany) IsStale() bool { return e.isStale }

// hasLocal / hasRemote are O(1) membership checks.
func (e *ToMany) hasLocal(v *identity.Identifier) bool {
	_, ok := e.localMembers[v]
	return ok
}

func (e *ToMany) hasRemote(v *identity.Identifier) bool {
	_, ok := e.remoteMembers[v]
	return ok
}

// addLocal inserts v into the local layer at index (append when index is
// out of range or negative) and records the delta. No-op when already a
// member.
func (e *ToMany) addLocal(v *identity.Identifier, index int) bool {
	if e.hasLocal(v) {
		return false
	}
	if index < 0 || index > len(e.localState) {
		index = len(e.localState)
	}
	e.localState = insertAt(e.localState, index, v)
	e.localMembers[v] = struct{}{}
	if e.hasRemote(v) {
		delete(e.removals, v)
	} else {
		e.additions[v] = struct{}{}
	}
	return true
}

// removeLocal drops v from the local layer and records the delta.
func (e *ToMany) removeLocal(v *identity.Identifier) bool {
	if !e.hasLocal(v) {
		return false
	}
	e.localState = removeFrom(e.localState, v)
	delete(e.localMembers, v)
	if e.hasRemote(v) {
		e.removals[v] = struct{}{}
	} else {
		delete(e.additions, v)
	}
	return true
}

// addRemote inserts v into the remote layer and reflects it into the local
// layer unless a pending local removal suppresses it.
func (e *ToMany) addRemote(v *identity.Identifier) bool {
	if e.hasRemote(v) {
		return false
	}
	e.remoteState = append(e.remoteState, v)
	e.remoteMembers[v] = struct{}{}
	delete(e.additions, v) // confirmed
	if _, removed := e.removals[v]; !removed && !e.hasLocal(v) {
		e.localState = append(e.localState, v)
		e.localMembers[v] = struct{}{}
	}
	return true
}

// removeRemote drops v from the remote layer and from the local layer
// unless a pending local addition keeps it.
func (e *ToMany) removeRemote(v *identity.Identifier) bool {
	if !e.hasRemote(v) {
		return false
	}
	e.remoteState = removeFrom(e.remoteState, v)
	delete(e.remoteMembers, v)
	delete(e.removals, v) // confirmed
	if _, added := e.additions[v]; !added && e.hasLocal(v) {
		e.localState = removeFrom(e.localState, v)
		delete(e.localMembers, v)
	}
	return true
}

// removeCompletely drops v from both layers and all delta bookkeeping.
func (e *ToMany) removeCompletely(v *identity.Identifier) bool {
	changed := false
	if e.hasRemote(v) {
		e.remoteState = removeFrom(e.remoteState, v)
		delete(e.remoteMembers, v)
		changed = true
	}
	if e.hasLocal(v) {
		e.localState = removeFrom(e.localState, v)
		delete(e.localMembers, v)
		changed = true
	}
	delete(e.additions, v)
	delete(e.removals, v)
	return changed
}

// resyncLocal recomputes the local layer as remote order minus pending
// removals plus pending additions (keeping their current local order),
// pruning deltas the remote has since confirmed. Reports whether the local
// sequence changed.
func (e *ToMany) resyncLocal() bool {
	for v := range e.additions {
		if e.hasRemote(v) {
			delete(e.additions, v)
		}
	}
	for v := range e.removals {
		if !e.hasRemote(v) {
			delete(e.removals, v)
		}
	}

	next := make([]*identity.Identifier, 0, len(e.remoteState)+len(e.additions))
	for _, v := range e.remoteState {
		if _, removed := e.removals[v]; !removed {
			next = append(next, v)
		}
	}
	for _, v := range e.localState {
		if _, added := e.additions[v]; added {
			next = append(next, v)
		}
	}

	changed := !identifiersEqual(next, e.localState)
	e.localState = next
	members := make(map[*identity.Identifier]struct{}, len(next))
	for _, v := range next {
		members[v] = struct{}{}
	}
	e.localMembers = members
	return changed
}

func (e *ToMany) relatedIdentifiers() []*identity.Identifier {
	out := make([]*identity.Identifier, 0, len(e.remoteState))
	out = append(out, e.remoteState...)
	for _, v := range e.localState {
		if !e.hasRemote(v) {
			out = append(out, v)
		}
	}
	return out
}

func (e *ToMany) clear() {
	e.localState = nil
	e.remoteState = nil
	e.localMembers = make(map[*identity.Identifier]struct{})
	e.remoteMembers = make(map[*identity.Identifier]struct{})
	e.additions = make(map[*identity.Identifier]struct{})
	e.removals = make(map[*identity.Identifier]struct{})
	e.hasDematerializedInverse = false
}

// Implicit is the bookkeeping-only inverse side of a relationship declared
// on one model only. It carries membership sets and nothing else; it exists
// so deletes and unloads of the declared side can find their way back.
type Implicit struct {
	edgeInfo
	localMembers  map[*identity.Identifier]struct{}
	remoteMembers map[*identity.Identifier]struct{}
}

func newImplicit(ident *identity.Identifier, def *EdgeDefinition) *Implicit {
	return &Implicit{
		edgeInfo:      edgeInfo{identifier: ident, definition: def},
		localMembers:  make(map[*identity.Identifier]struct{}),
		remoteMembers: make(map[*identity.Identifier]struct{}),
	}
}

func (e *Implicit) clear() {
	e.localMembers = make(map[*identity.Identifier]struct{})
	e.remoteMembers = make(map[*identity.Identifier]struct{})
}

func (e *Implicit) relatedIdentifiers() []*identity.Identifier {
	out := make([]*identity.Identifier, 0, len(e.localMembers))
	for v := range e.localMembers {
		out = append(out, v)
	}
	for v := range e.remoteMembers {
		if _, ok := e.localMembers[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// relatedIdentifiersOf returns every identifier an edge currently
// references, across both layers, without duplicates.
func relatedIdentifiersOf(e Edge) []*identity.Identifier {
	switch edge := e.(type) {
	case *ToOne:
		return edge.relatedIdentifiers()
	case *ToMany:
		return edge.relatedIdentifiers()
	case *Implicit:
		return edge.relatedIdentifiers()
	default:
		panic("graph: unknown edge variant")
	}
}

func insertAt(s []*identity.Identifier, i int, v *identity.Identifier) []*identity.Identifier {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeFrom(s []*identity.Identifier, v *identity.Identifier) []*identity.Identifier {
	for i, cur := range s {
		if cur == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func identifiersEqual(a, b []*identity.Identifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
