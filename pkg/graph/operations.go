package graph

import (
	"github.com/mirrorwell/relcache/pkg/identity"
)

// Op is a tagged graph mutation. It is a sealed union; the concrete types
// below are the only operations the processor accepts.
type Op interface {
	opName() string
}

// ReplaceRelatedRecord sets a to-one edge's pointer to Value (nil clears),
// clearing the prior value's inverse membership and establishing the new
// value's. Valid in both modes.
type ReplaceRelatedRecord struct {
	Record *identity.Identifier
	Field  string
	Value  *identity.Identifier
}

func (ReplaceRelatedRecord) opName() string { return "replaceRelatedRecord" }

// ReplaceRelatedRecords wholesale-replaces a to-many edge's ordered member
// list for the targeted state layer, reconciling inverse edges for every
// added and removed member. Valid in both modes.
type ReplaceRelatedRecords struct {
	Record *identity.Identifier
	Field  string
	Values []*identity.Identifier
}

func (ReplaceRelatedRecords) opName() string { return "replaceRelatedRecords" }

// AddToRelatedRecords inserts Value into the local ordered list at Index
// (nil appends) unless it is already a member. Local-only.
type AddToRelatedRecords struct {
	Record *identity.Identifier
	Field  string
	Value  *identity.Identifier
	Index  *int
}

func (AddToRelatedRecords) opName() string { return "addToRelatedRecords" }

// RemoveFromRelatedRecords removes Value from the local ordered list and
// membership set. Local-only.
type RemoveFromRelatedRecords struct {
	Record *identity.Identifier
	Field  string
	Value  *identity.Identifier
}

func (RemoveFromRelatedRecords) opName() string { return "removeFromRelatedRecords" }

// RelationshipPayload is the in-memory shape of a full relationship value:
// a single reference for to-one fields, an ordered list for to-many fields.
// Wire-format serialization is outside this package.
type RelationshipPayload struct {
	Data *identity.Identifier
	Many []*identity.Identifier
}

// UpdateRelationship applies a full relationship payload as the new remote
// state. Remote-only; shape-validated before application when the graph was
// built with ValidatePayloads.
type UpdateRelationship struct {
	Record  *identity.Identifier
	Field   string
	Payload RelationshipPayload
}

func (UpdateRelationship) opName() string { return "updateRelationship" }

// MergeIdentifiers consolidates every edge referencing Retiring onto
// Surviving, rewriting all edge and inverse-edge references. Structural, so
// it is exempt from the implicit-edge restriction. Valid in both modes.
type MergeIdentifiers struct {
	Retiring  *identity.Identifier
	Surviving *identity.Identifier
}

func (MergeIdentifiers) opName() string { return "mergeIdentifiers" }

// DeleteRecord cascades a removal: every edge of Record is cleared, every
// inverse drops Record completely, and the node leaves the registry.
// Remote-only.
type DeleteRecord struct {
	Record *identity.Identifier
}

func (DeleteRecord) opName() string { return "deleteRecord" }
