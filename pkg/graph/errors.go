package graph

import "errors"

// Contract-violation sentinels. These signal caller bugs, not runtime
// conditions: the remedy is fixing the call site, never retrying.
var (
	// ErrWrongMode is returned when a local-only operation is pushed as
	// remote or a remote-only operation is applied as local.
	ErrWrongMode = errors.New("graph: operation applied in the wrong mode")

	// ErrImplicitEdge is returned when a field-level operation addresses an
	// implicit edge. Implicit edges are bookkeeping-only and never
	// user-addressable; only structural operations (merge, delete) may reach
	// them.
	ErrImplicitEdge = errors.New("graph: implicit edges are not user-addressable")

	// ErrInvalidPayload is returned by updateRelationship validation when a
	// payload's shape does not match the edge definition.
	ErrInvalidPayload = errors.New("graph: invalid relationship payload")

	// ErrDestroyed is returned by all mutating entry points after Destroy.
	ErrDestroyed = errors.New("graph: graph has been destroyed")
)
