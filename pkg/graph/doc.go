// Package graph implements an in-memory cache of typed, directed,
// invertible relationships between stable entity identifiers.
//
// Every relationship is tracked as an edge from one identifier's
// perspective. Edges come in three kinds: to-one, to-many, and implicit
// (the synthesized bookkeeping side of a relationship declared on only one
// model). Each non-implicit edge carries two state layers: the remote layer
// holds the last server-confirmed value, the local layer holds it plus any
// unconfirmed client mutations.
//
// Mutations are expressed as tagged operations. Local operations apply
// synchronously through Update; remote operations are normally enqueued
// with Push and applied in one coalesced batch per cooperative turn, in a
// fixed order (deletions, then to-many updates, then to-one updates).
// Whatever the path, the graph maintains inverse symmetry: adding or
// removing a reference on one side performs the mirrored change on the
// other side in the same call, materializing the inverse edge on demand.
//
// The graph is single-goroutine and cooperative. It never locks; the only
// suspension points are the two named queues ("coalesce" and "sync") it
// schedules its flushes on.
package graph
