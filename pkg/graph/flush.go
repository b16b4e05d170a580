package graph

import (
	"fmt"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/metrics"
	"github.com/mirrorwell/relcache/pkg/schema"
)

// Push enqueues a remote operation for the next coalesced flush. Operations
// pushed within one cooperative turn are absorbed into a single batch and
// applied in a fixed order regardless of push order: deletions first, then
// to-many updates, then to-one updates. Local-only operations are rejected
// with ErrWrongMode; apply local mutations synchronously through Update.
//
// Everything Push can validate is validated here, so the deferred flush
// cannot fail on caller input.
func (g *Graph) Push(op Op) error {
	if g.destroyed {
		return ErrDestroyed
	}
	var bucket string
	switch o := op.(type) {
	case DeleteRecord:
		g.pushed.deletions = append(g.pushed.deletions, op)
		bucket = "deletions"
	case UpdateRelationship:
		def, err := g.definitionFor(o.Record, o.Field)
		if err != nil {
			return err
		}
		if def.IsImplicit {
			return fmt.Errorf("%w: %s.%s", ErrImplicitEdge, o.Record, o.Field)
		}
		if def.Kind == schema.ToMany {
			if err := checkPushedMembers(o.Record, o.Field, o.Payload.Many); err != nil {
				return err
			}
		}
		if g.validate {
			if err := g.validatePayload(o.Record, def, o.Payload); err != nil {
				return err
			}
		}
		if def.Kind == schema.ToMany {
			g.pushed.hasMany = append(g.pushed.hasMany, op)
			bucket = "hasMany"
		} else {
			g.pushed.belongsTo = append(g.pushed.belongsTo, op)
			bucket = "belongsTo"
		}
	case ReplaceRelatedRecords:
		if err := g.checkPushedKind(o.Record, o.Field, schema.ToMany); err != nil {
			return err
		}
		if err := checkPushedMembers(o.Record, o.Field, o.Values); err != nil {
			return err
		}
		g.pushed.hasMany = append(g.pushed.hasMany, op)
		bucket = "hasMany"
	case ReplaceRelatedRecord:
		if err := g.checkPushedKind(o.Record, o.Field, schema.ToOne); err != nil {
			return err
		}
		g.pushed.belongsTo = append(g.pushed.belongsTo, op)
		bucket = "belongsTo"
	default:
		return fmt.Errorf("%w: %s cannot be pushed as remote", ErrWrongMode, op.opName())
	}
	metrics.PushedOperationsTotal.WithLabelValues(bucket).Inc()
	if !g.willSyncRemote {
		g.willSyncRemote = true
		g.sched.Schedule(QueueCoalesce, g.flushRemoteQueue)
	}
	return nil
}

// checkPushedKind resolves the definition for a pushed field-level operation
// so that kind mismatches fail at Push instead of inside the flush.
func (g *Graph) checkPushedKind(record *identity.Identifier, field string, want schema.Kind) error {
	def, err := g.definitionFor(record, field)
	if err != nil {
		return err
	}
	if def.IsImplicit {
		return fmt.Errorf("%w: %s.%s", ErrImplicitEdge, record, field)
	}
	if def.Kind != want {
		return fmt.Errorf("graph: %s.%s is %s, pushed operation needs %s", record, field, def.Kind, want)
	}
	return nil
}

// checkPushedMembers rejects member lists the deferred flush could not
// apply. Nil and duplicate references are caller errors and must surface at
// Push, whether or not eager payload validation is enabled.
func checkPushedMembers(record *identity.Identifier, field string, values []*identity.Identifier) error {
	seen := make(map[*identity.Identifier]struct{}, len(values))
	for _, v := range values {
		if v == nil {
			return fmt.Errorf("%w: %s.%s references a nil identifier", ErrInvalidPayload, record, field)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("%w: %s.%s references %s twice", ErrInvalidPayload, record, field, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// flushRemoteQueue applies one coalesced batch inside a touch-tracking
// transaction. The pending buckets are drained and cleared before any
// operation runs, so a notification callback that re-enters Push enqueues
// work for the next flush instead of splicing into this one.
func (g *Graph) flushRemoteQueue() {
	if g.destroyed {
		return
	}
	g.willSyncRemote = false
	pending := g.pushed
	g.pushed = pushedUpdates{}

	g.transactionOpen = true
	g.transaction = g.transaction[:0]

	// Deletions must land before dependent reconciliation, otherwise a
	// hasMany/belongsTo payload could re-create stale inverse references.
	for _, ops := range [][]Op{pending.deletions, pending.hasMany, pending.belongsTo} {
		for _, op := range ops {
			if err := g.apply(op, true); err != nil {
				// Push validated everything caller-dependent; failing here
				// means the graph itself is inconsistent.
				panic(fmt.Sprintf("graph: flush failed applying %s: %v", op.opName(), err))
			}
		}
	}

	for _, edge := range g.transaction {
		edge.info().transactionRef = 0
	}
	g.transaction = g.transaction[:0]
	g.transactionOpen = false
	g.notified = nil
	metrics.RemoteFlushesTotal.Inc()
	g.log.Debug("remote queue flushed",
		"deletions", len(pending.deletions),
		"hasMany", len(pending.hasMany),
		"belongsTo", len(pending.belongsTo))
}

// scheduleLocalSync marks a to-many edge for the next local resync pass.
// The pending set coalesces naturally: an edge appears at most once however
// many times it is dirtied within a turn.
func (g *Graph) scheduleLocalSync(edge *ToMany) {
	if g.pendingSync == nil {
		g.pendingSync = make(map[*ToMany]struct{})
	}
	g.pendingSync[edge] = struct{}{}
	if !g.willSyncLocal {
		g.willSyncLocal = true
		g.sched.Schedule(QueueSync, g.flushLocalQueue)
	}
}

// flushLocalQueue reconciles each dirty to-many edge's local state against
// its remote state: remote order, minus still-pending removals, plus
// still-pending additions; deltas the remote has confirmed are dropped.
// Edges are visited in no particular order relative to each other.
func (g *Graph) flushLocalQueue() {
	if g.destroyed {
		return
	}
	g.willSyncLocal = false
	pending := g.pendingSync
	g.pendingSync = nil
	for edge := range pending {
		if edge.resyncLocal() {
			g.notifyChange(edge.identifier, edge.definition.Key)
		}
	}
	metrics.LocalSyncsTotal.Inc()
}
