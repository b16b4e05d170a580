package graph

import (
	"fmt"
	"log/slog"

	"github.com/tidwall/btree"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/metrics"
	"github.com/mirrorwell/relcache/pkg/schema"
)

// Queue names the graph schedules its deferred flushes on.
const (
	// QueueCoalesce batches pushed remote operations into one flush.
	QueueCoalesce = "coalesce"
	// QueueSync batches local to-many resync passes.
	QueueSync = "sync"
)

// Scheduler is the deferred-execution facility the graph consumes. The
// callback must run exactly once, after the current synchronous turn, on
// the same goroutine. runloop.Loop satisfies this.
type Scheduler interface {
	Schedule(queue string, fn func())
}

// Notifier receives change notifications for (identifier, field) pairs.
// Within one remote flush a given pair is notified at most once.
type Notifier interface {
	RelationshipChanged(ident *identity.Identifier, field string)
}

// Options configures a Graph. Schema and Scheduler are required.
type Options struct {
	// Schema resolves relationship definitions. Required.
	Schema schema.Provider
	// Scheduler runs the deferred flush callbacks. Required.
	Scheduler Scheduler
	// Notifier receives change notifications. Optional; nil disables them.
	Notifier Notifier
	// Logger for sparse debug output. Optional; nil means slog.Default().
	Logger *slog.Logger
	// ValidatePayloads enables eager payload-shape validation on
	// updateRelationship operations. Intended for development builds; the
	// mutation logic is identical either way.
	ValidatePayloads bool
}

type notifyKey struct {
	ident *identity.Identifier
	field string
}

type pushedUpdates struct {
	deletions []Op
	hasMany   []Op
	belongsTo []Op
}

// Graph is the relationship cache. It is owned by whoever constructs it and
// passed by reference to collaborators; there is no ambient registry. All
// methods must be called from a single goroutine.
type Graph struct {
	schema   schema.Provider
	sched    Scheduler
	notifier Notifier
	log      *slog.Logger
	validate bool

	definitions map[string]map[string]*EdgeDefinition
	polymorphic map[string]map[string]struct{}

	nodes map[*identity.Identifier]*btree.Map[string, Edge]

	pushed         pushedUpdates
	willSyncRemote bool

	transactionOpen bool
	transaction     []Edge
	notified        map[notifyKey]struct{}

	pendingSync   map[*ToMany]struct{}
	willSyncLocal bool

	removing  *identity.Identifier
	destroyed bool
}

// New constructs a Graph. It panics when Schema or Scheduler is nil; a
// graph without either is a configuration error, not a runtime state.
func New(opts Options) *Graph {
	if opts.Schema == nil {
		panic("graph: Options.Schema is required")
	}
	if opts.Scheduler == nil {
		panic("graph: Options.Scheduler is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Graph{
		schema:      opts.Schema,
		sched:       opts.Scheduler,
		notifier:    opts.Notifier,
		log:         log,
		validate:    opts.ValidatePayloads,
		definitions: make(map[string]map[string]*EdgeDefinition),
		polymorphic: make(map[string]map[string]struct{}),
		nodes:       make(map[*identity.Identifier]*btree.Map[string, Edge]),
	}
}

// Has reports whether an edge for (identifier, field) has been
// materialized. It never triggers creation; an unload placeholder counts as
// not materialized.
func (g *Graph) Has(ident *identity.Identifier, field string) bool {
	node, ok := g.nodes[ident]
	if !ok {
		return false
	}
	edge, ok := node.Get(field)
	return ok && edge != nil
}

// Get returns the edge for (identifier, field), materializing it on first
// access. Creation only allocates: no notification, no inverse touch.
func (g *Graph) Get(ident *identity.Identifier, field string) (Edge, error) {
	if g.destroyed {
		return nil, ErrDestroyed
	}
	if node, ok := g.nodes[ident]; ok {
		if edge, ok := node.Get(field); ok && edge != nil {
			return edge, nil
		}
	}
	def, err := g.definitionFor(ident, field)
	if err != nil {
		return nil, err
	}
	return g.materialize(ident, field, def), nil
}

// edgeFor is the internal variant of Get for call sites that already hold
// the definition (inverse maintenance). It skips provider resolution
// entirely, so implicit keys and concrete subtypes resolve for free.
func (g *Graph) edgeFor(ident *identity.Identifier, def *EdgeDefinition) Edge {
	if node, ok := g.nodes[ident]; ok {
		if edge, ok := node.Get(def.Key); ok && edge != nil {
			return edge
		}
	}
	g.cacheDefinition(ident.Type, def)
	return g.materialize(ident, def.Key, def)
}

func (g *Graph) nodeFor(ident *identity.Identifier) *btree.Map[string, Edge] {
	node, ok := g.nodes[ident]
	if !ok {
		node = btree.NewMap[string, Edge](0)
		g.nodes[ident] = node
		metrics.Nodes.Inc()
	}
	return node
}

func (g *Graph) materialize(ident *identity.Identifier, field string, def *EdgeDefinition) Edge {
	node := g.nodeFor(ident)
	var edge Edge
	switch def.Kind {
	case schema.ToOne:
		edge = &ToOne{edgeInfo: edgeInfo{identifier: ident, definition: def}}
	case schema.ToMany:
		edge = newToMany(ident, def)
	case schema.Implicit:
		edge = newImplicit(ident, def)
	default:
		panic(fmt.Sprintf("graph: unknown edge kind %v", def.Kind))
	}
	node.Set(field, edge)
	metrics.EdgesCreatedTotal.WithLabelValues(def.Kind.String()).Inc()
	return edge
}

// touch registers an edge with the open flush transaction, if any.
// Downstream consumers can then read TransactionRef to detect "touched
// during the current batch" without per-edge notification overhead.
func (g *Graph) touch(e Edge) {
	if !g.transactionOpen {
		return
	}
	e.info().transactionRef++
	g.transaction = append(g.transaction, e)
}

func (g *Graph) notifyChange(ident *identity.Identifier, field string) {
	if g.notifier == nil {
		return
	}
	if g.transactionOpen {
		key := notifyKey{ident: ident, field: field}
		if _, seen := g.notified[key]; seen {
			return
		}
		if g.notified == nil {
			g.notified = make(map[notifyKey]struct{})
		}
		g.notified[key] = struct{}{}
	}
	g.notifier.RelationshipChanged(ident, field)
}

// Destroy drops all graph state. Pending queued work is abandoned: flushes
// already scheduled become no-ops, and all mutating entry points return
// ErrDestroyed afterwards.
func (g *Graph) Destroy() {
	if g.destroyed {
		return
	}
	g.destroyed = true
	metrics.Nodes.Sub(float64(len(g.nodes)))
	g.nodes = nil
	g.definitions = nil
	g.polymorphic = nil
	g.pushed = pushedUpdates{}
	g.pendingSync = nil
	g.transaction = nil
	g.notified = nil
	g.transactionOpen = false
	g.log.Debug("graph destroyed")
}
