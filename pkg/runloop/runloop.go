// Package runloop provides the deferred-execution facility the graph
// schedules its flushes on: a set of named FIFO queues drained
// cooperatively, on one goroutine, at the end of a "turn".
//
// The contract matches what the graph expects from its scheduler: a callback
// registered with Schedule runs exactly once, after the current synchronous
// turn, in the order queues were declared. There is no preemption and no
// parallelism; the owner decides when a turn ends by calling Drain.
package runloop

import "fmt"

// Loop is a set of named cooperative work queues.
type Loop struct {
	order    []string
	queues   map[string][]func()
	draining bool
}

// New creates a loop with the given queues. Drain empties them in the order
// given here.
func New(queues ...string) *Loop {
	l := &Loop{queues: make(map[string][]func())}
	for _, name := range queues {
		if _, ok := l.queues[name]; ok {
			continue
		}
		l.order = append(l.order, name)
		l.queues[name] = nil
	}
	return l
}

// Schedule appends fn to the named queue. It panics on unknown queue names;
// queue names are compile-time constants on the calling side, so a miss is a
// programmer error.
func (l *Loop) Schedule(queue string, fn func()) {
	if _, ok := l.queues[queue]; !ok {
		panic(fmt.Sprintf("runloop: unknown queue %q", queue))
	}
	l.queues[queue] = append(l.queues[queue], fn)
}

// Len returns the number of pending callbacks on a queue.
func (l *Loop) Len(queue string) int {
	return len(l.queues[queue])
}

// Drain runs all pending callbacks to exhaustion, visiting queues in
// declaration order. Callbacks scheduled while draining run in the same
// drain: they represent the next turn's work arriving before the turn ends,
// and the callers' own coalescing flags keep any one flush from being
// requested twice.
//
// Drain is not reentrant; calling it from inside a callback panics.
func (l *Loop) Drain() {
	if l.draining {
		panic("runloop: Drain called reentrantly")
	}
	l.draining = true
	defer func() { l.draining = false }()

	for {
		ran := false
		for _, name := range l.order {
			for len(l.queues[name]) > 0 {
				fn := l.queues[name][0]
				l.queues[name] = l.queues[name][1:]
				ran = true
				fn()
			}
		}
		if !ran {
			return
		}
	}
}
