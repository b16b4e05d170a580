package graph

import (
	"errors"
	"testing"

	"github.com/mirrorwell/relcache/pkg/identity"
)

func TestPushCoalescesIntoOneFlush(t *testing.T) {
	f := newFixture(t, blogSchema())
	u1 := f.ids.GetOrCreate("user", "u1")
	u2 := f.ids.GetOrCreate("user", "u2")
	p := f.ids.GetOrCreate("post", "p1")

	ops := []Op{
		ReplaceRelatedRecord{Record: p, Field: "author", Value: u1},
		ReplaceRelatedRecord{Record: p, Field: "author", Value: u2},
		UpdateRelationship{Record: u1, Field: "posts", Payload: RelationshipPayload{}},
	}
	for _, op := range ops {
		if err := f.g.Push(op); err != nil {
			t.Fatalf("Push(%T): %v", op, err)
		}
	}

	if got := f.sched.scheduled[QueueCoalesce]; got != 1 {
		t.Errorf("flush scheduled %d times for %d pushes, want 1", got, len(ops))
	}

	// Nothing lands until the queue drains.
	if data, _ := f.g.GetData(p, "author"); data.HasReceivedData {
		t.Error("pushed operation applied before the flush")
	}

	f.loop.Drain()

	data, _ := f.g.GetData(p, "author")
	if data.Data != u2 || !data.HasReceivedData {
		t.Errorf("p.author = %+v after flush, want %v confirmed", data, u2)
	}
}

func TestFlushAppliesDeletionsFirst(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p := f.ids.GetOrCreate("post", "p1")

	// Pushed in the "wrong" order: the payload arrives before the delete.
	// Bucket ordering applies the delete first, so the payload survives.
	if err := f.g.Push(ReplaceRelatedRecord{Record: p, Field: "author", Value: u}); err != nil {
		t.Fatal(err)
	}
	if err := f.g.Push(DeleteRecord{Record: p}); err != nil {
		t.Fatal(err)
	}
	f.loop.Drain()

	data, _ := f.g.GetData(p, "author")
	if data.Data != u {
		t.Errorf("p.author = %v, want %v (delete must precede the payload)", data.Data, u)
	}
}

func TestFlushDeleteBeforeHasManyOnSameIdentity(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p1 := f.ids.GetOrCreate("post", "p1")
	p2 := f.ids.GetOrCreate("post", "p2")

	if err := f.g.UpdateRemote(ReplaceRelatedRecords{Record: u, Field: "posts", Values: []*identity.Identifier{p1, p2}}); err != nil {
		t.Fatal(err)
	}

	// The hasMany payload is pushed before the delete; the delete still runs
	// first, so the payload rebuilds the node afterwards.
	if err := f.g.Push(UpdateRelationship{
		Record:  u,
		Field:   "posts",
		Payload: RelationshipPayload{Many: []*identity.Identifier{p2}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.g.Push(DeleteRecord{Record: u}); err != nil {
		t.Fatal(err)
	}
	f.loop.Drain()

	if got := members(t, f, u, "posts"); !sameIdentifiers(got, []*identity.Identifier{p2}) {
		t.Errorf("u.posts = %v, want [%v] (payload survives the delete)", got, p2)
	}
}

func TestFlushAppliesHasManyBeforeBelongsTo(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p := f.ids.GetOrCreate("post", "p1")

	// The belongsTo clear is pushed first but runs last, so the final
	// pointer state is the cleared one even though the hasMany payload
	// re-establishes the link.
	if err := f.g.Push(ReplaceRelatedRecord{Record: p, Field: "author", Value: nil}); err != nil {
		t.Fatal(err)
	}
	if err := f.g.Push(UpdateRelationship{
		Record:  u,
		Field:   "posts",
		Payload: RelationshipPayload{Many: []*identity.Identifier{p}},
	}); err != nil {
		t.Fatal(err)
	}
	f.loop.Drain()

	data, _ := f.g.GetData(p, "author")
	if data.Data != nil {
		t.Errorf("p.author = %v, want nil (belongsTo bucket runs last)", data.Data)
	}
}

func TestCoalescedPayloadsLastWins(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p1 := f.ids.GetOrCreate("post", "p1")
	p2 := f.ids.GetOrCreate("post", "p2")
	p3 := f.ids.GetOrCreate("post", "p3")

	payloads := [][]*identity.Identifier{{p1}, {p1, p2}, {p3}}
	for _, many := range payloads {
		if err := f.g.Push(UpdateRelationship{
			Record:  u,
			Field:   "posts",
			Payload: RelationshipPayload{Many: many},
		}); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.sched.scheduled[QueueCoalesce]; got != 1 {
		t.Errorf("flush scheduled %d times for %d payloads, want 1", got, len(payloads))
	}
	f.loop.Drain()

	// Full-replace semantics: only the last payload's membership remains.
	if got := members(t, f, u, "posts"); !sameIdentifiers(got, []*identity.Identifier{p3}) {
		t.Errorf("u.posts = %v, want [%v]", got, p3)
	}
}

func TestFlushNotifiesFieldOncePerBatch(t *testing.T) {
	f := newFixture(t, blogSchema())
	u1 := f.ids.GetOrCreate("user", "u1")
	u2 := f.ids.GetOrCreate("user", "u2")
	p := f.ids.GetOrCreate("post", "p1")

	if err := f.g.Push(ReplaceRelatedRecord{Record: p, Field: "author", Value: u1}); err != nil {
		t.Fatal(err)
	}
	if err := f.g.Push(ReplaceRelatedRecord{Record: p, Field: "author", Value: u2}); err != nil {
		t.Fatal(err)
	}
	f.notes.reset()
	f.loop.Drain()

	if got := f.notes.count(p, "author"); got != 1 {
		t.Errorf("p.author notified %d times within one flush, want 1", got)
	}
}

func TestFlushClearsTransactionRefs(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p := f.ids.GetOrCreate("post", "p1")

	if err := f.g.Push(ReplaceRelatedRecord{Record: p, Field: "author", Value: u}); err != nil {
		t.Fatal(err)
	}
	f.loop.Drain()

	edge, err := f.g.toOneEdge(p, "author")
	if err != nil {
		t.Fatal(err)
	}
	if edge.TransactionRef() != 0 {
		t.Errorf("transactionRef = %d after flush, want 0", edge.TransactionRef())
	}
}

func TestPushValidatesEagerly(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")

	// Unknown fields fail at Push, not at flush time.
	err := f.g.Push(UpdateRelationship{Record: u, Field: "ghost"})
	if err == nil {
		t.Fatal("Push accepted an unknown field")
	}
	if f.sched.scheduled[QueueCoalesce] != 0 {
		t.Error("rejected push still scheduled a flush")
	}
	f.loop.Drain()
}

func TestPushRejectsInvalidMembers(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p1 := f.ids.GetOrCreate("post", "p1")
	p2 := f.ids.GetOrCreate("post", "p2")

	err := f.g.Push(ReplaceRelatedRecords{Record: u, Field: "posts", Values: []*identity.Identifier{p1, p1}})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("duplicate replace members: %v, want ErrInvalidPayload", err)
	}
	// Eager payload validation is off by default; the member check still runs.
	err = f.g.Push(UpdateRelationship{
		Record:  u,
		Field:   "posts",
		Payload: RelationshipPayload{Many: []*identity.Identifier{p1, p1}},
	})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("duplicate payload members: %v, want ErrInvalidPayload", err)
	}
	err = f.g.Push(ReplaceRelatedRecords{Record: u, Field: "posts", Values: []*identity.Identifier{p1, nil}})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("nil member: %v, want ErrInvalidPayload", err)
	}
	if f.sched.scheduled[QueueCoalesce] != 0 {
		t.Error("rejected pushes still scheduled a flush")
	}
	f.loop.Drain()

	// The graph stays healthy: a valid push still flushes and notifies.
	if err := f.g.Push(ReplaceRelatedRecords{Record: u, Field: "posts", Values: []*identity.Identifier{p1, p2}}); err != nil {
		t.Fatal(err)
	}
	f.notes.reset()
	f.loop.Drain()
	if got := members(t, f, u, "posts"); !sameIdentifiers(got, []*identity.Identifier{p1, p2}) {
		t.Errorf("u.posts = %v, want [%v %v]", got, p1, p2)
	}
	if got := f.notes.count(u, "posts"); got != 1 {
		t.Errorf("u.posts notified %d times, want 1", got)
	}
}

func TestPushDuringFlushSchedulesNextFlush(t *testing.T) {
	f := newFixture(t, blogSchema())
	u1 := f.ids.GetOrCreate("user", "u1")
	u2 := f.ids.GetOrCreate("user", "u2")
	p := f.ids.GetOrCreate("post", "p1")

	// A notifier that reacts to the first flush by pushing more work, the
	// way a store reacts to relationship changes.
	reacting := &reactiveNotifier{}
	reacting.react = func() {
		reacting.react = nil
		if err := f.g.Push(ReplaceRelatedRecord{Record: p, Field: "author", Value: u2}); err != nil {
			t.Errorf("nested Push: %v", err)
		}
	}
	f.g.notifier = reacting

	if err := f.g.Push(ReplaceRelatedRecord{Record: p, Field: "author", Value: u1}); err != nil {
		t.Fatal(err)
	}
	f.loop.Drain()

	if got := f.sched.scheduled[QueueCoalesce]; got != 2 {
		t.Errorf("scheduled %d flushes, want 2 (nested push starts a new batch)", got)
	}
	data, _ := f.g.GetData(p, "author")
	if data.Data != u2 {
		t.Errorf("p.author = %v, want %v from the follow-up batch", data.Data, u2)
	}
}

type reactiveNotifier struct {
	react func()
}

func (n *reactiveNotifier) RelationshipChanged(*identity.Identifier, string) {
	if n.react != nil {
		n.react()
	}
}

func TestUpdateRemoteBypassesQueue(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p := f.ids.GetOrCreate("post", "p1")

	if err := f.g.UpdateRemote(ReplaceRelatedRecord{Record: p, Field: "author", Value: u}); err != nil {
		t.Fatal(err)
	}
	if f.sched.scheduled[QueueCoalesce] != 0 {
		t.Error("UpdateRemote went through the coalesce queue")
	}
	data, _ := f.g.GetData(p, "author")
	if data.Data != u || !data.HasReceivedData {
		t.Errorf("p.author = %+v, want %v applied synchronously", data, u)
	}
}

func TestDeleteRecordCascades(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p1 := f.ids.GetOrCreate("post", "p1")
	p2 := f.ids.GetOrCreate("post", "p2")

	if err := f.g.UpdateRemote(ReplaceRelatedRecords{Record: u, Field: "posts", Values: []*identity.Identifier{p1, p2}}); err != nil {
		t.Fatal(err)
	}
	if err := f.g.UpdateRemote(DeleteRecord{Record: p1}); err != nil {
		t.Fatal(err)
	}

	if f.g.Has(p1, "author") {
		t.Error("deleted record still owns edges")
	}
	if got := members(t, f, u, "posts"); !sameIdentifiers(got, []*identity.Identifier{p2}) {
		t.Errorf("u.posts = %v, want [%v]", got, p2)
	}
	edge, err := f.g.toManyEdge(u, "posts")
	if err != nil {
		t.Fatal(err)
	}
	if edge.hasRemote(p1) {
		t.Error("deleted record survives on the remote layer")
	}

	// Deleting an identity the graph never saw is a quiet no-op.
	if err := f.g.UpdateRemote(DeleteRecord{Record: f.ids.GetOrCreate("post", "p9")}); err != nil {
		t.Fatalf("delete of unknown record: %v", err)
	}
}

func TestPushRejectsWrongModeOps(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p := f.ids.GetOrCreate("post", "p1")

	err := f.g.Push(AddToRelatedRecords{Record: u, Field: "posts", Value: p})
	if !errors.Is(err, ErrWrongMode) {
		t.Fatalf("err = %v, want ErrWrongMode", err)
	}
}
