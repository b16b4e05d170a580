package graph

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/runloop"
	"github.com/mirrorwell/relcache/pkg/schema"
)

func newValidatingFixture(t *testing.T, set *schema.ModelSet) *fixture {
	t.Helper()
	f := &fixture{
		ids:   identity.NewCache(),
		loop:  runloop.New(QueueCoalesce, QueueSync),
		prov:  &countingProvider{Provider: set},
		notes: &recordingNotifier{},
	}
	f.sched = &countingScheduler{loop: f.loop, scheduled: make(map[string]int)}
	f.g = New(Options{
		Schema:           f.prov,
		Scheduler:        f.sched,
		Notifier:         f.notes,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		ValidatePayloads: true,
	})
	return f
}

func TestUpdateRelationshipAppliesPayload(t *testing.T) {
	f := newFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p1 := f.ids.GetOrCreate("post", "p1")
	p2 := f.ids.GetOrCreate("post", "p2")

	if err := f.g.UpdateRemote(UpdateRelationship{
		Record:  u,
		Field:   "posts",
		Payload: RelationshipPayload{Many: []*identity.Identifier{p1, p2}},
	}); err != nil {
		t.Fatal(err)
	}
	want := []*identity.Identifier{p1, p2}
	if got := members(t, f, u, "posts"); !sameIdentifiers(got, want) {
		t.Errorf("u.posts = %v, want %v", got, want)
	}

	if err := f.g.UpdateRemote(UpdateRelationship{
		Record:  p1,
		Field:   "author",
		Payload: RelationshipPayload{Data: u},
	}); err != nil {
		t.Fatal(err)
	}
	data, _ := f.g.GetData(p1, "author")
	if data.Data != u || !data.HasReceivedData {
		t.Errorf("p1.author = %+v, want confirmed %v", data, u)
	}

	// An empty payload confirms emptiness rather than meaning "no data".
	if err := f.g.UpdateRemote(UpdateRelationship{Record: p2, Field: "author"}); err != nil {
		t.Fatal(err)
	}
	empty, _ := f.g.GetData(p2, "author")
	if !empty.HasReceivedData || !empty.IsEmpty || empty.Data != nil {
		t.Errorf("p2.author = %+v, want confirmed empty", empty)
	}
}

func TestPayloadValidation(t *testing.T) {
	f := newValidatingFixture(t, blogSchema())
	u := f.ids.GetOrCreate("user", "u1")
	p := f.ids.GetOrCreate("post", "p1")

	testCases := []struct {
		name string
		op   UpdateRelationship
	}{
		{"list payload on to-one", UpdateRelationship{
			Record: p, Field: "author",
			Payload: RelationshipPayload{Many: []*identity.Identifier{u}},
		}},
		{"single payload on to-many", UpdateRelationship{
			Record: u, Field: "posts",
			Payload: RelationshipPayload{Data: p},
		}},
		{"nil member", UpdateRelationship{
			Record: u, Field: "posts",
			Payload: RelationshipPayload{Many: []*identity.Identifier{p, nil}},
		}},
		{"duplicate member", UpdateRelationship{
			Record: u, Field: "posts",
			Payload: RelationshipPayload{Many: []*identity.Identifier{p, p}},
		}},
		{"wrong member type", UpdateRelationship{
			Record: p, Field: "author",
			Payload: RelationshipPayload{Data: f.ids.GetOrCreate("post", "p2")},
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.g.UpdateRemote(tc.op); !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("err = %v, want ErrInvalidPayload", err)
			}
			// Push validates the same way, before anything is enqueued.
			if err := f.g.Push(tc.op); !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("Push err = %v, want ErrInvalidPayload", err)
			}
		})
	}
	if f.sched.scheduled[QueueCoalesce] != 0 {
		t.Error("rejected pushes scheduled a flush")
	}
}

func TestPolymorphicMemberAccepted(t *testing.T) {
	set := blogSchema().DefineSubtype("admin", "user")
	f := newValidatingFixture(t, set)
	p := f.ids.GetOrCreate("post", "p1")
	admin := f.ids.GetOrCreate("admin", "a1")

	// Unregistered subtype is rejected by the shape check.
	err := f.g.UpdateRemote(UpdateRelationship{
		Record: p, Field: "author",
		Payload: RelationshipPayload{Data: admin},
	})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("err = %v, want ErrInvalidPayload before registration", err)
	}

	f.g.RegisterPolymorphicType("user", "admin")
	if err := f.g.UpdateRemote(UpdateRelationship{
		Record: p, Field: "author",
		Payload: RelationshipPayload{Data: admin},
	}); err != nil {
		t.Fatalf("err = %v after registration, want nil", err)
	}
	data, _ := f.g.GetData(p, "author")
	if data.Data != admin {
		t.Errorf("p.author = %v, want %v", data.Data, admin)
	}
}
