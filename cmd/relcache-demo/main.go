// Demo: drives the relationship cache through a typical client session and
// prints the graph state after each phase.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mirrorwell/relcache/pkg/graph"
	"github.com/mirrorwell/relcache/pkg/identity"
	"github.com/mirrorwell/relcache/pkg/runloop"
	"github.com/mirrorwell/relcache/pkg/schema"
)

const schemaYAML = `
models:
  user:
    relationships:
      posts:
        kind: to-many
        type: post
        inverse: author
  post:
    relationships:
      author:
        kind: to-one
        type: user
        inverse: posts
`

type printNotifier struct{}

func (printNotifier) RelationshipChanged(ident *identity.Identifier, field string) {
	fmt.Printf("   -> changed: %s.%s\n", ident, field)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	set, err := schema.ParseYAML([]byte(schemaYAML))
	if err != nil {
		log.Fatal(err)
	}

	ids := identity.NewCache()
	loop := runloop.New(graph.QueueCoalesce, graph.QueueSync)
	g := graph.New(graph.Options{
		Schema:           set,
		Scheduler:        loop,
		Notifier:         printNotifier{},
		Logger:           logger,
		ValidatePayloads: true,
	})

	alice := ids.GetOrCreate("user", "1")
	p1 := ids.GetOrCreate("post", "101")
	p2 := ids.GetOrCreate("post", "102")

	fmt.Println("1. Server payload: alice has posts [101, 102]")
	must(g.UpdateRemote(graph.UpdateRelationship{
		Record:  alice,
		Field:   "posts",
		Payload: graph.RelationshipPayload{Many: []*identity.Identifier{p1, p2}},
	}))
	loop.Drain()
	printPosts(g, alice)

	fmt.Println("2. Client drafts a new post and links it locally")
	draft := ids.CreateNew("post")
	must(g.Update(graph.AddToRelatedRecords{Record: alice, Field: "posts", Value: draft}))
	printPosts(g, alice)
	printAuthor(g, draft)

	fmt.Println("3. Server confirms: the draft becomes post 103")
	if err := ids.MarkPersisted(draft, "103"); err != nil {
		log.Fatal(err)
	}
	fmt.Println("   ...and post 101 was deleted server-side")
	// Both land in one coalesced flush; the delete runs first regardless of
	// push order.
	must(g.Push(graph.UpdateRelationship{
		Record:  alice,
		Field:   "posts",
		Payload: graph.RelationshipPayload{Many: []*identity.Identifier{p2, draft}},
	}))
	must(g.Push(graph.DeleteRecord{Record: p1}))
	loop.Drain()
	printPosts(g, alice)

	fmt.Println("4. Post 102 leaves the cache")
	g.Unload(p2)
	loop.Drain()
	printPosts(g, alice)

	g.Destroy()
}

func printPosts(g *graph.Graph, user *identity.Identifier) {
	data, err := g.GetData(user, "posts")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("   %s.posts:", user)
	for _, p := range data.Many {
		fmt.Printf(" %s", p)
	}
	fmt.Println()
}

func printAuthor(g *graph.Graph, post *identity.Identifier) {
	data, err := g.GetData(post, "author")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("   %s.author: %s\n", post, data.Data)
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
