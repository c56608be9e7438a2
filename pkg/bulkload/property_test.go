package bulkload

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/widegraph/pkg/graph"
	"github.com/dd0wney/widegraph/pkg/memstore"
	"github.com/dd0wney/widegraph/pkg/mutator"
)

func newPropertyTestPipeline(t *testing.T) (*Loader, *memstore.Store) {
	store := memstore.New()
	reg := graph.NewIndexRegistry()
	for _, d := range []graph.IndexDescriptor{
		{Element: graph.VertexType, Label: "person", Property: "name", Scope: graph.WriteScope},
		{Element: graph.VertexType, Label: "person", Property: "age", Scope: graph.WriteScope},
	} {
		if err := reg.Register(d); err != nil {
			t.Fatalf("Failed to register %s: %v", d, err)
		}
	}
	l, err := NewLoader(store, reg, Config{})
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	return l, store
}

// TestIndexMaintenanceInvariants verifies the properties the pipeline promises
// for any sequence of property writes
func TestIndexMaintenanceInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	// Property 1: after any sequence of writes, an indexed property has
	// exactly one index entry and it carries the last value
	properties.Property("index holds exactly the last value", prop.ForAll(
		func(values []string) bool {
			if len(values) == 0 || len(values) > 40 {
				return true
			}

			l, store := newPropertyTestPipeline(t)
			defer store.Close()
			defer l.Close()

			v, err := l.AddVertex("person", map[string]graph.Value{
				"name": graph.StringValue(values[0]),
			})
			if err != nil {
				return true
			}
			for _, val := range values[1:] {
				if err := l.SetProperty(v, "name", graph.StringValue(val)); err != nil {
					return false
				}
			}
			if err := l.Close(); err != nil {
				return false
			}

			refs := decodeIndexRows(t, readAll(t, store, mutator.VertexIndexTable))
			if len(refs) != 1 {
				return false
			}
			last := values[len(values)-1]
			return refs[0].OrderedVal == graph.StringValue(last).OrderedKey() &&
				refs[0].ElementID == v.ID()
		},
		gen.SliceOf(gen.AlphaString().SuchThat(func(s string) bool { return s != "" })),
	))

	// Property 2: every loaded vertex appears in the index exactly once
	properties.Property("index is complete over loaded vertices", prop.ForAll(
		func(numVertices int) bool {
			l, store := newPropertyTestPipeline(t)
			defer store.Close()
			defer l.Close()

			ids := make(map[graph.ID]bool, numVertices)
			for i := 0; i < numVertices; i++ {
				v, err := l.AddVertex("person", map[string]graph.Value{
					"name": graph.StringValue(fmt.Sprintf("user%03d", i)),
				})
				if err != nil {
					return false
				}
				ids[v.ID()] = true
			}
			if err := l.Close(); err != nil {
				return false
			}

			refs := decodeIndexRows(t, readAll(t, store, mutator.VertexIndexTable))
			if len(refs) != numVertices {
				return false
			}
			seen := make(map[graph.ID]bool, len(refs))
			for _, ref := range refs {
				if !ids[ref.ElementID] || seen[ref.ElementID] {
					return false
				}
				seen[ref.ElementID] = true
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	// Property 3: rewriting the current value emits no mutations
	properties.Property("rewriting the same value is silent", prop.ForAll(
		func(value string, repeats int) bool {
			l, store := newPropertyTestPipeline(t)
			defer store.Close()
			defer l.Close()

			v, err := l.AddVertex("person", map[string]graph.Value{
				"name": graph.StringValue(value),
			})
			if err != nil {
				return true
			}

			before := l.Stats().Submitted()
			for i := 0; i < repeats; i++ {
				if err := l.SetProperty(v, "name", graph.StringValue(value)); err != nil {
					return false
				}
			}
			return l.Stats().Submitted() == before
		},
		gen.AlphaString(),
		gen.IntRange(1, 5),
	))

	// Property 4: scanning the index returns integer values in numeric order
	properties.Property("index scan order matches value order", prop.ForAll(
		func(ages []int64) bool {
			if len(ages) > 40 {
				return true
			}

			l, store := newPropertyTestPipeline(t)
			defer store.Close()
			defer l.Close()

			ageOf := make(map[graph.ID]int64, len(ages))
			for _, age := range ages {
				v, err := l.AddVertex("person", map[string]graph.Value{
					"age": graph.IntValue(age),
				})
				if err != nil {
					return false
				}
				ageOf[v.ID()] = age
			}
			if err := l.Close(); err != nil {
				return false
			}

			// Rows come back in key order; the value segment dominates
			// within one (label, key) prefix
			var prev int64
			first := true
			for _, ref := range decodeIndexRows(t, readAll(t, store, mutator.VertexIndexTable)) {
				age, ok := ageOf[ref.ElementID]
				if !ok {
					return false
				}
				if !first && age < prev {
					return false
				}
				prev = age
				first = false
			}
			return true
		},
		gen.SliceOf(gen.Int64()),
	))

	// Property 5: every edge gets exactly one creation-time entry no matter
	// how many are loaded
	properties.Property("edges always get a creation entry", prop.ForAll(
		func(numEdges int) bool {
			l, store := newPropertyTestPipeline(t)
			defer store.Close()
			defer l.Close()

			out := graph.VertexRef{ID: "v1", Label: "person"}
			in := graph.VertexRef{ID: "v2", Label: "person"}
			for i := 0; i < numEdges; i++ {
				if _, err := l.AddEdge(out, in, "likes", nil); err != nil {
					return false
				}
			}
			if err := l.Close(); err != nil {
				return false
			}

			refs := decodeIndexRows(t, readAll(t, store, mutator.EdgeIndexTable))
			if len(refs) != numEdges {
				return false
			}
			for _, ref := range refs {
				if ref.Key != mutator.CreatedAtKey {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}
