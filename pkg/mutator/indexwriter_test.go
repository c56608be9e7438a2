package mutator

import (
	"bytes"
	"testing"
	"time"

	"github.com/dd0wney/widegraph/pkg/graph"
	"github.com/dd0wney/widegraph/pkg/table"
)

func testRegistry(t *testing.T) *graph.IndexRegistry {
	t.Helper()
	reg := graph.NewIndexRegistry()
	descriptors := []graph.IndexDescriptor{
		{Element: graph.VertexType, Label: "person", Property: "name", Scope: graph.WriteScope},
		{Element: graph.VertexType, Label: "person", Property: "age", Scope: graph.WriteScope},
		{Element: graph.VertexType, Label: "person", Property: "email", Scope: graph.ReadScope},
		{Element: graph.EdgeType, Label: "knows", Property: "weight", Scope: graph.WriteScope},
	}
	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			t.Fatalf("Failed to register %s: %v", d, err)
		}
	}
	return reg
}

// TestVertexIndexWriterFullMode tests descriptor-driven insertions at creation
func TestVertexIndexWriterFullMode(t *testing.T) {
	reg := testRegistry(t)
	w := NewVertexIndexWriter(reg)

	// name is indexed and set; age is indexed but absent; email is set but
	// read scope; city is set but not indexed.
	v := graph.NewVertex("v1", "person", testTime, map[string]graph.Value{
		"name":  graph.StringValue("Alice"),
		"email": graph.StringValue("alice@example.com"),
		"city":  graph.StringValue("Oslo"),
	}, reg)

	muts := w.Insertions(v)
	if len(muts) != 1 {
		t.Fatalf("Expected 1 insertion, got %d", len(muts))
	}

	m := muts[0]
	wantRow := IndexRowKey("person", "name", graph.StringValue("Alice"), "v1")
	if !bytes.Equal(m.Row, wantRow) {
		t.Errorf("Expected row %v, got %v", wantRow, m.Row)
	}
	if m.Kind != table.KindPut {
		t.Errorf("Expected put, got %v", m.Kind)
	}
	if got := cellByQualifier(t, m, QualElementID); string(got) != "v1" {
		t.Errorf("Expected element id back-pointer v1, got %s", got)
	}
	if got := cellByQualifier(t, m, QualLabel); string(got) != "person" {
		t.Errorf("Expected label back-pointer person, got %s", got)
	}
	if got := cellByQualifier(t, m, QualValue); !bytes.Equal(got, graph.StringValue("Alice").Encode()) {
		t.Errorf("Unexpected value cell %v", got)
	}
}

// TestVertexIndexWriterUnmatchedLabel tests that descriptors for other labels stay quiet
func TestVertexIndexWriterUnmatchedLabel(t *testing.T) {
	reg := testRegistry(t)
	w := NewVertexIndexWriter(reg)

	v := graph.NewVertex("v2", "company", testTime, map[string]graph.Value{
		"name": graph.StringValue("Initech"),
	}, reg)

	if muts := w.Insertions(v); len(muts) != 0 {
		t.Errorf("Expected no insertions for unindexed label, got %d", len(muts))
	}
}

// TestEdgeIndexWriterCreationEntry tests the unconditional creation-time entry
func TestEdgeIndexWriterCreationEntry(t *testing.T) {
	reg := testRegistry(t)
	w := NewEdgeIndexWriter(reg)

	out := graph.VertexRef{ID: "v1", Label: "person"}
	in := graph.VertexRef{ID: "v2", Label: "person"}

	// No indexed property set: only the creation entry
	bare, err := graph.NewEdge("e1", "likes", testTime, nil, out, in, reg)
	if err != nil {
		t.Fatalf("Failed to build edge: %v", err)
	}
	muts := w.Insertions(bare)
	if len(muts) != 1 {
		t.Fatalf("Expected only the creation entry, got %d mutations", len(muts))
	}
	ref, err := DecodeIndexRowKey(muts[0].Row)
	if err != nil {
		t.Fatalf("Failed to decode creation entry row: %v", err)
	}
	if ref.Label != "likes" || ref.Key != CreatedAtKey {
		t.Errorf("Expected likes/%s entry, got %s/%s", CreatedAtKey, ref.Label, ref.Key)
	}
	if ref.ElementID != "e1" {
		t.Errorf("Expected element id e1, got %s", ref.ElementID)
	}

	// With an indexed property, descriptor entries come first, creation last
	weighted, err := graph.NewEdge("e2", "knows", testTime, map[string]graph.Value{
		"weight": graph.FloatValue(0.8),
	}, out, in, reg)
	if err != nil {
		t.Fatalf("Failed to build edge: %v", err)
	}
	muts = w.Insertions(weighted)
	if len(muts) != 2 {
		t.Fatalf("Expected descriptor entry plus creation entry, got %d", len(muts))
	}
	first, err := DecodeIndexRowKey(muts[0].Row)
	if err != nil {
		t.Fatalf("Failed to decode first row: %v", err)
	}
	if first.Key != "weight" {
		t.Errorf("Expected weight entry first, got %s", first.Key)
	}
	last, err := DecodeIndexRowKey(muts[1].Row)
	if err != nil {
		t.Fatalf("Failed to decode last row: %v", err)
	}
	if last.Key != CreatedAtKey {
		t.Errorf("Expected creation entry last, got %s", last.Key)
	}
}

// TestTargetedInsertion tests the single-key insertion used after SetProperty
func TestTargetedInsertion(t *testing.T) {
	reg := testRegistry(t)
	w := NewVertexIndexWriter(reg)

	v := graph.NewVertex("v1", "person", testTime, map[string]graph.Value{
		"name": graph.StringValue("Alice"),
	}, reg)

	m, ok := w.Insertion(v, "name")
	if !ok {
		t.Fatal("Expected insertion for a set property")
	}
	wantRow := IndexRowKey("person", "name", graph.StringValue("Alice"), "v1")
	if !bytes.Equal(m.Row, wantRow) {
		t.Errorf("Expected row %v, got %v", wantRow, m.Row)
	}

	if _, ok := w.Insertion(v, "age"); ok {
		t.Error("Expected no insertion for an absent property")
	}
}

// TestIndexRemoverRemoval tests old-value retraction composition
func TestIndexRemoverRemoval(t *testing.T) {
	v := graph.NewVertex("v1", "person", testTime, map[string]graph.Value{
		"name": graph.StringValue("Bob"),
	}, nil)

	old := graph.StringValue("Alice")
	now := testTime.Add(time.Minute)
	m := IndexRemover{}.Removal(v, "name", old, now)

	if m.Kind != table.KindDelete {
		t.Errorf("Expected delete, got %v", m.Kind)
	}
	wantRow := IndexRowKey("person", "name", old, "v1")
	if !bytes.Equal(m.Row, wantRow) {
		t.Errorf("Expected row keyed by the old value %v, got %v", wantRow, m.Row)
	}
	if len(m.Cells) != 0 {
		t.Errorf("Expected whole-row delete, got %d cells", len(m.Cells))
	}
	if m.Timestamp != now.UnixMilli() {
		t.Errorf("Expected timestamp %d, got %d", now.UnixMilli(), m.Timestamp)
	}

	// The retraction and a subsequent insertion for the new value address
	// different rows, so the new entry never collides with the retraction.
	ins, ok := NewVertexIndexWriter(graph.NewIndexRegistry()).Insertion(v, "name")
	if !ok {
		t.Fatal("Expected insertion for current value")
	}
	if bytes.Equal(ins.Row, m.Row) {
		t.Error("Expected insertion row to differ from removal row")
	}
}
