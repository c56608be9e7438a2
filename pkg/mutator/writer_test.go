package mutator

import (
	"bytes"
	"testing"
	"time"

	"github.com/dd0wney/widegraph/pkg/graph"
	"github.com/dd0wney/widegraph/pkg/table"
)

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func cellByQualifier(t *testing.T, m table.Mutation, qual string) []byte {
	t.Helper()
	for _, c := range m.Cells {
		if c.Qualifier == qual {
			return c.Value
		}
	}
	t.Fatalf("Mutation has no %q cell (got %v)", qual, m.Qualifiers())
	return nil
}

// TestVertexWriterInsert tests the vertex primary row composition
func TestVertexWriterInsert(t *testing.T) {
	v := graph.NewVertex("v1", "person", testTime, map[string]graph.Value{
		"name": graph.StringValue("Alice"),
		"age":  graph.IntValue(30),
	}, nil)

	m := VertexWriter{}.Insert(v)

	if m.Kind != table.KindPut {
		t.Errorf("Expected put, got %v", m.Kind)
	}
	if !bytes.Equal(m.Row, RowKey("v1")) {
		t.Errorf("Expected row key v1, got %s", m.Row)
	}
	if m.Timestamp != testTime.UnixMilli() {
		t.Errorf("Expected timestamp %d, got %d", testTime.UnixMilli(), m.Timestamp)
	}

	if got := cellByQualifier(t, m, QualLabel); string(got) != "person" {
		t.Errorf("Expected label cell person, got %s", got)
	}
	if got := cellByQualifier(t, m, "name"); !bytes.Equal(got, graph.StringValue("Alice").Encode()) {
		t.Errorf("Unexpected name cell %v", got)
	}
	cellByQualifier(t, m, QualCreatedAt)
	cellByQualifier(t, m, QualUpdatedAt)

	// Reserved cells first, then user properties in sorted key order
	quals := m.Qualifiers()
	want := []string{QualLabel, QualCreatedAt, QualUpdatedAt, "age", "name"}
	if len(quals) != len(want) {
		t.Fatalf("Expected %d cells, got %d (%v)", len(want), len(quals), quals)
	}
	for i, q := range want {
		if quals[i] != q {
			t.Errorf("Cell %d: expected %s, got %s", i, q, quals[i])
		}
	}
}

// TestEdgeWriterInsert tests the edge primary row composition
func TestEdgeWriterInsert(t *testing.T) {
	out := graph.VertexRef{ID: "v1", Label: "person"}
	in := graph.VertexRef{ID: "v2", Label: "company"}
	e, err := graph.NewEdge("e1", "works_at", testTime, map[string]graph.Value{
		"since": graph.IntValue(2019),
	}, out, in, nil)
	if err != nil {
		t.Fatalf("Failed to build edge: %v", err)
	}

	m := EdgeWriter{}.Insert(e)

	if !bytes.Equal(m.Row, RowKey("e1")) {
		t.Errorf("Expected row key e1, got %s", m.Row)
	}
	if got := cellByQualifier(t, m, QualOut); string(got) != "v1" {
		t.Errorf("Expected out cell v1, got %s", got)
	}
	if got := cellByQualifier(t, m, QualOutLabel); string(got) != "person" {
		t.Errorf("Expected out label cell person, got %s", got)
	}
	if got := cellByQualifier(t, m, QualIn); string(got) != "v2" {
		t.Errorf("Expected in cell v2, got %s", got)
	}
	if got := cellByQualifier(t, m, QualInLabel); string(got) != "company" {
		t.Errorf("Expected in label cell company, got %s", got)
	}
	if got := cellByQualifier(t, m, "since"); !bytes.Equal(got, graph.IntValue(2019).Encode()) {
		t.Errorf("Unexpected since cell %v", got)
	}
}

// TestPropertyWriterUpdate tests the single-property update composition
func TestPropertyWriterUpdate(t *testing.T) {
	v := graph.NewVertex("v1", "person", testTime, nil, nil)
	later := testTime.Add(time.Minute)

	m := PropertyWriter{}.Update(v, "name", graph.StringValue("Bob"), later)

	if m.Kind != table.KindPut {
		t.Errorf("Expected put, got %v", m.Kind)
	}
	if !bytes.Equal(m.Row, RowKey("v1")) {
		t.Errorf("Expected row key v1, got %s", m.Row)
	}
	if m.Timestamp != later.UnixMilli() {
		t.Errorf("Expected timestamp %d, got %d", later.UnixMilli(), m.Timestamp)
	}
	if len(m.Cells) != 2 {
		t.Fatalf("Expected 2 cells, got %d", len(m.Cells))
	}
	if got := cellByQualifier(t, m, "name"); !bytes.Equal(got, graph.StringValue("Bob").Encode()) {
		t.Errorf("Unexpected name cell %v", got)
	}
	if got := cellByQualifier(t, m, QualUpdatedAt); !bytes.Equal(got, graph.TimestampValue(later).Encode()) {
		t.Errorf("Unexpected updatedAt cell %v", got)
	}
}
