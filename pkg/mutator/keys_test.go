package mutator

import (
	"bytes"
	"sort"
	"testing"

	"github.com/dd0wney/widegraph/pkg/graph"
)

// TestIndexRowKeyIntOrdering tests that integer index keys sort numerically
func TestIndexRowKeyIntOrdering(t *testing.T) {
	values := []int64{-500, -1, 0, 3, 42, 100000}

	keys := make([]string, 0, len(values))
	for _, v := range values {
		k := IndexRowKey("person", "age", graph.IntValue(v), "id")
		keys = append(keys, string(k))
	}

	if !sort.StringsAreSorted(keys) {
		t.Errorf("Expected index row keys to sort with their values, got %q", keys)
	}
}

// TestIndexRowKeyStringOrdering tests that string index keys sort lexically
func TestIndexRowKeyStringOrdering(t *testing.T) {
	values := []string{"a", "ab", "b", "ba"}

	keys := make([]string, 0, len(values))
	for _, v := range values {
		k := IndexRowKey("person", "name", graph.StringValue(v), "id")
		keys = append(keys, string(k))
	}

	if !sort.StringsAreSorted(keys) {
		t.Errorf("Expected index row keys to sort with their values, got %q", keys)
	}
}

// TestIndexPrefix tests that the prefix covers exactly its (label, key) pair
func TestIndexPrefix(t *testing.T) {
	row := IndexRowKey("person", "name", graph.StringValue("Alice"), "v1")

	if !bytes.HasPrefix(row, IndexPrefix("person", "name")) {
		t.Error("Expected row key to carry its (label, key) prefix")
	}
	if bytes.HasPrefix(row, IndexPrefix("person", "age")) {
		t.Error("Expected row key not to match a different key's prefix")
	}
	if bytes.HasPrefix(row, IndexPrefix("company", "name")) {
		t.Error("Expected row key not to match a different label's prefix")
	}
}

// TestDecodeIndexRowKey tests the row key round trip
func TestDecodeIndexRowKey(t *testing.T) {
	value := graph.IntValue(30)
	row := IndexRowKey("person", "age", value, "vertex-7")

	ref, err := DecodeIndexRowKey(row)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if ref.Label != "person" {
		t.Errorf("Expected label person, got %s", ref.Label)
	}
	if ref.Key != "age" {
		t.Errorf("Expected key age, got %s", ref.Key)
	}
	if ref.OrderedVal != value.OrderedKey() {
		t.Errorf("Expected ordered value %q, got %q", value.OrderedKey(), ref.OrderedVal)
	}
	if ref.ElementID != "vertex-7" {
		t.Errorf("Expected element id vertex-7, got %s", ref.ElementID)
	}
}

// TestDecodeIndexRowKeyErrors tests corrupt row key handling
func TestDecodeIndexRowKeyErrors(t *testing.T) {
	if _, err := DecodeIndexRowKey(nil); err == nil {
		t.Error("Expected error for empty row key")
	}
	if _, err := DecodeIndexRowKey([]byte{0x00}); err == nil {
		t.Error("Expected error for truncated frame")
	}
	if _, err := DecodeIndexRowKey([]byte{0x00, 0x09, 'x'}); err == nil {
		t.Error("Expected error for frame longer than data")
	}

	// Valid frames but no value terminator
	noSep := IndexPrefix("person", "name")
	noSep = append(noSep, "Alice"...)
	if _, err := DecodeIndexRowKey(noSep); err == nil {
		t.Error("Expected error for missing value terminator")
	}
}

// TestPrefixEnd tests the exclusive scan bound
func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   []byte
	}{
		{"Simple", []byte{0x01, 0x02}, []byte{0x01, 0x03}},
		{"TrailingMax", []byte{0x01, 0xFF}, []byte{0x02}},
		{"AllMax", []byte{0xFF, 0xFF}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrefixEnd(tt.prefix)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("PrefixEnd(%v) = %v, want %v", tt.prefix, got, tt.want)
			}
			if tt.want != nil && bytes.Compare(tt.prefix, got) >= 0 {
				t.Errorf("Expected end %v to be greater than prefix %v", got, tt.prefix)
			}
		})
	}
}
