package table

import (
	"bytes"
	"testing"
)

// TestMutationRoundTrip tests encoding and decoding a single mutation
func TestMutationRoundTrip(t *testing.T) {
	original := Mutation{
		Kind:      KindPut,
		Row:       []byte("vertex:abc"),
		Timestamp: 1700000000123,
		Cells: []Cell{
			{Qualifier: "~label", Value: []byte("person")},
			{Qualifier: "name", Value: []byte("Alice")},
			{Qualifier: "empty", Value: []byte{}},
		},
		Durability: SkipWAL,
	}

	var buf bytes.Buffer
	if err := EncodeMutation(&buf, original); err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	decoded, err := DecodeMutation(&buf)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	if decoded.Kind != original.Kind {
		t.Errorf("Expected kind %v, got %v", original.Kind, decoded.Kind)
	}
	if decoded.Durability != original.Durability {
		t.Errorf("Expected durability %v, got %v", original.Durability, decoded.Durability)
	}
	if decoded.Timestamp != original.Timestamp {
		t.Errorf("Expected timestamp %d, got %d", original.Timestamp, decoded.Timestamp)
	}
	if !bytes.Equal(decoded.Row, original.Row) {
		t.Errorf("Expected row %s, got %s", original.Row, decoded.Row)
	}
	if len(decoded.Cells) != len(original.Cells) {
		t.Fatalf("Expected %d cells, got %d", len(original.Cells), len(decoded.Cells))
	}
	for i, c := range decoded.Cells {
		if c.Qualifier != original.Cells[i].Qualifier {
			t.Errorf("Cell %d: expected qualifier %s, got %s", i, original.Cells[i].Qualifier, c.Qualifier)
		}
		if !bytes.Equal(c.Value, original.Cells[i].Value) {
			t.Errorf("Cell %d: expected value %v, got %v", i, original.Cells[i].Value, c.Value)
		}
	}
}

// TestMutationRoundTripDelete tests a whole-row delete survives the codec
func TestMutationRoundTripDelete(t *testing.T) {
	original := NewDelete([]byte("row"), 7)

	var buf bytes.Buffer
	if err := EncodeMutation(&buf, original); err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	decoded, err := DecodeMutation(&buf)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	if decoded.Kind != KindDelete {
		t.Errorf("Expected KindDelete, got %v", decoded.Kind)
	}
	if len(decoded.Cells) != 0 {
		t.Errorf("Expected no cells, got %d", len(decoded.Cells))
	}
}

// TestBatchRoundTrip tests encoding and decoding a batch
func TestBatchRoundTrip(t *testing.T) {
	batch := []Mutation{
		NewPut([]byte("a"), 1, Cell{Qualifier: "~label", Value: []byte("person")}),
		NewDelete([]byte("b"), 2, "name"),
		NewPut([]byte("c"), 3, Cell{Qualifier: "age", Value: []byte{42}}),
	}

	data, err := EncodeBatch(batch)
	if err != nil {
		t.Fatalf("Failed to encode batch: %v", err)
	}

	decoded, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("Failed to decode batch: %v", err)
	}

	if len(decoded) != len(batch) {
		t.Fatalf("Expected %d mutations, got %d", len(batch), len(decoded))
	}
	for i, m := range decoded {
		if m.Kind != batch[i].Kind {
			t.Errorf("Mutation %d: expected kind %v, got %v", i, batch[i].Kind, m.Kind)
		}
		if !bytes.Equal(m.Row, batch[i].Row) {
			t.Errorf("Mutation %d: expected row %s, got %s", i, batch[i].Row, m.Row)
		}
	}
}

// TestEmptyBatchRoundTrip tests that an empty batch is representable
func TestEmptyBatchRoundTrip(t *testing.T) {
	data, err := EncodeBatch(nil)
	if err != nil {
		t.Fatalf("Failed to encode empty batch: %v", err)
	}

	decoded, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("Failed to decode empty batch: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("Expected 0 mutations, got %d", len(decoded))
	}
}

// TestDecodeBatchErrors tests corrupt batch handling
func TestDecodeBatchErrors(t *testing.T) {
	// Truncated header
	if _, err := DecodeBatch([]byte{0x00}); err == nil {
		t.Error("Expected error for truncated header")
	}

	// Count claims a mutation that is not there
	if _, err := DecodeBatch([]byte{0x00, 0x00, 0x00, 0x01}); err == nil {
		t.Error("Expected error for missing mutation body")
	}

	// Trailing garbage after a valid batch
	data, err := EncodeBatch([]Mutation{NewPut([]byte("a"), 1)})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	data = append(data, 0xFF)
	if _, err := DecodeBatch(data); err == nil {
		t.Error("Expected error for trailing bytes")
	}
}

// TestDecodeMutationTruncated tests mid-mutation truncation
func TestDecodeMutationTruncated(t *testing.T) {
	var buf bytes.Buffer
	m := NewPut([]byte("rowkey"), 9, Cell{Qualifier: "name", Value: []byte("value")})
	if err := EncodeMutation(&buf, m); err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	full := buf.Bytes()
	for _, cut := range []int{1, 2, 9, 13, len(full) - 1} {
		if _, err := DecodeMutation(bytes.NewReader(full[:cut])); err == nil {
			t.Errorf("Expected error decoding %d of %d bytes", cut, len(full))
		}
	}
}
