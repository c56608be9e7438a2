// Package mutator turns graph elements into row mutations for the four
// logical tables of the store: primary vertex and edge rows plus their
// index tables. It only composes mutations; delivery and ordering across
// tables belong to the loader.
package mutator

import (
	"encoding/binary"
	"fmt"

	"github.com/dd0wney/widegraph/pkg/graph"
)

// Logical table names.
const (
	VertexTable      = "vertices"
	EdgeTable        = "edges"
	VertexIndexTable = "vertex_indices"
	EdgeIndexTable   = "edge_indices"
)

// Reserved qualifiers. The "~" prefix keeps them out of the user property
// key space, which rejects that character.
const (
	QualLabel     = "~label"
	QualCreatedAt = "~createdAt"
	QualUpdatedAt = "~updatedAt"
	QualOut       = "~out"
	QualOutLabel  = "~outLabel"
	QualIn        = "~in"
	QualInLabel   = "~inLabel"

	// Back-pointer qualifiers carried on index rows.
	QualElementID = "~id"
	QualValue     = "~value"
	QualWrittenAt = "~writtenAt"
)

// CreatedAtKey is the reserved index key under which every edge receives an
// unconditional creation-time index entry.
const CreatedAtKey = QualCreatedAt

// RowKey returns the primary-table row key for an element id.
func RowKey(id graph.ID) []byte {
	return []byte(id)
}

// IndexRowKey composes an index-table row key:
//
//	[labelLen:2][label][keyLen:2][key][ordered value][0x00][element id]
//
// Label and key are length framed. The ordered value makes entries for one
// (label, key) pair sort by the value's natural order; the trailing element
// id makes the key unique per element.
func IndexRowKey(label, key string, value graph.Value, id graph.ID) []byte {
	ordered := value.OrderedKey()
	out := make([]byte, 0, 4+len(label)+len(key)+len(ordered)+1+len(id))
	out = appendFramed(out, label)
	out = appendFramed(out, key)
	out = append(out, ordered...)
	out = append(out, 0x00)
	out = append(out, id...)
	return out
}

// IndexPrefix returns the scan prefix covering every entry for one
// (label, key) pair.
func IndexPrefix(label, key string) []byte {
	out := make([]byte, 0, 4+len(label)+len(key))
	out = appendFramed(out, label)
	out = appendFramed(out, key)
	return out
}

// PrefixEnd returns the smallest key greater than every key carrying the
// prefix, for use as an exclusive scan end. Returns nil (scan to the last
// row) when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// IndexEntryRef identifies one decoded index-table row key.
type IndexEntryRef struct {
	Label      string
	Key        string
	OrderedVal string
	ElementID  graph.ID
}

// DecodeIndexRowKey splits a row key produced by IndexRowKey. The first NUL
// after the key frame is taken as the value terminator, so string values
// containing a NUL byte are not decodable.
func DecodeIndexRowKey(row []byte) (IndexEntryRef, error) {
	var ref IndexEntryRef

	label, rest, err := readFramed(row)
	if err != nil {
		return ref, fmt.Errorf("index row label: %w", err)
	}
	key, rest, err := readFramed(rest)
	if err != nil {
		return ref, fmt.Errorf("index row key: %w", err)
	}

	sep := -1
	for i, b := range rest {
		if b == 0x00 {
			sep = i
			break
		}
	}
	if sep < 0 {
		return ref, fmt.Errorf("index row key missing value terminator")
	}

	ref.Label = label
	ref.Key = key
	ref.OrderedVal = string(rest[:sep])
	ref.ElementID = graph.ID(rest[sep+1:])
	return ref, nil
}

// appendFramed appends [len:2][bytes].
func appendFramed(dst []byte, s string) []byte {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	dst = append(dst, l[:]...)
	return append(dst, s...)
}

func readFramed(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, fmt.Errorf("truncated length frame")
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return "", nil, fmt.Errorf("segment shorter than framed length %d", n)
	}
	return string(b[2 : 2+n]), b[2+n:], nil
}
