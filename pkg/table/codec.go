package table

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Binary mutation format, big-endian:
//
//	[Kind:1][Durability:1][Timestamp:8][RowLen:4][Row:N][CellCount:4]
//	per cell: [QualLen:2][Qual:N][ValLen:4][Val:N]
//
// A batch is [Count:4] followed by that many mutations. The format is shared
// by the memstore write-ahead log and the mutation feed.

// EncodeMutation writes one mutation to w.
func EncodeMutation(w io.Writer, m Mutation) error {
	if err := binary.Write(w, binary.BigEndian, uint8(m.Kind)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(m.Durability)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, m.Timestamp); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(m.Row))); err != nil {
		return err
	}
	if _, err := w.Write(m.Row); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(m.Cells))); err != nil {
		return err
	}
	for _, c := range m.Cells {
		if err := binary.Write(w, binary.BigEndian, uint16(len(c.Qualifier))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, c.Qualifier); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(c.Value))); err != nil {
			return err
		}
		if _, err := w.Write(c.Value); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMutation reads one mutation from r.
func DecodeMutation(r io.Reader) (Mutation, error) {
	var m Mutation

	var kind, durability uint8
	if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
		return m, err
	}
	if err := binary.Read(r, binary.BigEndian, &durability); err != nil {
		return m, err
	}
	m.Kind = Kind(kind)
	m.Durability = Durability(durability)

	if err := binary.Read(r, binary.BigEndian, &m.Timestamp); err != nil {
		return m, err
	}

	var rowLen uint32
	if err := binary.Read(r, binary.BigEndian, &rowLen); err != nil {
		return m, err
	}
	m.Row = make([]byte, rowLen)
	if _, err := io.ReadFull(r, m.Row); err != nil {
		return m, err
	}

	var cellCount uint32
	if err := binary.Read(r, binary.BigEndian, &cellCount); err != nil {
		return m, err
	}
	m.Cells = make([]Cell, 0, cellCount)
	for i := uint32(0); i < cellCount; i++ {
		var qualLen uint16
		if err := binary.Read(r, binary.BigEndian, &qualLen); err != nil {
			return m, err
		}
		qual := make([]byte, qualLen)
		if _, err := io.ReadFull(r, qual); err != nil {
			return m, err
		}
		var valLen uint32
		if err := binary.Read(r, binary.BigEndian, &valLen); err != nil {
			return m, err
		}
		val := make([]byte, valLen)
		if _, err := io.ReadFull(r, val); err != nil {
			return m, err
		}
		m.Cells = append(m.Cells, Cell{Qualifier: string(qual), Value: val})
	}

	return m, nil
}

// EncodeBatch encodes a batch of mutations to a single byte slice.
func EncodeBatch(muts []Mutation) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(muts))); err != nil {
		return nil, err
	}
	for _, m := range muts {
		if err := EncodeMutation(&buf, m); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeBatch decodes a byte slice produced by EncodeBatch.
func DecodeBatch(data []byte) ([]Mutation, error) {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to decode batch header: %w", err)
	}
	muts := make([]Mutation, 0, count)
	for i := uint32(0); i < count; i++ {
		m, err := DecodeMutation(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode mutation %d of %d: %w", i, count, err)
		}
		muts = append(muts, m)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("batch has %d trailing bytes", r.Len())
	}
	return muts, nil
}
