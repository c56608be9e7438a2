package memstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/golang/snappy"

	"github.com/dd0wney/widegraph/pkg/pools"
	"github.com/dd0wney/widegraph/pkg/table"
)

// WALFileName is the single append-only log file inside the store directory.
const WALFileName = "memstore.wal"

// Record layout: [compressedLen:4][crc32:4][snappy payload]. The payload is
// [nameLen:2][table name][batch] with the batch in the shared mutation
// codec. Mutations tagged skip-WAL never reach the log.
type walWriter struct {
	mu sync.Mutex
	f  *os.File
}

func openWAL(path string) (*walWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL: %w", err)
	}
	return &walWriter{f: f}, nil
}

// Append writes one durable batch for tableName and syncs. Returns the
// compressed record size in bytes. Assembly runs on pooled scratch buffers;
// nothing built here outlives the call.
func (w *walWriter) Append(tableName string, muts []table.Mutation) (int, error) {
	batch, err := table.EncodeBatch(muts)
	if err != nil {
		return 0, fmt.Errorf("failed to encode WAL batch: %w", err)
	}

	builder := pools.NewBufferBuilder(2 + len(tableName) + len(batch))
	defer builder.Release()
	builder.WriteUint16BE(uint16(len(tableName)))
	builder.WriteString(tableName)
	builder.Write(batch)
	payload := builder.Bytes()

	scratch := pools.GetBytesSized(snappy.MaxEncodedLen(len(payload)))
	defer pools.PutBytes(scratch)
	compressed := snappy.Encode(scratch, payload)

	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(compressed)))
	binary.BigEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(compressed))

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Write(header[:]); err != nil {
		return 0, fmt.Errorf("failed to write WAL header: %w", err)
	}
	if _, err := w.f.Write(compressed); err != nil {
		return 0, fmt.Errorf("failed to write WAL record: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync WAL: %w", err)
	}
	return len(header) + len(compressed), nil
}

func (w *walWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// replayWAL feeds every recorded batch to apply in log order. A cleanly
// truncated tail (torn final record) ends the replay without error;
// corruption inside a record is an error.
func replayWAL(path string, apply func(tableName string, muts []table.Mutation) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open WAL for replay: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var header [8]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("failed to read WAL header: %w", err)
		}

		length := binary.BigEndian.Uint32(header[0:4])
		sum := binary.BigEndian.Uint32(header[4:8])

		compressed := make([]byte, length)
		if _, err := io.ReadFull(r, compressed); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Torn tail from a crash mid-append
				return nil
			}
			return fmt.Errorf("failed to read WAL record: %w", err)
		}
		if crc32.ChecksumIEEE(compressed) != sum {
			return fmt.Errorf("WAL record checksum mismatch")
		}

		payload, err := snappy.Decode(nil, compressed)
		if err != nil {
			return fmt.Errorf("failed to decompress WAL record: %w", err)
		}
		if len(payload) < 2 {
			return fmt.Errorf("WAL record too short")
		}
		nameLen := int(binary.BigEndian.Uint16(payload[0:2]))
		if len(payload) < 2+nameLen {
			return fmt.Errorf("WAL record table name truncated")
		}
		tableName := string(payload[2 : 2+nameLen])

		muts, err := table.DecodeBatch(payload[2+nameLen:])
		if err != nil {
			return fmt.Errorf("failed to decode WAL batch: %w", err)
		}
		if err := apply(tableName, muts); err != nil {
			return err
		}
	}
}
