// Package badgerstore is the BadgerDB wide-column backend. Each row is one
// key-value entry under a table prefix, so point reads stay point reads and
// scans walk the table in row-key order.
//
// Durability follows the mutation tags: the database runs with synchronous
// writes off, and a batch containing at least one default-durability
// mutation is followed by an explicit sync. Batches made up entirely of
// skip-WAL mutations ride on Badger's periodic sync instead.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dd0wney/widegraph/pkg/logging"
	"github.com/dd0wney/widegraph/pkg/metrics"
	"github.com/dd0wney/widegraph/pkg/table"
)

// Config controls a Store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string `yaml:"dir"`

	// InMemory keeps everything in RAM. For tests.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites syncs every write instead of per-batch. Slow; the
	// per-batch sync already covers default-durability mutations.
	SyncWrites bool `yaml:"sync_writes"`

	Logger  logging.Logger    `yaml:"-"`
	Metrics *metrics.Registry `yaml:"-"`
}

// Store implements table.Conn over a single Badger database. Tables share
// the keyspace under per-table prefixes.
type Store struct {
	cfg Config
	db  *badger.DB
	log logging.Logger

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the database.
func Open(cfg Config) (*Store, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(&badgerLogger{log: log.With(logging.Component("badger"))}).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	log.Info("badger store open",
		logging.String("dir", cfg.Dir),
		logging.Bool("in_memory", cfg.InMemory))

	return &Store{cfg: cfg, db: db, log: log}, nil
}

// Table opens the named table. Tables need no creation step; the prefix is
// enough.
func (s *Store) Table(name string) (table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, table.ErrTableClosed
	}
	if len(name) == 0 || len(name) > 255 {
		return nil, fmt.Errorf("table name %q: must be 1-255 bytes", name)
	}
	return &badgerTable{name: name, prefix: tablePrefix(name), store: s}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger: %w", err)
	}
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// tablePrefix frames the table name with its length so no table's keyspace
// is a prefix of another's. Row keys may contain any byte, including NUL.
func tablePrefix(name string) []byte {
	p := make([]byte, 0, 1+len(name))
	p = append(p, byte(len(name)))
	p = append(p, name...)
	return p
}

type badgerTable struct {
	name   string
	prefix []byte
	store  *Store
}

func (t *badgerTable) Name() string { return t.name }

func (t *badgerTable) key(row []byte) []byte {
	k := make([]byte, 0, len(t.prefix)+len(row))
	k = append(k, t.prefix...)
	k = append(k, row...)
	return k
}

// Apply commits the batch in one transaction, splitting on ErrTxnTooBig,
// then syncs if the batch carried any default-durability mutation.
func (t *badgerTable) Apply(ctx context.Context, muts []table.Mutation) error {
	if t.store.isClosed() {
		return table.ErrTableClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	txn := t.store.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for i := range muts {
		err := t.applyOne(txn, &muts[i])
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err = txn.Commit(); err == nil {
				txn = t.store.db.NewTransaction(true)
				err = t.applyOne(txn, &muts[i])
			}
		}
		if err != nil {
			t.recordApply("error", start)
			return fmt.Errorf("failed to apply mutation to table %s: %w", t.name, err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.recordApply("error", start)
		return fmt.Errorf("failed to commit batch to table %s: %w", t.name, err)
	}

	if t.needsSync(muts) {
		if err := t.store.db.Sync(); err != nil {
			t.recordApply("error", start)
			return fmt.Errorf("failed to sync table %s: %w", t.name, err)
		}
	}
	t.recordApply("ok", start)
	return nil
}

// needsSync reports whether the batch carries any mutation that asked for
// the default durability level.
func (t *badgerTable) needsSync(muts []table.Mutation) bool {
	if t.store.cfg.InMemory || t.store.cfg.SyncWrites {
		return false
	}
	for i := range muts {
		if muts[i].Durability != table.SkipWAL {
			return true
		}
	}
	return false
}

func (t *badgerTable) applyOne(txn *badger.Txn, m *table.Mutation) error {
	key := t.key(m.Row)

	switch m.Kind {
	case table.KindPut:
		ts, cells, err := t.readRow(txn, key)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if cells == nil {
			cells = make(map[string][]byte, len(m.Cells))
		}
		if m.Timestamp > ts {
			ts = m.Timestamp
		}
		for _, c := range m.Cells {
			cells[c.Qualifier] = c.Value
		}
		return txn.Set(key, encodeRow(ts, cells))

	case table.KindDelete:
		if len(m.Cells) == 0 {
			return txn.Delete(key)
		}
		ts, cells, err := t.readRow(txn, key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, c := range m.Cells {
			delete(cells, c.Qualifier)
		}
		if len(cells) == 0 {
			return txn.Delete(key)
		}
		return txn.Set(key, encodeRow(ts, cells))

	default:
		return fmt.Errorf("unknown mutation kind %d", m.Kind)
	}
}

func (t *badgerTable) readRow(txn *badger.Txn, key []byte) (int64, map[string][]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return 0, nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, nil, err
	}
	return decodeRow(val)
}

func (t *badgerTable) Get(ctx context.Context, row []byte) (*table.Row, error) {
	if t.store.isClosed() {
		return nil, table.ErrTableClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *table.Row
	err := t.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.key(row))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		_, cells, err := decodeRow(val)
		if err != nil {
			return err
		}
		out = &table.Row{Key: append([]byte(nil), row...), Columns: cells}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, table.ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read row from table %s: %w", t.name, err)
	}
	return out, nil
}

func (t *badgerTable) Scan(ctx context.Context, start, end []byte, fn func(*table.Row) bool) error {
	if t.store.isClosed() {
		return table.ErrTableClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return t.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = t.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := t.prefix
		if start != nil {
			seek = t.key(start)
		}
		for it.Seek(seek); it.ValidForPrefix(t.prefix); it.Next() {
			item := it.Item()
			rowKey := item.Key()[len(t.prefix):]
			if end != nil && bytes.Compare(rowKey, end) >= 0 {
				return nil
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			_, cells, err := decodeRow(val)
			if err != nil {
				return err
			}
			row := &table.Row{Key: append([]byte(nil), rowKey...), Columns: cells}
			if !fn(row) {
				return nil
			}
		}
		return nil
	})
}

func (t *badgerTable) Close() error { return nil }

func (t *badgerTable) recordApply(status string, start time.Time) {
	if m := t.store.cfg.Metrics; m != nil {
		m.RecordStoreApply("badger", status, time.Since(start))
	}
}

// Row value layout: [ts:8][count:2] then per cell [qualLen:2][qual]
// [valLen:4][val]. All integers big-endian.
func encodeRow(ts int64, cells map[string][]byte) []byte {
	size := 10
	for q, v := range cells {
		size += 2 + len(q) + 4 + len(v)
	}
	out := make([]byte, 0, size)

	var hdr [10]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(ts))
	binary.BigEndian.PutUint16(hdr[8:10], uint16(len(cells)))
	out = append(out, hdr[:]...)

	for q, v := range cells {
		var lens [6]byte
		binary.BigEndian.PutUint16(lens[0:2], uint16(len(q)))
		binary.BigEndian.PutUint32(lens[2:6], uint32(len(v)))
		out = append(out, lens[0:2]...)
		out = append(out, q...)
		out = append(out, lens[2:6]...)
		out = append(out, v...)
	}
	return out
}

func decodeRow(data []byte) (int64, map[string][]byte, error) {
	if len(data) < 10 {
		return 0, nil, fmt.Errorf("row value truncated: %d bytes", len(data))
	}
	ts := int64(binary.BigEndian.Uint64(data[0:8]))
	count := int(binary.BigEndian.Uint16(data[8:10]))
	data = data[10:]

	cells := make(map[string][]byte, count)
	for i := 0; i < count; i++ {
		if len(data) < 2 {
			return 0, nil, fmt.Errorf("row cell %d: truncated qualifier length", i)
		}
		qlen := int(binary.BigEndian.Uint16(data[0:2]))
		data = data[2:]
		if len(data) < qlen+4 {
			return 0, nil, fmt.Errorf("row cell %d: truncated qualifier", i)
		}
		qual := string(data[:qlen])
		vlen := int(binary.BigEndian.Uint32(data[qlen : qlen+4]))
		data = data[qlen+4:]
		if len(data) < vlen {
			return 0, nil, fmt.Errorf("row cell %d: truncated value", i)
		}
		cells[qual] = append([]byte(nil), data[:vlen]...)
		data = data[vlen:]
	}
	return ts, cells, nil
}

// badgerLogger adapts the process logger to Badger's interface. Badger's
// info chatter lands at debug level.
type badgerLogger struct {
	log logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
