// Package memstore is the in-memory wide-column backend. Tables live on
// concurrent skip lists so scans come back in key order, and an optional
// snappy-compressed write-ahead log makes default-durability batches
// survive a restart. Mutations tagged skip-WAL are applied to memory only.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zhangyunhao116/skipmap"

	"github.com/dd0wney/widegraph/pkg/logging"
	"github.com/dd0wney/widegraph/pkg/metrics"
	"github.com/dd0wney/widegraph/pkg/table"
)

// Config controls a Store.
type Config struct {
	// Dir is the directory for the write-ahead log. Empty means no log:
	// the store is purely in-memory and every batch behaves as skip-WAL.
	Dir string `yaml:"dir"`

	Logger  logging.Logger    `yaml:"-"`
	Metrics *metrics.Registry `yaml:"-"`
}

// Store implements table.Conn over in-memory skip lists.
type Store struct {
	cfg Config
	log logging.Logger

	mu     sync.Mutex
	tables map[string]*memTable
	wal    *walWriter
	closed bool
}

// New creates a purely in-memory store with no write-ahead log.
func New() *Store {
	s, _ := Open(Config{})
	return s
}

// Open creates a store. With a non-empty Dir it replays any existing
// write-ahead log before accepting traffic, so rows written with default
// durability reappear after a restart.
func Open(cfg Config) (*Store, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}

	s := &Store{
		cfg:    cfg,
		log:    log,
		tables: make(map[string]*memTable),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		path := filepath.Join(cfg.Dir, WALFileName)

		replayed := 0
		s.mu.Lock()
		err := replayWAL(path, func(tableName string, muts []table.Mutation) error {
			t := s.tableLocked(tableName)
			for i := range muts {
				t.applyOne(&muts[i])
			}
			replayed += len(muts)
			return nil
		})
		s.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to replay WAL: %w", err)
		}
		if replayed > 0 {
			log.Info("memstore WAL replayed",
				logging.String("dir", cfg.Dir),
				logging.Int("mutations", replayed),
				logging.Int("tables", len(s.tables)))
		}

		wal, err := openWAL(path)
		if err != nil {
			return nil, err
		}
		s.wal = wal
	}

	return s, nil
}

// Table opens the named table, creating it if absent.
func (s *Store) Table(name string) (table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, table.ErrTableClosed
	}
	return s.tableLocked(name), nil
}

func (s *Store) tableLocked(name string) *memTable {
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{
			name:  name,
			store: s,
			rows: skipmap.NewFunc[[]byte, *storedRow](func(a, b []byte) bool {
				return bytes.Compare(a, b) < 0
			}),
		}
		s.tables[name] = t
	}
	return t
}

// Close closes the write-ahead log. Table handles error out afterward.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.wal != nil {
		if err := s.wal.Close(); err != nil {
			return fmt.Errorf("failed to close WAL: %w", err)
		}
	}
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// storedRow is immutable once published to the skip list. Updates replace
// the whole row, so readers never see a half-applied mutation.
type storedRow struct {
	ts    int64
	cells map[string][]byte
}

type memTable struct {
	name  string
	store *Store
	rows  *skipmap.FuncMap[[]byte, *storedRow]
}

func (t *memTable) Name() string { return t.name }

// Apply logs the durable subset of the batch, then applies every mutation
// in slice order.
func (t *memTable) Apply(ctx context.Context, muts []table.Mutation) error {
	if t.store.isClosed() {
		return table.ErrTableClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	if t.store.wal != nil {
		durable := durableSubset(muts)
		if len(durable) > 0 {
			n, err := t.store.wal.Append(t.name, durable)
			if err != nil {
				t.recordApply("error", start)
				return fmt.Errorf("failed to log batch for table %s: %w", t.name, err)
			}
			if m := t.store.cfg.Metrics; m != nil {
				m.RecordWALAppend(n)
			}
		}
	}

	for i := range muts {
		t.applyOne(&muts[i])
	}
	t.recordApply("ok", start)
	return nil
}

func durableSubset(muts []table.Mutation) []table.Mutation {
	durable := muts[:0:0]
	for _, m := range muts {
		if m.Durability != table.SkipWAL {
			durable = append(durable, m)
		}
	}
	return durable
}

func (t *memTable) applyOne(m *table.Mutation) {
	key := append([]byte(nil), m.Row...)

	switch m.Kind {
	case table.KindPut:
		old, _ := t.rows.Load(key)
		next := &storedRow{ts: m.Timestamp, cells: make(map[string][]byte)}
		if old != nil {
			if old.ts > next.ts {
				next.ts = old.ts
			}
			for q, v := range old.cells {
				next.cells[q] = v
			}
		}
		for _, c := range m.Cells {
			next.cells[c.Qualifier] = append([]byte(nil), c.Value...)
		}
		t.rows.Store(key, next)

	case table.KindDelete:
		if len(m.Cells) == 0 {
			t.rows.Delete(key)
			return
		}
		old, ok := t.rows.Load(key)
		if !ok {
			return
		}
		next := &storedRow{ts: old.ts, cells: make(map[string][]byte, len(old.cells))}
		for q, v := range old.cells {
			next.cells[q] = v
		}
		for _, c := range m.Cells {
			delete(next.cells, c.Qualifier)
		}
		if len(next.cells) == 0 {
			t.rows.Delete(key)
			return
		}
		t.rows.Store(key, next)
	}
}

func (t *memTable) Get(ctx context.Context, row []byte) (*table.Row, error) {
	if t.store.isClosed() {
		return nil, table.ErrTableClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := t.rows.Load(row)
	if !ok {
		return nil, table.ErrRowNotFound
	}
	return materialize(row, r), nil
}

func (t *memTable) Scan(ctx context.Context, start, end []byte, fn func(*table.Row) bool) error {
	if t.store.isClosed() {
		return table.ErrTableClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.rows.Range(func(key []byte, r *storedRow) bool {
		if start != nil && bytes.Compare(key, start) < 0 {
			return true
		}
		if end != nil && bytes.Compare(key, end) >= 0 {
			return false
		}
		return fn(materialize(key, r))
	})
	return nil
}

func (t *memTable) Close() error { return nil }

func (t *memTable) recordApply(status string, start time.Time) {
	if m := t.store.cfg.Metrics; m != nil {
		m.RecordStoreApply("memory", status, time.Since(start))
	}
}

func materialize(key []byte, r *storedRow) *table.Row {
	out := &table.Row{
		Key:     append([]byte(nil), key...),
		Columns: make(map[string][]byte, len(r.cells)),
	}
	for q, v := range r.cells {
		out.Columns[q] = append([]byte(nil), v...)
	}
	return out
}
