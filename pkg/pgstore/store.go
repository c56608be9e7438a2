// Package pgstore is the PostgreSQL wide-column backend. Each logical table
// maps to one relation of (row_key, qualifier, value, ts) keyed on
// (row_key, qualifier); BYTEA row keys compare byte-wise, so scans come
// back in the same order as the other backends.
//
// Durability follows the mutation tags: a batch consisting entirely of
// skip-WAL mutations commits with synchronous_commit off for that
// transaction, trading a bounded loss window on crash for throughput.
package pgstore

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/widegraph/pkg/logging"
	"github.com/dd0wney/widegraph/pkg/metrics"
	"github.com/dd0wney/widegraph/pkg/table"
)

// Config controls a Store.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn"`

	// MaxConns caps the pool. Defaults to 25.
	MaxConns int32 `yaml:"max_conns"`

	// MinConns keeps warm connections. Defaults to 5.
	MinConns int32 `yaml:"min_conns"`

	Logger  logging.Logger    `yaml:"-"`
	Metrics *metrics.Registry `yaml:"-"`
}

// Store implements table.Conn over a pgx connection pool.
type Store struct {
	cfg  Config
	pool *pgxpool.Pool
	log  logging.Logger

	mu     sync.Mutex
	closed bool
}

// Logical table names must be safe to splice into SQL identifiers.
var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,47}$`)

// Open connects, verifies the connection, and returns the store. Relations
// are created lazily by Table.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	if pc.MaxConns <= 0 {
		pc.MaxConns = 25
	}
	pc.MinConns = cfg.MinConns
	if pc.MinConns <= 0 {
		pc.MinConns = 5
	}
	pc.MaxConnLifetime = 5 * time.Minute
	pc.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	log.Info("postgres store open",
		logging.Int("max_conns", int(pc.MaxConns)))

	return &Store{cfg: cfg, pool: pool, log: log}, nil
}

// Table creates the relation for name if absent and returns a handle.
func (s *Store) Table(name string) (table.Table, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, table.ErrTableClosed
	}
	s.mu.Unlock()

	if !tableNamePattern.MatchString(name) {
		return nil, fmt.Errorf("table name %q: must match %s", name, tableNamePattern)
	}
	ident := "wg_" + name

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		row_key BYTEA NOT NULL,
		qualifier TEXT NOT NULL,
		value BYTEA NOT NULL,
		ts BIGINT NOT NULL,
		PRIMARY KEY (row_key, qualifier)
	);
	`, ident)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", ident, err)
	}

	return &pgTable{name: name, ident: ident, store: s}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Close()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type pgTable struct {
	name  string
	ident string
	store *Store
}

func (t *pgTable) Name() string { return t.name }

// Apply commits the batch in one transaction. An all-skip-WAL batch turns
// synchronous commit off for that transaction only.
func (t *pgTable) Apply(ctx context.Context, muts []table.Mutation) error {
	if t.store.isClosed() {
		return table.ErrTableClosed
	}
	start := time.Now()

	tx, err := t.store.pool.Begin(ctx)
	if err != nil {
		t.recordApply("error", start)
		return fmt.Errorf("failed to begin batch for table %s: %w", t.name, err)
	}
	defer tx.Rollback(ctx)

	if allSkipWAL(muts) {
		if _, err := tx.Exec(ctx, "SET LOCAL synchronous_commit TO OFF"); err != nil {
			t.recordApply("error", start)
			return fmt.Errorf("failed to relax commit for table %s: %w", t.name, err)
		}
	}

	b := &pgx.Batch{}
	for i := range muts {
		t.queueOne(b, &muts[i])
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			t.recordApply("error", start)
			return fmt.Errorf("failed to apply mutation %d to table %s: %w", i, t.name, err)
		}
	}
	if err := br.Close(); err != nil {
		t.recordApply("error", start)
		return fmt.Errorf("failed to finish batch for table %s: %w", t.name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.recordApply("error", start)
		return fmt.Errorf("failed to commit batch to table %s: %w", t.name, err)
	}
	t.recordApply("ok", start)
	return nil
}

func allSkipWAL(muts []table.Mutation) bool {
	for i := range muts {
		if muts[i].Durability != table.SkipWAL {
			return false
		}
	}
	return len(muts) > 0
}

func (t *pgTable) queueOne(b *pgx.Batch, m *table.Mutation) {
	switch m.Kind {
	case table.KindPut:
		upsert := fmt.Sprintf(`
			INSERT INTO %s (row_key, qualifier, value, ts)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (row_key, qualifier)
			DO UPDATE SET value = EXCLUDED.value, ts = EXCLUDED.ts
		`, t.ident)
		for _, c := range m.Cells {
			val := c.Value
			if val == nil {
				val = []byte{}
			}
			b.Queue(upsert, m.Row, c.Qualifier, val, m.Timestamp)
		}

	case table.KindDelete:
		if len(m.Cells) == 0 {
			b.Queue(fmt.Sprintf(`DELETE FROM %s WHERE row_key = $1`, t.ident), m.Row)
			return
		}
		del := fmt.Sprintf(`DELETE FROM %s WHERE row_key = $1 AND qualifier = $2`, t.ident)
		for _, c := range m.Cells {
			b.Queue(del, m.Row, c.Qualifier)
		}
	}
}

func (t *pgTable) Get(ctx context.Context, row []byte) (*table.Row, error) {
	if t.store.isClosed() {
		return nil, table.ErrTableClosed
	}

	query := fmt.Sprintf(`SELECT qualifier, value FROM %s WHERE row_key = $1`, t.ident)
	rows, err := t.store.pool.Query(ctx, query, row)
	if err != nil {
		return nil, fmt.Errorf("failed to read row from table %s: %w", t.name, err)
	}
	defer rows.Close()

	out := &table.Row{
		Key:     append([]byte(nil), row...),
		Columns: make(map[string][]byte),
	}
	for rows.Next() {
		var qual string
		var val []byte
		if err := rows.Scan(&qual, &val); err != nil {
			return nil, fmt.Errorf("failed to scan cell from table %s: %w", t.name, err)
		}
		out.Columns[qual] = val
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cells of table %s: %w", t.name, err)
	}
	if len(out.Columns) == 0 {
		return nil, table.ErrRowNotFound
	}
	return out, nil
}

func (t *pgTable) Scan(ctx context.Context, start, end []byte, fn func(*table.Row) bool) error {
	if t.store.isClosed() {
		return table.ErrTableClosed
	}

	query := fmt.Sprintf(`
		SELECT row_key, qualifier, value FROM %s
		WHERE ($1::bytea IS NULL OR row_key >= $1)
		  AND ($2::bytea IS NULL OR row_key < $2)
		ORDER BY row_key, qualifier
	`, t.ident)
	rows, err := t.store.pool.Query(ctx, query, start, end)
	if err != nil {
		return fmt.Errorf("failed to scan table %s: %w", t.name, err)
	}
	defer rows.Close()

	var current *table.Row
	for rows.Next() {
		var key, val []byte
		var qual string
		if err := rows.Scan(&key, &qual, &val); err != nil {
			return fmt.Errorf("failed to scan cell from table %s: %w", t.name, err)
		}
		if current != nil && !bytes.Equal(current.Key, key) {
			if !fn(current) {
				return nil
			}
			current = nil
		}
		if current == nil {
			current = &table.Row{
				Key:     append([]byte(nil), key...),
				Columns: make(map[string][]byte),
			}
		}
		current.Columns[qual] = val
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating table %s: %w", t.name, err)
	}
	if current != nil {
		fn(current)
	}
	return nil
}

func (t *pgTable) Close() error { return nil }

func (t *pgTable) recordApply(status string, start time.Time) {
	if m := t.store.cfg.Metrics; m != nil {
		m.RecordStoreApply("postgres", status, time.Since(start))
	}
}
